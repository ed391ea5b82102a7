package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
)

func (t QuestionType) Valid() bool {
	return t == SingleChoice || t == MultipleChoice
}

// swagger:model Quiz
type Quiz struct {
	BaseModel
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// swagger:model QuizQuestion
type QuizQuestion struct {
	BaseModel
	QuizID       uint            `gorm:"index;not null" json:"quizId"`
	QuestionText string          `gorm:"type:text;not null" json:"questionText"`
	QuestionType QuestionType    `gorm:"type:enum('single_choice','multiple_choice');not null" json:"questionType"`
	Options      json.RawMessage `gorm:"type:json;not null" json:"options"`         // JSON字符串数组
	Solution     json.RawMessage `gorm:"type:json;not null" json:"solution"`        // 单选为字符串，多选为字符串数组
	Order        int             `gorm:"column:sort_order;default:0" json:"order"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// Solution 按题型标记的标准答案：单选是一个选项值，多选是一组选项值（集合语义）
type Solution struct {
	Type     QuestionType
	Single   string
	Multiple []string
}

// Set 返回多选答案的集合视图
func (s Solution) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Multiple))
	for _, v := range s.Multiple {
		set[v] = struct{}{}
	}
	return set
}

// DecodeOptions 反序列化选项列表
func (q *QuizQuestion) DecodeOptions() ([]string, error) {
	var options []string
	if err := json.Unmarshal(q.Options, &options); err != nil {
		return nil, fmt.Errorf("题目 %d 的选项格式错误: %w", q.ID, err)
	}
	return options, nil
}

// DecodeSolution 按题型反序列化标准答案
func (q *QuizQuestion) DecodeSolution() (Solution, error) {
	sol := Solution{Type: q.QuestionType}

	switch q.QuestionType {
	case SingleChoice:
		if err := json.Unmarshal(q.Solution, &sol.Single); err != nil {
			return Solution{}, fmt.Errorf("题目 %d 的单选答案格式错误: %w", q.ID, err)
		}
	case MultipleChoice:
		if err := json.Unmarshal(q.Solution, &sol.Multiple); err != nil {
			return Solution{}, fmt.Errorf("题目 %d 的多选答案格式错误: %w", q.ID, err)
		}
	default:
		return Solution{}, fmt.Errorf("题目 %d 的题型未知: %s", q.ID, q.QuestionType)
	}

	return sol, nil
}

// EncodeSolution 在写入时校验答案形状：单选恰好一个选项值，多选为非空且去重后的选项值集合。
// 所有答案值必须出现在选项列表中。
func EncodeSolution(qt QuestionType, options []string, values []string) (json.RawMessage, error) {
	optionSet := make(map[string]struct{}, len(options))
	for _, o := range options {
		optionSet[o] = struct{}{}
	}
	for _, v := range values {
		if _, ok := optionSet[v]; !ok {
			return nil, fmt.Errorf("答案 %q 不在选项列表中", v)
		}
	}

	switch qt {
	case SingleChoice:
		if len(values) != 1 {
			return nil, errors.New("单选题必须恰好指定一个正确答案")
		}
		return json.Marshal(values[0])
	case MultipleChoice:
		if len(values) == 0 {
			return nil, errors.New("多选题至少指定一个正确答案")
		}
		seen := make(map[string]struct{}, len(values))
		unique := make([]string, 0, len(values))
		for _, v := range values {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			unique = append(unique, v)
		}
		return json.Marshal(unique)
	default:
		return nil, fmt.Errorf("未知题型: %s", qt)
	}
}
