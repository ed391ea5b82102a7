package model

import (
	"encoding/json"
	"errors"
	"time"
)

// SubmittedAnswer 提交答案的标记变体：单选为字符串，多选为字符串数组，null 或缺失视为未作答。
// 形状与题型不匹配不构成错误，由判分逻辑按错误答案处理。
type SubmittedAnswer struct {
	Present bool
	IsList  bool
	Value   string
	Values  []string
}

func (a *SubmittedAnswer) UnmarshalJSON(data []byte) error {
	*a = SubmittedAnswer{}

	var value string
	if err := json.Unmarshal(data, &value); err == nil {
		a.Present = true
		a.Value = value
		return nil
	}

	var values []string
	if err := json.Unmarshal(data, &values); err == nil {
		a.Present = true
		a.IsList = true
		a.Values = values
		return nil
	}

	var null interface{}
	if err := json.Unmarshal(data, &null); err == nil && null == nil {
		return nil
	}

	return errors.New("答案必须是字符串、字符串数组或 null")
}

func (a SubmittedAnswer) MarshalJSON() ([]byte, error) {
	if !a.Present {
		return []byte("null"), nil
	}
	if a.IsList {
		if a.Values == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(a.Values)
	}
	return json.Marshal(a.Value)
}

// Set 返回多选提交的去重集合，重复选择不影响集合相等判断
func (a SubmittedAnswer) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(a.Values))
	for _, v := range a.Values {
		set[v] = struct{}{}
	}
	return set
}

// AnswerRecord 每个 (quiz, user, question) 三元组只在首次提交时写入一条，之后不再更新或删除。
// 复合唯一索引保证并发重复提交只有一批能落库。
type AnswerRecord struct {
	BaseModel
	QuizID      uint            `gorm:"uniqueIndex:uk_quiz_user_question;not null" json:"quizId"`
	UserID      uint            `gorm:"uniqueIndex:uk_quiz_user_question;not null" json:"userId"`
	QuestionID  uint            `gorm:"uniqueIndex:uk_quiz_user_question;not null" json:"questionId"`
	UserAnswer  json.RawMessage `gorm:"type:json" json:"userAnswer"` // 原样序列化的提交答案，未作答存 null
	Correct     bool            `gorm:"not null" json:"correct"`
	SubmittedAt time.Time       `gorm:"not null" json:"submittedAt"`
}

func (AnswerRecord) TableName() string {
	return "quiz_answer_records"
}
