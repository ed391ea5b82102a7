package service

import (
	"encoding/json"
	"errors"
	"time"

	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QuestionSource 测验与题目的只读来源
type QuestionSource interface {
	FindQuizByID(id uint) (*model.Quiz, error)
	ListQuestions(quizID uint) ([]model.QuizQuestion, error)
}

// AnswerStore 答题记录的存取。InsertBatch 必须整批原子写入，
// 与同一 (quiz, user) 的并发提交互斥。
type AnswerStore interface {
	CountByQuizAndUser(quizID, userID uint) (int64, error)
	InsertBatch(records []model.AnswerRecord) error
}

// RewardNotifier 向平台发放经验值，每次首次完成测验恰好调用一次
type RewardNotifier interface {
	AwardExperience(userID uint, amount int) error
}

type GradingService struct {
	Quizzes QuestionSource
	Answers AnswerStore
	Reward  RewardNotifier
}

func NewGradingService(quizzes QuestionSource, answers AnswerStore, reward RewardNotifier) *GradingService {
	return &GradingService{
		Quizzes: quizzes,
		Answers: answers,
		Reward:  reward,
	}
}

type QuizSubmission struct {
	Answers map[uint]model.SubmittedAnswer `json:"answers"` // questionID -> 答案
}

type FeedbackEntry struct {
	QuestionID    uint                  `json:"questionId"`
	QuestionText  string                `json:"questionText"`
	UserAnswer    model.SubmittedAnswer `json:"userAnswer"`
	CorrectAnswer json.RawMessage       `json:"correctAnswer"`
	IsCorrect     bool                  `json:"isCorrect"`
}

type QuizResult struct {
	Score    int             `json:"score"`
	Total    int             `json:"total"`
	Rewarded bool            `json:"rewarded"` // 本次提交是否为首次提交并发放了奖励
	Feedback []FeedbackEntry `json:"feedback"`
}

// IsCorrect 比对一道题的提交答案与标准答案。
// 单选按字符串精确相等；多选按集合相等，选择顺序和重复不影响结果。
// 缺答或形状与题型不符一律判错，绝不报错。
func IsCorrect(qt model.QuestionType, answer model.SubmittedAnswer, solution model.Solution) bool {
	switch qt {
	case model.SingleChoice:
		return answer.Present && !answer.IsList && answer.Value == solution.Single
	case model.MultipleChoice:
		if !answer.Present || !answer.IsList {
			return false
		}
		submitted := answer.Set()
		expected := solution.Set()
		if len(submitted) != len(expected) {
			return false
		}
		for v := range expected {
			if _, ok := submitted[v]; !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// SubmitQuiz 判分并在首次提交时落库、发放奖励。
// 重复提交按新答案重新判分返回，但不产生任何写入，也不再发奖励。
func (s *GradingService) SubmitQuiz(userID, quizID uint, submission QuizSubmission) (*QuizResult, error) {
	_, err := s.Quizzes.FindQuizByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	questions, err := s.Quizzes.ListQuestions(quizID)
	if err != nil {
		return nil, err
	}
	// 没有题目的测验不可判分，等同于不存在
	if len(questions) == 0 {
		return nil, util.ErrQuizNotFound
	}

	count, err := s.Answers.CountByQuizAndUser(quizID, userID)
	if err != nil {
		return nil, err
	}
	firstSubmission := count == 0

	now := time.Now()
	result := &QuizResult{
		Total:    len(questions),
		Feedback: make([]FeedbackEntry, 0, len(questions)),
	}
	records := make([]model.AnswerRecord, 0, len(questions))

	for _, q := range questions {
		answer := submission.Answers[q.ID]

		correct := false
		solution, err := q.DecodeSolution()
		if err != nil {
			// 存储的答案损坏时该题判错，不中断整卷判分
			logger.Log.Warn("标准答案反序列化失败", zap.Uint("questionID", q.ID), zap.Error(err))
		} else {
			correct = IsCorrect(q.QuestionType, answer, solution)
		}

		if correct {
			result.Score++
		}

		result.Feedback = append(result.Feedback, FeedbackEntry{
			QuestionID:    q.ID,
			QuestionText:  q.QuestionText,
			UserAnswer:    answer,
			CorrectAnswer: q.Solution,
			IsCorrect:     correct,
		})

		rawAnswer, _ := json.Marshal(answer)
		records = append(records, model.AnswerRecord{
			QuizID:      quizID,
			UserID:      userID,
			QuestionID:  q.ID,
			UserAnswer:  rawAnswer,
			Correct:     correct,
			SubmittedAt: now,
		})
	}

	if !firstSubmission {
		return result, nil
	}

	if err := s.Answers.InsertBatch(records); err != nil {
		// 并发重复提交：另一批记录已经落库，本次按重放处理，不发奖励
		if errors.Is(err, util.ErrAlreadySubmitted) {
			return result, nil
		}
		logger.Log.Error("答题记录写入失败", zap.Uint("quizID", quizID), zap.Uint("userID", userID), zap.Error(err))
		return nil, util.ErrSubmissionFailed
	}

	// 事务提交后才发放奖励，保证奖励与落库状态一致
	if err := s.Reward.AwardExperience(userID, util.QuizCompletionXP); err != nil {
		logger.Log.Warn("经验值发放失败", zap.Uint("userID", userID), zap.Error(err))
	}
	result.Rewarded = true

	return result, nil
}
