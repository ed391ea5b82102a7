package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quiz_platform_backend/internal/config"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/repository"
	"quiz_platform_backend/internal/util"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	questionCacheKeyPrefix = "quiz:questions:"
	questionCacheTTL       = 10 * time.Minute
)

type QuizService struct {
	Repo  *repository.QuizRepository
	Redis *redis.Client
	Cfg   *config.Config
}

func NewQuizService(repo *repository.QuizRepository, rdb *redis.Client, cfg *config.Config) *QuizService {
	return &QuizService{Repo: repo, Redis: rdb, Cfg: cfg}
}

type QuizReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type QuestionReq struct {
	QuestionText string   `json:"questionText" binding:"required"`
	QuestionType string   `json:"questionType" binding:"required"`
	Options      []string `json:"options" binding:"required"`
	Solution     []string `json:"solution" binding:"required"`
	Order        int      `json:"order"`
}

func (s *QuizService) CreateQuiz(req QuizReq) (*model.Quiz, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, errors.New("title is required")
	}

	quiz := &model.Quiz{Title: *req.Title}
	if req.Description != nil {
		quiz.Description = *req.Description
	}

	if err := s.Repo.CreateQuiz(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) UpdateQuiz(quizID uint, req QuizReq) (*model.Quiz, error) {
	quiz, err := s.Repo.FindQuizByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}

	if err := s.Repo.UpdateQuiz(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) DeleteQuiz(quizID uint) error {
	if err := s.Repo.DeleteQuiz(quizID); err != nil {
		return err
	}
	s.invalidateQuestionCache(quizID)
	return nil
}

func (s *QuizService) ListQuizzes(page, limit int) ([]repository.QuizListRow, int64, error) {
	return s.Repo.ListQuizzes(page, limit)
}

func (s *QuizService) GetQuiz(quizID uint) (*model.Quiz, []model.QuizQuestion, error) {
	quiz, err := s.Repo.FindQuizByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrQuizNotFound
		}
		return nil, nil, err
	}
	qs, err := s.Repo.ListQuestions(quizID)
	return quiz, qs, err
}

// buildQuestion 校验题目请求并在写入前固定答案形状
func (s *QuizService) buildQuestion(req QuestionReq) (model.QuestionType, json.RawMessage, json.RawMessage, error) {
	qt := model.QuestionType(req.QuestionType)
	if !qt.Valid() {
		return "", nil, nil, fmt.Errorf("未知题型: %s", req.QuestionType)
	}
	if len(req.Options) < 2 {
		return "", nil, nil, errors.New("题目至少需要两个选项")
	}

	solution, err := model.EncodeSolution(qt, req.Options, req.Solution)
	if err != nil {
		return "", nil, nil, err
	}

	options, err := json.Marshal(req.Options)
	if err != nil {
		return "", nil, nil, err
	}

	return qt, options, solution, nil
}

func (s *QuizService) CreateQuestion(quizID uint, req QuestionReq) (*model.QuizQuestion, error) {
	if _, err := s.Repo.FindQuizByID(quizID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	qt, options, solution, err := s.buildQuestion(req)
	if err != nil {
		return nil, err
	}

	question := &model.QuizQuestion{
		QuizID:       quizID,
		QuestionText: req.QuestionText,
		QuestionType: qt,
		Options:      options,
		Solution:     solution,
		Order:        req.Order,
	}

	if err := s.Repo.CreateQuestion(question); err != nil {
		return nil, err
	}
	s.invalidateQuestionCache(quizID)
	return question, nil
}

func (s *QuizService) UpdateQuestion(questionID uint, req QuestionReq) (*model.QuizQuestion, error) {
	question, err := s.Repo.FindQuestionByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}

	qt, options, solution, err := s.buildQuestion(req)
	if err != nil {
		return nil, err
	}

	question.QuestionText = req.QuestionText
	question.QuestionType = qt
	question.Options = options
	question.Solution = solution
	question.Order = req.Order

	if err := s.Repo.UpdateQuestion(question); err != nil {
		return nil, err
	}
	s.invalidateQuestionCache(question.QuizID)
	return question, nil
}

func (s *QuizService) DeleteQuestion(questionID uint) error {
	question, err := s.Repo.FindQuestionByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuestionNotFound
		}
		return err
	}

	if err := s.Repo.DeleteQuestion(questionID); err != nil {
		return err
	}
	s.invalidateQuestionCache(question.QuizID)
	return nil
}

// StudentQuizQuestion 学生答题视图中的题目，不含标准答案
type StudentQuizQuestion struct {
	ID           uint               `json:"id"`
	QuestionText string             `json:"questionText"`
	QuestionType model.QuestionType `json:"questionType"`
	Options      json.RawMessage    `json:"options"`
	Order        int                `json:"order"`
}

type StudentQuizView struct {
	ID            uint                  `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	QuestionCount int                   `json:"questionCount"`
	Questions     []StudentQuizQuestion `json:"questions"`
	Nonce         string                `json:"nonce"` // 提交时必须原样带回
}

// GetQuizForTaking 返回答题视图并签发答题令牌
func (s *QuizService) GetQuizForTaking(userID, quizID uint) (*StudentQuizView, error) {
	quiz, err := s.Repo.FindQuizByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	questions, err := s.loadQuestions(quizID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, util.ErrQuizNotFound
	}

	nonce, err := util.GenerateQuizNonce(userID, quizID, s.Cfg.JWT.Secret)
	if err != nil {
		return nil, err
	}

	view := &StudentQuizView{
		ID:            quiz.ID,
		Title:         quiz.Title,
		Description:   quiz.Description,
		QuestionCount: len(questions),
		Questions:     make([]StudentQuizQuestion, len(questions)),
		Nonce:         nonce,
	}
	for i, q := range questions {
		view.Questions[i] = StudentQuizQuestion{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Options:      q.Options,
			Order:        q.Order,
		}
	}

	return view, nil
}

// loadQuestions 题目数据极少变更，读路径走 Redis 缓存
func (s *QuizService) loadQuestions(quizID uint) ([]model.QuizQuestion, error) {
	key := fmt.Sprintf("%s%d", questionCacheKeyPrefix, quizID)
	ctx := context.Background()

	if s.Redis != nil {
		if val, err := s.Redis.Get(ctx, key).Result(); err == nil {
			var cached []model.QuizQuestion
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
		}
	}

	questions, err := s.Repo.ListQuestions(quizID)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if data, err := json.Marshal(questions); err == nil {
			s.Redis.Set(ctx, key, data, questionCacheTTL)
		}
	}

	return questions, nil
}

func (s *QuizService) invalidateQuestionCache(quizID uint) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf("%s%d", questionCacheKeyPrefix, quizID)
	s.Redis.Del(context.Background(), key)
}
