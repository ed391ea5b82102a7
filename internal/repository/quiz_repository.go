package repository

import (
	"quiz_platform_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) CreateQuiz(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) FindQuizByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.First(&quiz, id).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) UpdateQuiz(quiz *model.Quiz) error {
	return r.DB.Save(quiz).Error
}

// DeleteQuiz 级联删除测验及其题目和答题记录
func (r *QuizRepository) DeleteQuiz(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", id).Delete(&model.AnswerRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quiz_id = ?", id).Delete(&model.QuizQuestion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Quiz{}, id).Error
	})
}

type QuizListRow struct {
	model.Quiz
	QuestionCount int `json:"questionCount"`
}

func (r *QuizRepository) ListQuizzes(page, limit int) ([]QuizListRow, int64, error) {
	var total int64
	if err := r.DB.Model(&model.Quiz{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var quizzes []QuizListRow
	query := r.DB.Table("quizzes z").
		Select("z.*, " +
			"(SELECT COUNT(*) FROM quiz_questions q WHERE q.quiz_id = z.id AND q.deleted_at IS NULL) as question_count").
		Where("z.deleted_at IS NULL")

	if limit > 0 {
		offset := (page - 1) * limit
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Order("z.created_at desc").Scan(&quizzes).Error
	return quizzes, total, err
}

func (r *QuizRepository) CreateQuestion(question *model.QuizQuestion) error {
	return r.DB.Create(question).Error
}

func (r *QuizRepository) FindQuestionByID(id uint) (*model.QuizQuestion, error) {
	var q model.QuizQuestion
	err := r.DB.First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) UpdateQuestion(question *model.QuizQuestion) error {
	return r.DB.Save(question).Error
}

// DeleteQuestion 级联删除题目及其答题记录
func (r *QuizRepository) DeleteQuestion(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&model.AnswerRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.QuizQuestion{}, id).Error
	})
}

// ListQuestions 按排序字段返回测验的全部题目，反馈顺序跟随该顺序
func (r *QuizRepository) ListQuestions(quizID uint) ([]model.QuizQuestion, error) {
	var qs []model.QuizQuestion
	err := r.DB.Where("quiz_id = ?", quizID).Order("sort_order asc, id asc").Find(&qs).Error
	return qs, err
}
