package repository

import (
	"errors"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"

	"gorm.io/gorm"
)

type AnswerRecordRepository struct {
	DB *gorm.DB
}

func NewAnswerRecordRepository(db *gorm.DB) *AnswerRecordRepository {
	return &AnswerRecordRepository{DB: db}
}

func (r *AnswerRecordRepository) CountByQuizAndUser(quizID, userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.AnswerRecord{}).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Count(&count).Error
	return count, err
}

// InsertBatch 在单个事务内写入一次提交的全部答题记录。
// (quiz_id, user_id, question_id) 上的唯一索引保证并发重复提交只有一个事务能提交成功，
// 撞到唯一键冲突说明另一次提交已经落库，整批回滚并返回 ErrAlreadySubmitted。
func (r *AnswerRecordRepository) InsertBatch(records []model.AnswerRecord) error {
	if len(records) == 0 {
		return nil
	}

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return util.ErrAlreadySubmitted
		}
		return err
	}
	return nil
}

func (r *AnswerRecordRepository) ListByQuizAndUser(quizID, userID uint) ([]model.AnswerRecord, error) {
	var records []model.AnswerRecord
	err := r.DB.Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("question_id asc").
		Find(&records).Error
	return records, err
}
