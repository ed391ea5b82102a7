package service

import (
	"errors"

	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/repository"
	"quiz_platform_backend/internal/util"

	"gorm.io/gorm"
)

type UserService struct {
	UserRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{UserRepo: userRepo}
}

func (s *UserService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// AwardExperience 给用户发放经验值
func (s *UserService) AwardExperience(userID uint, amount int) error {
	if _, err := s.UserRepo.FindByID(userID); err != nil {
		return util.ErrUserNotFound
	}
	return s.UserRepo.UpdateXP(userID, amount)
}
