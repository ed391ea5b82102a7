package util

import "errors"

var (
	ErrUserNotFound     = errors.New("用户不存在")
	ErrEmailRegistered  = errors.New("该邮箱已被注册")
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	ErrInvalidNonce     = errors.New("invalid or expired submission nonce")
	ErrSubmissionFailed = errors.New("failed to record submission, please retry")
)
