package util

import "time"

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	// QuizCompletionXP 首次完成测验奖励的经验值
	QuizCompletionXP = 200

	// QuizNonceTTL 答题令牌有效期，超时需重新打开测验页面
	QuizNonceTTL = 30 * time.Minute
)
