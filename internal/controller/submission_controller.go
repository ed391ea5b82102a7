package controller

import (
	"errors"
	"net/http"

	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

// SubmissionController 学生答题接口：获取答题视图和提交答案
type SubmissionController struct {
	QuizService    *service.QuizService
	GradingService *service.GradingService
	JWTSecret      string
}

func NewSubmissionController(quizSvc *service.QuizService, gradingSvc *service.GradingService, jwtSecret string) *SubmissionController {
	return &SubmissionController{
		QuizService:    quizSvc,
		GradingService: gradingSvc,
		JWTSecret:      jwtSecret,
	}
}

// SubmitQuizRequest 答案按题目ID索引，值为字符串（单选）或字符串数组（多选）
type SubmitQuizRequest struct {
	Nonce   string                         `json:"nonce" binding:"required"`
	Answers map[uint]model.SubmittedAnswer `json:"answers"`
}

// @Summary 获取测验答题视图
// @Description 返回题目（不含答案）和本次答题令牌
// @Tags 答题模块
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id} [get]
func (c *SubmissionController) GetQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	view, err := c.QuizService.GetQuizForTaking(claims.UserID, id)
	if err != nil {
		if errors.Is(err, util.ErrQuizNotFound) {
			util.NotFound(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, view)
}

// @Summary 提交测验答案
// @Description 判分并返回逐题反馈。只有首次提交会保存答题记录并发放经验值，重复提交仅返回判分结果，不产生任何写入。
// @Tags 答题模块
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body SubmitQuizRequest true "答题令牌和答案"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id}/submit [post]
func (c *SubmissionController) SubmitQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	var req SubmitQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	// 答题令牌必须在判分和落库之前校验
	if err := util.VerifyQuizNonce(req.Nonce, claims.UserID, id, c.JWTSecret); err != nil {
		util.Error(ctx, http.StatusUnauthorized, err.Error())
		return
	}

	result, err := c.GradingService.SubmitQuiz(claims.UserID, id, service.QuizSubmission{Answers: req.Answers})
	if err != nil {
		monitoring.SubmissionCounter.WithLabelValues("error").Inc()
		switch {
		case errors.Is(err, util.ErrQuizNotFound):
			util.NotFound(ctx, err.Error())
		case errors.Is(err, util.ErrSubmissionFailed):
			util.Error(ctx, http.StatusServiceUnavailable, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	if result.Rewarded {
		monitoring.SubmissionCounter.WithLabelValues("first").Inc()
	} else {
		monitoring.SubmissionCounter.WithLabelValues("replay").Inc()
	}

	util.Success(ctx, result)
}
