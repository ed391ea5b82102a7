package app

import (
	"quiz_platform_backend/docs"
	"quiz_platform_backend/internal/config"
	"quiz_platform_backend/internal/middleware"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	router.Use(middleware.RequestID())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.auth.Profile)

		// 学生答题接口
		authGroup.GET("/quizzes/:id", c.submission.GetQuiz)
		authGroup.POST("/quizzes/:id/submit", c.submission.SubmitQuiz)
	}

	// 管理端接口
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/quizzes", c.quiz.CreateQuiz)
		admin.GET("/quizzes", c.quiz.ListQuizzes)
		admin.GET("/quizzes/:id", c.quiz.GetQuiz)
		admin.PUT("/quizzes/:id", c.quiz.UpdateQuiz)
		admin.DELETE("/quizzes/:id", c.quiz.DeleteQuiz)

		admin.POST("/quizzes/:id/questions", c.quiz.CreateQuestion)
		admin.PUT("/questions/:id", c.quiz.UpdateQuestion)
		admin.DELETE("/questions/:id", c.quiz.DeleteQuestion)
	}
}
