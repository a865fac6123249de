package app

import (
	"commsense_backend/docs"
	"commsense_backend/internal/config"
	"commsense_backend/internal/middleware"
	"commsense_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. public
	a.registerPublicRoutes(router, c)

	// 2. authenticated
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg, a.Services.Auth))
	{
		a.registerAccountRoutes(authGroup, c)
		a.registerAssessmentRoutes(authGroup, c)
		a.registerLearningRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerAccountRoutes(group *gin.RouterGroup, c *controllers) {
	group.POST("/logout", c.auth.Logout)
	group.GET("/me", c.auth.Me)
}

func (a *App) registerAssessmentRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/generate-questions", c.quiz.Generate)
	group.GET("/quizzes/:quizId", c.quiz.Detail)
	group.GET("/quizzes/:quizId/graphs", c.feedback.Graphs)
	group.GET("/quizzes/:quizId/report", c.feedback.Report)

	group.POST("/save-video", c.answer.SaveVideo)
	group.POST("/final-feedback", c.feedback.FinalFeedback)
	group.GET("/history", c.feedback.History)
}

func (a *App) registerLearningRoutes(group *gin.RouterGroup, c *controllers) {
	group.POST("/learn-prompt", c.learning.CreatePlan)
	group.GET("/learn-history", c.learning.History)
}
