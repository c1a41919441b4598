package app

import (
	"college_portal_backend/internal/config"
	"college_portal_backend/internal/middleware"
	"college_portal_backend/internal/model"
	"college_portal_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		authGroup.GET("/tests", c.test.ListTests)
		authGroup.GET("/tests/:id", c.test.GetTest)
		authGroup.POST("/tests/:id/start", c.attempt.StartAttempt)
		authGroup.POST("/tests/:id/submit", c.attempt.SubmitAttempt)
		authGroup.GET("/attempts/:id", c.attempt.GetAttempt)

		teacher := authGroup.Group("/teacher")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teacher.POST("/tests", c.test.CreateTest)
			teacher.GET("/tests", c.test.ListTests)
			teacher.POST("/tests/:id/patch", c.test.UpdateTest)
			teacher.POST("/tests/:id/delete", c.test.DeleteTest)
			teacher.POST("/tests/:id/assign", c.test.AssignGroups)
			teacher.GET("/tests/:id/attempts", c.test.ListAttempts)
			teacher.GET("/tests/:id/summary", c.test.Summary)
			teacher.POST("/attempts/:id/review", c.attempt.ReviewAttempt)
		}
	}
}
