package app

import (
	"hackathon_backend/internal/config"
	"hackathon_backend/internal/middleware"
	"hackathon_backend/internal/model"

	"hackathon_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.POST("/password-reset", c.auth.RequestPasswordReset)
		public.POST("/password-reset/confirm", c.auth.ConfirmPasswordReset)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.user.GetProfile)
		authGroup.PUT("/profile", c.user.UpdateProfile)

		// 项目
		authGroup.GET("/projects", c.project.List)
		authGroup.GET("/projects/:projectId", c.project.Get)
		authGroup.GET("/projects/:projectId/document", c.project.DownloadDocument)

		// 步骤评审
		steps := authGroup.Group("/projects/:projectId/steps/:stepNumber")
		{
			steps.GET("", c.step.Get)
			steps.POST("/start", c.step.Start)
			steps.POST("/submit", c.step.Submit)
			steps.GET("/comments", c.step.GetComments)
			steps.POST("/comments", c.step.CreateComment)
			steps.DELETE("/comments/:commentId", c.step.DeleteComment)
		}

		// 队伍
		authGroup.GET("/teams", c.team.List)
		authGroup.GET("/teams/:teamId", c.team.Get)

		// 导师专属接口
		mentorGroup := authGroup.Group("")
		mentorGroup.Use(middleware.RoleMiddleware(model.Mentor))
		{
			mentorGroup.POST("/projects", c.project.Create)
			mentorGroup.PUT("/projects/:projectId", c.project.Update)
			mentorGroup.POST("/projects/:projectId/document", c.project.UploadDocument)
			mentorGroup.DELETE("/projects/:projectId", c.project.Delete)

			mentorGroup.POST("/projects/:projectId/steps/:stepNumber/timer", c.step.SetTimer)
			mentorGroup.POST("/projects/:projectId/steps/:stepNumber/accept", c.step.Accept)
			mentorGroup.POST("/projects/:projectId/steps/:stepNumber/reject", c.step.Reject)

			mentorGroup.POST("/teams", c.team.Create)
			mentorGroup.PUT("/teams/:teamId", c.team.Update)
			mentorGroup.DELETE("/teams/:teamId", c.team.Delete)
			mentorGroup.POST("/teams/:teamId/members", c.team.AddMember)
			mentorGroup.DELETE("/teams/:teamId/members/:memberId", c.team.RemoveMember)
		}
	}
}
