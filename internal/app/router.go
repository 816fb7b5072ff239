package app

import (
	"aut_portal_backend/docs"
	"aut_portal_backend/internal/config"
	"aut_portal_backend/internal/middleware"
	"aut_portal_backend/internal/model"
	"aut_portal_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, s *services, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerStudentRoutes(authGroup, c, s)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)

		public.POST("/auth/register", c.auth.Register)
		public.GET("/auth/verify", c.auth.Verify)
		public.POST("/auth/login", c.auth.Login)

		public.GET("/quiz/share/:token", c.quiz.GetShared)

		public.GET("/courses", c.course.ListCourses)
		public.GET("/courses/:id", c.course.GetCourse)
		public.GET("/courses/:id/materials", c.course.ListMaterials)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers, s *services) {
	group.GET("/profile", c.auth.Profile)

	aiLimit := middleware.AIRateLimitMiddleware(s.aiLimiter)

	quiz := group.Group("/quiz")
	{
		quiz.POST("/upload", c.quiz.UploadFile)
		quiz.GET("", c.quiz.ListQuizzes)
		quiz.POST("", c.quiz.CreateQuiz)
		quiz.POST("/generate", aiLimit, c.quiz.Generate)
		quiz.GET("/:id", c.quiz.GetQuiz)
		quiz.GET("/:id/status", c.quiz.GetStatus)
		quiz.PATCH("/:id", c.quiz.Share)
		quiz.DELETE("/:id", c.quiz.DeleteQuiz)
		quiz.POST("/:id/chat", aiLimit, c.quiz.Chat)
		quiz.POST("/:id/attempt", c.quiz.RecordAttempt)
		quiz.GET("/:id/export", c.quiz.Export)
	}

	group.GET("/analytics", c.analytics.GetAnalytics)
	group.GET("/leaderboard", c.analytics.GetLeaderboard)

	group.POST("/courses/:id/enroll", c.course.Enroll)
	group.DELETE("/courses/:id/enroll", c.course.Unenroll)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/courses", c.course.CreateCourse)
		admin.PUT("/courses/:id", c.course.UpdateCourse)
		admin.DELETE("/courses/:id", c.course.DeleteCourse)
		admin.POST("/courses/:id/materials", c.course.CreateMaterial)
		admin.DELETE("/courses/:id/materials/:materialId", c.course.DeleteMaterial)
		admin.POST("/upload", c.course.UploadMaterialFile)
	}
}
