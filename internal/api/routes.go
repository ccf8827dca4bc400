package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/auth"
	"cvforge/internal/config"
	"cvforge/internal/pdf"
	"cvforge/internal/storage"
)

// RegisterRoutes 注册 /api 下的全部业务路由。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
	renderer pdf.Renderer,
) {
	resumeHandler := NewResumeHandler(db)
	authHandler := NewAuthHandler(
		db, authService, redisClient, logger,
		cfg.Auth.LoginRateLimitPerHour,
		cfg.Auth.LoginLockThreshold,
		cfg.Auth.LoginLockTTL,
		cfg.API.CookieDomain,
	)
	exportHandler := NewExportHandler(db, resumeHandler, asynqClient, storageClient)
	pdfHandler := NewPDFHandler(renderer)
	wsHandler := NewWsHandler(redisClient, authService, logger, nil)
	authMiddleware := middleware.AuthMiddleware(authService)

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/ws", wsHandler.HandleConnection)

		apiGroup.POST("/register", authHandler.Register)
		apiGroup.POST("/login", authHandler.Login)
		apiGroup.POST("/refresh", authHandler.Refresh)
		apiGroup.POST("/logout", authMiddleware, authHandler.Logout)
		apiGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)

		apiGroup.POST("/generate-pdf", authMiddleware, pdfHandler.GeneratePDF)

		resumeGroup := apiGroup.Group("/resume/:userId")
		resumeGroup.Use(authMiddleware)
		{
			resumeGroup.GET("", resumeHandler.GetResume)
			resumeGroup.POST("", resumeHandler.SaveResume)

			resumeGroup.POST("/variation", resumeHandler.CreateVariation)
			resumeGroup.PUT("/variation/:variationId/rename", resumeHandler.RenameVariation)
			resumeGroup.PUT("/variation/:variationId/default", resumeHandler.SetDefaultVariation)
			resumeGroup.DELETE("/variation/:variationId", resumeHandler.DeleteVariation)

			resumeGroup.POST("/export", exportHandler.StartExport)
			resumeGroup.GET("/export/:exportId", exportHandler.ExportStatus)
		}
	}
}
