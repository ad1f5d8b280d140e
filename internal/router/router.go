package router

import (
	"time"

	_ "github.com/3Eeeecho/go-fluxshare/docs"
	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/handlers"
	"github.com/3Eeeecho/go-fluxshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fluxshare/internal/middlewares"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/metrics"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers 路由需要的全部 Handler
type Handlers struct {
	Auth   *handlers.AuthHandler
	User   *handlers.UserHandler
	Admin  *handlers.AdminHandler
	File   *handlers.FileHandler
	Folder *handlers.FolderHandler
	Upload *handlers.UploadHandler
	Share  *handlers.ShareHandler
	Health *handlers.HealthHandler
}

// Deps 中间件依赖
type Deps struct {
	TokenParser middlewares.TokenParser
	Users       middlewares.UserLookup
	Metrics     *metrics.Registry
}

func InitRouter(h Handlers, deps Deps, cfg *config.Config) *gin.Engine {
	switch cfg.Server.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if !cfg.Server.TrustProxy {
		// 限流与审计使用的客户端 IP 不能被请求头伪造
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(
		middlewares.RequestID(),
		middlewares.Recovery(),
		middlewares.RequestLogger(deps.Metrics),
		cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CorsOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", utils.CSRFHeader, middlewares.RequestIDHeader},
			ExposeHeaders:    []string{middlewares.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	// 健康检查与指标不限流
	router.GET("/healthz", h.Health.Healthz)
	router.GET("/readyz", h.Health.Readyz)
	if cfg.Metrics.Enabled && deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if cfg.Server.Mode != gin.ReleaseMode {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	limited := router.Group("/")
	limited.Use(middlewares.RateLimitMiddleware(&cfg.RateLimit))

	// 认证相关路由 (无需认证)
	authGroup := limited.Group("/auth")
	{
		authGroup.GET("/csrf", h.Auth.CSRF)
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", middlewares.CSRFMiddleware(), h.Auth.Logout)
		authGroup.POST("/forgot-password", h.Auth.ForgotPassword)
		authGroup.POST("/reset-password", h.Auth.ResetPassword)
	}

	// 公开分享
	shareGroup := limited.Group("/s/:token")
	{
		shareGroup.GET("", h.Share.GetShareMetadata)
		shareGroup.POST("/verify", h.Share.VerifySharePassword)
		shareGroup.GET("/download", h.Share.DownloadSharedFile)
	}

	// 需要认证的路由组
	v1 := limited.Group("/api/v1")
	v1.Use(middlewares.AuthMiddleware(deps.TokenParser, deps.Users), middlewares.CSRFMiddleware())
	{
		v1.GET("/me", h.User.GetUserProfile)
		v1.POST("/me/change-password", h.Auth.ChangePassword)

		folderGroup := v1.Group("/folders")
		{
			folderGroup.GET("", h.Folder.ListFolders)
			folderGroup.POST("", h.Folder.CreateFolder)
			folderGroup.DELETE("/:id", h.Folder.DeleteFolder)
		}

		fileGroup := v1.Group("/files")
		{
			fileGroup.GET("", h.File.ListUserFiles)
			fileGroup.PATCH("/:id", h.File.UpdateFile)
			fileGroup.DELETE("/:id", h.File.DeleteFile)
			fileGroup.GET("/:id/download", h.File.DownloadFile)
		}

		uploadGroup := v1.Group("/uploads")
		{
			uploadGroup.POST("/initiate", h.Upload.Initiate)
			uploadGroup.POST("/resume", h.Upload.Resume)
			uploadGroup.POST("/complete", h.Upload.Complete)
			uploadGroup.POST("/abort", h.Upload.Abort)
		}

		sharesGroup := v1.Group("/shares")
		{
			sharesGroup.GET("", h.Share.ListUserShares)
			sharesGroup.POST("", h.Share.CreateShare)
			sharesGroup.DELETE("/:id", h.Share.RevokeShare)
		}

		adminGroup := v1.Group("/admin", middlewares.RequireRole(models.RoleAdmin))
		{
			adminGroup.GET("/users", h.Admin.ListUsers)
			adminGroup.PATCH("/users/:id/ban", h.Admin.SetBanned)
			adminGroup.GET("/stats", h.Admin.Stats)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		response.FromError(c, xerr.ErrNotFound)
	})

	return router
}
