package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shimesaba-type0/openlockey/internal/auth"
	"github.com/shimesaba-type0/openlockey/internal/config"
	"github.com/shimesaba-type0/openlockey/internal/handler"
	"github.com/shimesaba-type0/openlockey/internal/lockout"
	"github.com/shimesaba-type0/openlockey/internal/middleware"
)

// SetupRouter configures the Gin engine and API routes.
func SetupRouter(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	policy := lockout.New(cfg.Auth.FailLockAttempts, cfg.Auth.LockDuration())
	svc := auth.NewService(db, policy, cfg.Auth.SessionTTL())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ====== API ======
	api := r.Group("/api")

	// 登录/注册/重置申请接口（不需要鉴权）
	authHandler := handler.NewAuthHandler(db, svc, cfg.Auth)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.POST("/auth/reset-request", authHandler.SubmitResetRequest)
	api.POST("/password/generate", authHandler.GeneratePassword)

	// 需要登录才能访问的接口
	protected := api.Group("")
	protected.Use(middleware.SessionMiddleware(svc, cfg.Auth.CookieName))

	userHandler := handler.NewUserHandler(db, svc, cfg.Auth)
	protected.GET("/me", userHandler.GetMe)
	protected.PUT("/me", userHandler.UpdateMe)
	protected.PUT("/me/password", userHandler.ChangePassword)

	// 管理员接口
	admin := protected.Group("/admin")
	admin.Use(middleware.AdminMiddleware())

	adminHandler := handler.NewAdminHandler(db, svc, cfg.Auth)
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/users/:id", adminHandler.GetUser)
	admin.PUT("/users/:id", adminHandler.UpdateUser)
	admin.POST("/users/:id/reset-password", adminHandler.ResetPassword)
	admin.GET("/reset-requests", adminHandler.ListResetRequests)
	admin.PUT("/reset-requests/:id", adminHandler.ResolveResetRequest)
	admin.GET("/stats", adminHandler.Stats)
	admin.GET("/login-history", adminHandler.ListLoginHistory)

	exportHandler := handler.NewExportHandler(db)
	admin.GET("/login-history/export/csv", exportHandler.ExportCSV)
	admin.GET("/login-history/export/xlsx", exportHandler.ExportXLSX)

	return r
}
