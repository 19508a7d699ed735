package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lapdesk/lapdesk-backend/internal/config"
	"github.com/lapdesk/lapdesk-backend/internal/handler"
	"github.com/lapdesk/lapdesk-backend/internal/middleware"
	"github.com/lapdesk/lapdesk-backend/internal/response"
	"github.com/lapdesk/lapdesk-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	Report  *handler.ReportHandler
	Share   *handler.ShareHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Token minting is open to the world, so keep it rate limited.
	tokenLimiter := middleware.NewRateLimiter(30, time.Minute)
	shareLimiter := middleware.NewRateLimiter(10, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(tokenLimiter.Middleware())
	{
		auth.POST("/token", handlers.Auth.IssueToken)
	}

	// ─── 2. Session Group (Owner Token) ────────────────────────────────
	sessions := router.Group("/api/v1/sessions")
	sessions.Use(middleware.RequireOwnerToken(authService))
	{
		sessions.POST("/start", handlers.Session.Start)
		sessions.GET("/state", handlers.Session.State)
		sessions.POST("/lap", handlers.Session.Lap)
		sessions.PUT("/batch-mode", handlers.Session.SetBatchMode)
		sessions.POST("/batch-record", handlers.Session.RecordBatch)
		sessions.POST("/pause", handlers.Session.TogglePause)
		sessions.POST("/finish", handlers.Session.Finish)
		sessions.POST("/continue", handlers.Session.Continue)
		sessions.POST("/restart", handlers.Session.Restart)
		sessions.POST("/grade", handlers.Session.Grade)
		sessions.POST("/resume", handlers.Session.Resume)

		sessions.GET("/report", handlers.Report.GetReport)
		sessions.GET("/report/csv", handlers.Report.DownloadCSV)
	}

	// ─── 3. Shares Group ───────────────────────────────────────────────
	// Reads are public and cacheable; writes need an owner token.
	shares := router.Group("/api/v1/shares")
	{
		shares.GET("/:share_id", middleware.CacheControl(300), handlers.Share.Get)
		shares.POST("", shareLimiter.Middleware(), middleware.RequireOwnerToken(authService), handlers.Share.Create)
		shares.DELETE("/:share_id", middleware.RequireOwnerToken(authService), handlers.Share.Delete)
	}

	// ─── 4. WebSocket Group (Owner WS Auth) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireOwnerWSAuth(authService))
	{
		ws.GET("/sessions/stream", handlers.WS.SessionStream)
	}

	return router
}
