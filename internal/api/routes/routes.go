package routes

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoolisten/internal/api/handlers"
	"github.com/yoockh/yoolisten/internal/api/middleware"
)

type Deps struct {
	Process *handlers.ProcessHandler
	Chat    *handlers.ChatHandler
	Session *handlers.SessionHandler
	History *handlers.HistoryHandler
	WS      *handlers.WSHandler

	// DebugJWTSecret guards /debug when set.
	DebugJWTSecret string
	// CorsAllowedOrigins is "*" or a comma separated list.
	CorsAllowedOrigins string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(cors.New(corsConfig(d.CorsAllowedOrigins)))

	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/", handlers.Root)

	r.POST("/process", d.Process.Process)
	r.POST("/process-with-summary", d.Process.ProcessWithSummary)
	r.POST("/chat", d.Chat.Chat)
	r.GET("/session/:session_id", d.Session.Get)

	api := r.Group("/api")
	api.GET("/history", d.History.List)
	api.GET("/history/:session_id", d.History.Get)
	api.DELETE("/history/:session_id", d.History.Delete)

	debug := r.Group("/debug")
	debug.Use(middleware.JWTAuth(d.DebugJWTSecret, "admin"))
	debug.GET("/sessions", d.Session.Debug)

	// WebSocket
	r.GET("/ws/chat/:session_id", d.WS.ChatWS)
}

func corsConfig(origins string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "X-Request-Id")
	cfg.ExposeHeaders = []string{"X-Request-Id"}

	origins = strings.TrimSpace(origins)
	if origins == "" || origins == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	cfg.AllowCredentials = true
	return cfg
}
