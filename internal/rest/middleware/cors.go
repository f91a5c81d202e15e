package middleware

import (
	"time"

	"github.com/assistly/billing/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware handles CORS headers. Every origin is allowed unless server.allowed_origins is set.
func CORSMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 24 * time.Hour
	return cors.New(corsConfig)
}
