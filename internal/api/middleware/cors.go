package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig is the gin-contrib/cors configuration.
type CORSConfig = cors.Config

// DefaultCORSConfig returns CORS configuration for the token and domain APIs.
// allow decides which front-end origins may read the responses.
func DefaultCORSConfig(allow func(origin string) bool) CORSConfig {
	return CORSConfig{
		AllowOriginFunc: allow,
		AllowMethods:    []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Accept",
			"Origin",
			"X-Requested-With",
		},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
}

// CORS creates a CORS middleware with the provided configuration.
// A config naming no origins at all allows every origin.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	if cfg.AllowOriginFunc == nil && len(cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	}
	return cors.New(cfg)
}
