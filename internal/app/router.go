package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kc-steward.io/steward/internal/api/handlers"
	"kc-steward.io/steward/internal/api/middleware"
	"kc-steward.io/steward/internal/config"
	"kc-steward.io/steward/internal/pkg/logger"
)

const apiBasePath = "/api/v1"

// defaultAllowedOrigins serves the local web console dev servers.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

func newRouter(cfg *config.Config, server *handlers.Server) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Metrics(),
		cors.New(buildCORSConfig(cfg)),
		middleware.ErrorHandler(),
	)

	router.GET("/health/live", server.GetLiveness)
	router.GET("/health/ready", server.GetReadiness)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group(apiBasePath)
	api.Use(authMiddleware(cfg), middleware.MustOpenAPIValidator(apiBasePath))

	read := middleware.RequirePermission(middleware.PermRealmRead)
	api.GET("/clusters", read, server.ListClusters)
	api.GET("/topology", read, server.GetTopology)
	api.GET("/tags", read, server.ListTags)
	api.POST("/comparisons", read, server.CompareRealms)
	api.POST("/comparisons/sync", middleware.RequirePermission(middleware.PermRealmSync), server.SyncEntities)
	api.POST("/tags/plan", read, server.PlanTags)
	api.POST("/tags/apply", middleware.RequirePermission(middleware.PermTagsWrite), server.ApplyTags)

	level := gin.WrapH(logger.HTTPHandler())
	admin := middleware.RequirePermission(middleware.PermAdmin)
	api.GET("/log/level", admin, level)
	api.PUT("/log/level", admin, level)

	return router
}

// authMiddleware verifies operator tokens, or grants admin to every caller when auth is off.
func authMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.Security.AuthEnabled {
		logger.Warn("Authentication disabled; every request runs as admin")
		return middleware.AnonymousAdmin()
	}
	return middleware.JWTAuth(jwtConfigFrom(cfg))
}

func jwtConfigFrom(cfg *config.Config) middleware.JWTConfig {
	keys := make([][]byte, 0, len(cfg.Security.JWTVerificationKeys))
	for _, k := range cfg.Security.JWTVerificationKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	return middleware.JWTConfig{
		SigningKey:       []byte(cfg.Security.SessionSecret),
		VerificationKeys: keys,
		Issuer:           cfg.Security.JWTIssuer,
		ExpiresIn:        cfg.Security.TokenLifetime,
	}
}

// buildCORSConfig never combines a wildcard origin with credentials.
func buildCORSConfig(cfg *config.Config) cors.Config {
	out := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}

	if cfg.CORS.UnsafeAllowAllOrigins {
		out.AllowAllOrigins = true
		out.AllowCredentials = false
		return out
	}

	origins := make([]string, 0, len(cfg.CORS.AllowedOrigins))
	for _, o := range cfg.CORS.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" || o == "*" {
			continue
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		origins = append(origins, defaultAllowedOrigins...)
	}
	out.AllowOrigins = origins
	return out
}
