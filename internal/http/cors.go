package http

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/allisson/boltgate/internal/metrics"
)

// createCORSMiddleware returns the router CORS policy, chosen per route surface.
//
// LNURL routes answer any origin without credentials, since web wallets call them from their
// own origin. Admin routes get CORS headers only when enabled is set and allowOriginsStr
// (comma-separated) names at least one origin; otherwise they get none.
func createCORSMiddleware(enabled bool, allowOriginsStr string, logger *slog.Logger) gin.HandlerFunc {
	lnurl := cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST"},
		AllowHeaders:    []string{"Content-Type"},
		MaxAge:          12 * time.Hour,
	})
	admin := createAdminCORS(enabled, allowOriginsStr, logger)

	return func(c *gin.Context) {
		switch metrics.RouteSurface(c.Request.URL.Path) {
		case metrics.SurfaceLNURL:
			lnurl(c)
		case metrics.SurfaceAdmin:
			if admin != nil {
				admin(c)
			}
		}
	}
}

// createAdminCORS returns nil when CORS is disabled or no origin is configured.
func createAdminCORS(enabled bool, allowOriginsStr string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := parseOrigins(allowOriginsStr)
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no origins configured, admin routes get no CORS headers")
		return nil
	}

	logger.Info("admin CORS enabled",
		slog.Int("origin_count", len(origins)),
		slog.Any("origins", origins))

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// parseOrigins splits a comma-separated origin list, dropping blanks.
func parseOrigins(originsStr string) []string {
	if originsStr == "" {
		return nil
	}

	parts := strings.Split(originsStr, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
