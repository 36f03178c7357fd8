// Package http provides the admin authentication and public rate limiting middleware.
package http

import (
	"crypto/sha256"
	"log/slog"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	authService "github.com/allisson/boltgate/internal/auth/service"
	apperrors "github.com/allisson/boltgate/internal/errors"
	"github.com/allisson/boltgate/internal/httputil"
)

const bearerPrefix = "bearer "

// AdminAuthMiddleware requires "Authorization: Bearer <token>" matching the configured
// Argon2id hash. Tokens that verified once are remembered by their SHA-256 digest so the
// slow hash runs once per token and process.
//
// An empty tokenHash rejects every request.
//
// Error handling:
//   - Missing or malformed Authorization header → 401 Unauthorized
//   - Token that does not match the hash → 401 Unauthorized
func AdminAuthMiddleware(
	tokenService authService.AdminTokenService,
	tokenHash string,
	logger *slog.Logger,
) gin.HandlerFunc {
	var verified sync.Map // map[[32]byte]struct{}

	if tokenHash == "" {
		logger.Warn("admin token hash not configured - admin API is disabled")
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < len(bearerPrefix) ||
			!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			logger.Debug("authentication failed: missing or malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		plainToken := strings.TrimSpace(authHeader[len(bearerPrefix):])
		if plainToken == "" || tokenHash == "" {
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		digest := sha256.Sum256([]byte(plainToken))
		if _, ok := verified.Load(digest); !ok {
			if !tokenService.VerifyToken(plainToken, tokenHash) {
				logger.Debug("authentication failed: invalid admin token",
					slog.String("client_ip", c.ClientIP()))
				httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
				c.Abort()
				return
			}
			verified.Store(digest, struct{}{})
		}

		c.Next()
	}
}
