// Package http provides the HTTP server, its router and the infrastructure endpoints.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authHTTP "github.com/allisson/boltgate/internal/auth/http"
	authService "github.com/allisson/boltgate/internal/auth/service"
	boltcardHTTP "github.com/allisson/boltgate/internal/boltcard/http"
	"github.com/allisson/boltgate/internal/config"
	"github.com/allisson/boltgate/internal/metrics"
	voucherHTTP "github.com/allisson/boltgate/internal/voucher/http"
)

const readinessTimeout = 2 * time.Second

// Server represents the HTTP server
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// Handlers groups the domain handlers mounted by SetupRouter.
type Handlers struct {
	Card    *boltcardHTTP.CardHandler
	LNURL   *boltcardHTTP.LNURLHandler
	Reset   *boltcardHTTP.ResetHandler
	Voucher *voucherHTTP.VoucherHandler
}

// NewServer creates a new HTTP server
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the gin engine. Public LNURL routes are rate limited per client IP
// when enabled; admin routes require the admin bearer token.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	handlers Handlers,
	tokenService authService.AdminTokenService,
	metricsProvider *metrics.Provider,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	router.Use(createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger))
	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), metricsProvider.Namespace()))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	public := router.Group("/api")
	if cfg.RateLimitEnabled {
		public.Use(authHTTP.RateLimitMiddleware(ctx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}
	{
		public.GET("/boltcard/callback", handlers.LNURL.CallbackHandler)
		public.POST("/boltcard/callback", handlers.LNURL.CallbackHandler)
		public.GET("/boltcard/:cardId", handlers.LNURL.TapHandler)
		public.GET("/boltcard/:cardId/balance", handlers.LNURL.BalanceHandler)
		public.GET("/boltcard/topup/:cardId", handlers.LNURL.PayRequestHandler)
		public.GET("/boltcard/topup/:cardId/callback", handlers.LNURL.TopUpCallbackHandler)
		public.POST("/boltcard/topup/webhook", handlers.LNURL.WebhookHandler)

		public.GET("/vouchers/callback", handlers.Voucher.CallbackHandler)
		public.POST("/vouchers/callback", handlers.Voucher.CallbackHandler)
		public.GET("/vouchers/:id/status", handlers.Voucher.StatusHandler)
		public.GET("/vouchers/:id/lnurlw", handlers.Voucher.LNURLWHandler)
	}

	admin := router.Group("/api")
	admin.Use(authHTTP.AdminAuthMiddleware(tokenService, cfg.AdminTokenHash, s.logger))
	{
		cards := admin.Group("/cards")
		{
			cards.POST("", handlers.Card.CreateHandler)
			cards.GET("", handlers.Card.ListHandler)
			cards.GET("/:id", handlers.Card.GetHandler)
			cards.PATCH("/:id", handlers.Card.UpdateHandler)
			cards.DELETE("/:id", handlers.Card.WipeHandler)
			cards.POST("/:id/activate", handlers.Card.ActivateHandler())
			cards.POST("/:id/disable", handlers.Card.DisableHandler())
			cards.POST("/:id/enable", handlers.Card.EnableHandler())
			cards.POST("/:id/reset-daily", handlers.Card.ResetDailyHandler())
			cards.POST("/:id/adjust", handlers.Card.AdjustHandler)
			cards.GET("/:id/transactions", handlers.Card.ListTransactionsHandler)
			cards.GET("/:id/program", handlers.Card.ProgramHandler)
			cards.GET("/:id/topup-lnurl", handlers.Card.TopUpLNURLHandler)
		}

		admin.POST("/boltcard/reset/:cardId", handlers.Reset.ProveHandler)
		admin.POST("/boltcard/reset/:cardId/confirm", handlers.Reset.ConfirmHandler)

		admin.POST("/vouchers", handlers.Voucher.CreateHandler)
		admin.DELETE("/vouchers/:id", handlers.Voucher.CancelHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// healthHandler reports liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports readiness once the database answers a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	database := "ok"
	if s.db == nil {
		database = "error"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.Any("error", err))
			database = "error"
		}
	}

	if database != "ok" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": database},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": database},
	})
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
