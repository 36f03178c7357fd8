// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	authService "github.com/allisson/boltgate/internal/auth/service"
	boltcardService "github.com/allisson/boltgate/internal/boltcard/service"
	"github.com/allisson/boltgate/internal/config"
	"github.com/allisson/boltgate/internal/database"
	apphttp "github.com/allisson/boltgate/internal/http"
	"github.com/allisson/boltgate/internal/metrics"
	"github.com/allisson/boltgate/internal/scheduler"
	"github.com/allisson/boltgate/internal/wallet"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	sealer          *boltcardService.KeeperSealer
	walletClient    *wallet.Client

	// Managers and services
	txManager         database.TxManager
	idHasher          boltcardService.IDHasher
	resetTokenService boltcardService.ResetTokenService
	adminTokenService authService.AdminTokenService

	// Boltcard and voucher components
	boltcard boltcardComponents
	voucher  voucherComponents

	// Servers and workers
	httpServer    *apphttp.Server
	metricsServer *apphttp.MetricsServer
	scheduler     *scheduler.Scheduler

	// Initialization flags and mutex for thread-safety
	mu                    sync.Mutex
	loggerInit            sync.Once
	dbInit                sync.Once
	metricsProviderInit   sync.Once
	businessMetricsInit   sync.Once
	sealerInit            sync.Once
	walletClientInit      sync.Once
	txManagerInit         sync.Once
	idHasherInit          sync.Once
	resetTokenServiceInit sync.Once
	adminTokenServiceInit sync.Once
	httpServerInit        sync.Once
	metricsServerInit     sync.Once
	schedulerInit         sync.Once
	initErrors            map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// once runs init a single time for key and replays its error on later calls.
func (c *Container) once(o *sync.Once, key string, init func() error) error {
	o.Do(func() {
		if err := init(); err != nil {
			c.mu.Lock()
			c.initErrors[key] = err
			c.mu.Unlock()
		}
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[key]
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	err := c.once(&c.dbInit, "db", func() error {
		var err error
		c.db, err = c.initDB()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	err := c.once(&c.txManagerInit, "txManager", func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for tx manager: %w", err)
		}
		c.txManager = database.NewTxManager(db)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.txManager, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider, or nil when metrics are
// disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	err := c.once(&c.metricsProviderInit, "metricsProvider", func() error {
		if !c.config.MetricsEnabled {
			return nil
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("failed to create metrics provider: %w", err)
		}
		c.metricsProvider = provider
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. It is a no-op recorder when
// metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	err := c.once(&c.businessMetricsInit, "businessMetrics", func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return nil
		}
		c.businessMetrics, err = metrics.NewBusinessMetrics(provider.MeterProvider(), provider.Namespace())
		if err != nil {
			return fmt.Errorf("failed to create business metrics: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.businessMetrics, nil
}

// Sealer returns the key custody sealer opened from KMS_KEY_URI.
func (c *Container) Sealer(ctx context.Context) (*boltcardService.KeeperSealer, error) {
	err := c.once(&c.sealerInit, "sealer", func() error {
		if c.config.KMSKeyURI == "" {
			return errors.New("KMS_KEY_URI is required")
		}
		sealer, err := boltcardService.OpenKeeperSealer(ctx, c.config.KMSKeyURI)
		if err != nil {
			return fmt.Errorf("failed to open key sealer: %w", err)
		}
		c.sealer = sealer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.sealer, nil
}

// WalletClient returns the custodial wallet client.
func (c *Container) WalletClient() *wallet.Client {
	c.walletClientInit.Do(func() {
		c.walletClient = wallet.NewClient(wallet.Config{
			ProductionURL: c.config.WalletAPIURLProduction,
			StagingURL:    c.config.WalletAPIURLStaging,
			Timeout:       c.config.WalletTimeout,
		}, &http.Client{})
	})
	return c.walletClient
}

// IDHasher returns the card id hasher keyed from SERVER_SECRET.
func (c *Container) IDHasher() (boltcardService.IDHasher, error) {
	err := c.once(&c.idHasherInit, "idHasher", func() error {
		var err error
		c.idHasher, err = boltcardService.NewIDHasher(c.config.ServerSecret)
		if err != nil {
			return fmt.Errorf("failed to create id hasher: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.idHasher, nil
}

// ResetTokenService returns the force-reset token service keyed from SERVER_SECRET.
func (c *Container) ResetTokenService() (boltcardService.ResetTokenService, error) {
	err := c.once(&c.resetTokenServiceInit, "resetTokenService", func() error {
		var err error
		c.resetTokenService, err = boltcardService.NewResetTokenService(
			c.config.ServerSecret,
			c.config.ResetTokenExpiration,
		)
		if err != nil {
			return fmt.Errorf("failed to create reset token service: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.resetTokenService, nil
}

// AdminTokenService returns the admin bearer token service.
func (c *Container) AdminTokenService() authService.AdminTokenService {
	c.adminTokenServiceInit.Do(func() {
		c.adminTokenService = authService.NewAdminTokenService()
	})
	return c.adminTokenService
}

// HTTPServer returns the HTTP server with its router set up.
func (c *Container) HTTPServer(ctx context.Context) (*apphttp.Server, error) {
	err := c.once(&c.httpServerInit, "httpServer", func() error {
		var err error
		c.httpServer, err = c.initHTTPServer(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*apphttp.MetricsServer, error) {
	err := c.once(&c.metricsServerInit, "metricsServer", func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		if provider == nil {
			return nil
		}
		c.metricsServer = apphttp.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.metricsServer, nil
}

// Scheduler returns the maintenance job scheduler with every configured job registered.
func (c *Container) Scheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	err := c.once(&c.schedulerInit, "scheduler", func() error {
		var err error
		c.scheduler, err = c.initScheduler(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.scheduler, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.scheduler != nil {
		if err := c.scheduler.Stop(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("scheduler stop: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.sealer != nil {
		if err := c.sealer.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("sealer close: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(shutdownErrors...))
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initHTTPServer creates the HTTP server and mounts every handler.
func (c *Container) initHTTPServer(ctx context.Context) (*apphttp.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}
	cardHandler, lnurlHandler, resetHandler, err := c.BoltcardHandlers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get boltcard handlers for http server: %w", err)
	}
	voucherHandler, err := c.VoucherHandler(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher handler for http server: %w", err)
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := apphttp.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(ctx, c.config, apphttp.Handlers{
		Card:    cardHandler,
		LNURL:   lnurlHandler,
		Reset:   resetHandler,
		Voucher: voucherHandler,
	}, c.AdminTokenService(), provider)

	return server, nil
}

// initScheduler registers the daily reset, voucher expiry and top-up sweep jobs.
func (c *Container) initScheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	logger := c.Logger()

	cardUseCase, err := c.CardUseCase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get card use case for scheduler: %w", err)
	}
	topUpUseCase, err := c.TopUpUseCase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get top-up use case for scheduler: %w", err)
	}
	voucherUseCase, err := c.VoucherUseCase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher use case for scheduler: %w", err)
	}

	s := scheduler.New(logger, scheduler.DefaultJobTimeout)
	jobs := []struct {
		name     string
		schedule string
		job      scheduler.JobFunc
	}{
		{
			scheduler.JobDailyReset,
			c.config.ScheduleDailyReset,
			scheduler.DailyResetJob(cardUseCase, logger, func() time.Time { return time.Now().UTC() }),
		},
		{scheduler.JobVoucherExpiry, c.config.ScheduleVoucherExpiry, scheduler.VoucherExpiryJob(voucherUseCase)},
		{scheduler.JobTopUpSweep, c.config.ScheduleTopUpSweep, scheduler.TopUpSweepJob(topUpUseCase, logger)},
	}
	for _, j := range jobs {
		if err := s.Add(j.name, j.schedule, j.job); err != nil {
			return nil, err
		}
	}
	return s, nil
}
