package app

import (
	"context"
	"fmt"
	"sync"

	boltcardHTTP "github.com/allisson/boltgate/internal/boltcard/http"
	boltcardRepository "github.com/allisson/boltgate/internal/boltcard/repository"
	boltcardUseCase "github.com/allisson/boltgate/internal/boltcard/usecase"
	"github.com/allisson/boltgate/internal/database"
)

// boltcardComponents groups the lazily built Boltcard repositories, use cases and handlers.
type boltcardComponents struct {
	cardRepo         boltcardUseCase.CardRepository
	transactionRepo  boltcardUseCase.TransactionRepository
	pendingTopUpRepo boltcardUseCase.PendingTopUpRepository

	cardUseCase     boltcardUseCase.CardUseCase
	topUpUseCase    boltcardUseCase.TopUpUseCase
	withdrawUseCase boltcardUseCase.WithdrawUseCase
	resetUseCase    boltcardUseCase.ResetUseCase

	cardHandler  *boltcardHTTP.CardHandler
	lnurlHandler *boltcardHTTP.LNURLHandler
	resetHandler *boltcardHTTP.ResetHandler

	reposInit    sync.Once
	cardInit     sync.Once
	topUpInit    sync.Once
	withdrawInit sync.Once
	resetInit    sync.Once
	handlersInit sync.Once
}

func (c *Container) boltcardConfig() boltcardUseCase.Config {
	return boltcardUseCase.Config{
		PublicBaseURL:      c.config.PublicBaseURL,
		TopUpInvoiceExpiry: c.config.TopUpInvoiceExpiry,
		TopUpMaxSats:       c.config.TopUpMaxSats,
	}
}

// initBoltcardRepositories selects the repository implementations for DB_DRIVER.
func (c *Container) initBoltcardRepositories(ctx context.Context) error {
	db, err := c.DB()
	if err != nil {
		return fmt.Errorf("failed to get database for boltcard repositories: %w", err)
	}
	sealer, err := c.Sealer(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sealer for card repository: %w", err)
	}

	b := &c.boltcard
	switch c.config.DBDriver {
	case database.DriverPostgres:
		b.cardRepo = boltcardRepository.NewPostgreSQLCardRepository(db, sealer)
		b.transactionRepo = boltcardRepository.NewPostgreSQLTransactionRepository(db)
		b.pendingTopUpRepo = boltcardRepository.NewPostgreSQLPendingTopUpRepository(db)
	case database.DriverMySQL:
		b.cardRepo = boltcardRepository.NewMySQLCardRepository(db, sealer)
		b.transactionRepo = boltcardRepository.NewMySQLTransactionRepository(db)
		b.pendingTopUpRepo = boltcardRepository.NewMySQLPendingTopUpRepository(db)
	default:
		return fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
	return nil
}

// CardUseCase returns the card administration use case.
func (c *Container) CardUseCase(ctx context.Context) (boltcardUseCase.CardUseCase, error) {
	err := c.once(&c.boltcard.cardInit, "cardUseCase", func() error {
		if err := c.once(&c.boltcard.reposInit, "boltcardRepositories", func() error {
			return c.initBoltcardRepositories(ctx)
		}); err != nil {
			return err
		}
		txManager, err := c.TxManager()
		if err != nil {
			return fmt.Errorf("failed to get tx manager for card use case: %w", err)
		}
		idHasher, err := c.IDHasher()
		if err != nil {
			return fmt.Errorf("failed to get id hasher for card use case: %w", err)
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return fmt.Errorf("failed to get business metrics for card use case: %w", err)
		}

		useCase := boltcardUseCase.NewCardUseCase(
			c.boltcardConfig(),
			txManager,
			c.boltcard.cardRepo,
			c.boltcard.transactionRepo,
			c.WalletClient(),
			idHasher,
		)
		c.boltcard.cardUseCase = boltcardUseCase.NewCardUseCaseWithMetrics(useCase, businessMetrics)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.boltcard.cardUseCase, nil
}

// TopUpUseCase returns the LNURL-pay top-up use case.
func (c *Container) TopUpUseCase(ctx context.Context) (boltcardUseCase.TopUpUseCase, error) {
	err := c.once(&c.boltcard.topUpInit, "topUpUseCase", func() error {
		cards, err := c.CardUseCase(ctx)
		if err != nil {
			return err
		}
		txManager, err := c.TxManager()
		if err != nil {
			return fmt.Errorf("failed to get tx manager for top-up use case: %w", err)
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return fmt.Errorf("failed to get business metrics for top-up use case: %w", err)
		}

		walletClient := c.WalletClient()
		useCase := boltcardUseCase.NewTopUpUseCase(
			c.boltcardConfig(),
			txManager,
			cards,
			c.boltcard.pendingTopUpRepo,
			walletClient,
			walletClient,
			businessMetrics,
			c.Logger(),
		)
		c.boltcard.topUpUseCase = boltcardUseCase.NewTopUpUseCaseWithMetrics(useCase, businessMetrics)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.boltcard.topUpUseCase, nil
}

// WithdrawUseCase returns the LNURL-withdraw use case.
func (c *Container) WithdrawUseCase(ctx context.Context) (boltcardUseCase.WithdrawUseCase, error) {
	err := c.once(&c.boltcard.withdrawInit, "withdrawUseCase", func() error {
		cards, err := c.CardUseCase(ctx)
		if err != nil {
			return err
		}
		topUps, err := c.TopUpUseCase(ctx)
		if err != nil {
			return err
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return fmt.Errorf("failed to get business metrics for withdraw use case: %w", err)
		}

		walletClient := c.WalletClient()
		useCase := boltcardUseCase.NewWithdrawUseCase(
			c.boltcardConfig(),
			cards,
			topUps,
			walletClient,
			walletClient,
			businessMetrics,
			c.Logger(),
		)
		c.boltcard.withdrawUseCase = boltcardUseCase.NewWithdrawUseCaseWithMetrics(useCase, businessMetrics)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.boltcard.withdrawUseCase, nil
}

// ResetUseCase returns the force-reset use case.
func (c *Container) ResetUseCase(ctx context.Context) (boltcardUseCase.ResetUseCase, error) {
	err := c.once(&c.boltcard.resetInit, "resetUseCase", func() error {
		cards, err := c.CardUseCase(ctx)
		if err != nil {
			return err
		}
		tokens, err := c.ResetTokenService()
		if err != nil {
			return fmt.Errorf("failed to get reset token service for reset use case: %w", err)
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return fmt.Errorf("failed to get business metrics for reset use case: %w", err)
		}

		useCase := boltcardUseCase.NewResetUseCase(cards, tokens, c.Logger())
		c.boltcard.resetUseCase = boltcardUseCase.NewResetUseCaseWithMetrics(useCase, businessMetrics)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.boltcard.resetUseCase, nil
}

// BoltcardHandlers returns the card administration, LNURL and force-reset handlers.
func (c *Container) BoltcardHandlers(
	ctx context.Context,
) (*boltcardHTTP.CardHandler, *boltcardHTTP.LNURLHandler, *boltcardHTTP.ResetHandler, error) {
	err := c.once(&c.boltcard.handlersInit, "boltcardHandlers", func() error {
		cards, err := c.CardUseCase(ctx)
		if err != nil {
			return err
		}
		topUps, err := c.TopUpUseCase(ctx)
		if err != nil {
			return err
		}
		withdraws, err := c.WithdrawUseCase(ctx)
		if err != nil {
			return err
		}
		resets, err := c.ResetUseCase(ctx)
		if err != nil {
			return err
		}

		logger := c.Logger()
		c.boltcard.cardHandler = boltcardHTTP.NewCardHandler(cards, topUps, logger)
		c.boltcard.lnurlHandler = boltcardHTTP.NewLNURLHandler(withdraws, topUps, c.config.TopUpWebhookSecret, logger)
		c.boltcard.resetHandler = boltcardHTTP.NewResetHandler(resets, logger)
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return c.boltcard.cardHandler, c.boltcard.lnurlHandler, c.boltcard.resetHandler, nil
}
