package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/allisson/boltgate/internal/database"
	voucherHTTP "github.com/allisson/boltgate/internal/voucher/http"
	voucherRepository "github.com/allisson/boltgate/internal/voucher/repository"
	voucherUseCase "github.com/allisson/boltgate/internal/voucher/usecase"
)

type voucherComponents struct {
	repo     voucherUseCase.VoucherRepository
	useCase  voucherUseCase.VoucherUseCase
	handler  *voucherHTTP.VoucherHandler
	repoInit sync.Once
	ucInit   sync.Once
	hInit    sync.Once
}

// VoucherRepository returns the voucher repository for DB_DRIVER.
func (c *Container) VoucherRepository(ctx context.Context) (voucherUseCase.VoucherRepository, error) {
	err := c.once(&c.voucher.repoInit, "voucherRepository", func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for voucher repository: %w", err)
		}
		sealer, err := c.Sealer(ctx)
		if err != nil {
			return fmt.Errorf("failed to get sealer for voucher repository: %w", err)
		}

		switch c.config.DBDriver {
		case database.DriverPostgres:
			c.voucher.repo = voucherRepository.NewPostgreSQLVoucherRepository(db, sealer)
		case database.DriverMySQL:
			c.voucher.repo = voucherRepository.NewMySQLVoucherRepository(db, sealer)
		default:
			return fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.voucher.repo, nil
}

// VoucherUseCase returns the voucher use case.
func (c *Container) VoucherUseCase(ctx context.Context) (voucherUseCase.VoucherUseCase, error) {
	err := c.once(&c.voucher.ucInit, "voucherUseCase", func() error {
		repo, err := c.VoucherRepository(ctx)
		if err != nil {
			return err
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return fmt.Errorf("failed to get business metrics for voucher use case: %w", err)
		}

		walletClient := c.WalletClient()
		useCase := voucherUseCase.NewVoucherUseCase(
			voucherUseCase.Config{PublicBaseURL: c.config.PublicBaseURL},
			repo,
			walletClient,
			walletClient,
			businessMetrics,
			c.Logger(),
		)
		c.voucher.useCase = voucherUseCase.NewVoucherUseCaseWithMetrics(useCase, businessMetrics)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.voucher.useCase, nil
}

// VoucherHandler returns the voucher HTTP handler.
func (c *Container) VoucherHandler(ctx context.Context) (*voucherHTTP.VoucherHandler, error) {
	err := c.once(&c.voucher.hInit, "voucherHandler", func() error {
		useCase, err := c.VoucherUseCase(ctx)
		if err != nil {
			return err
		}
		c.voucher.handler = voucherHTTP.NewVoucherHandler(useCase, c.config.PublicBaseURL, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.voucher.handler, nil
}
