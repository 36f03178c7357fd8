package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/boltgate/cmd/app/commands"
	"github.com/allisson/boltgate/internal/app"
	"github.com/allisson/boltgate/internal/config"
	"github.com/allisson/boltgate/internal/scheduler"
)

func getMaintenanceCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "reset-daily-limits",
			Usage: "Reset the daily spend of cards whose window began before today (UTC)",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				cardUseCase, err := container.CardUseCase(ctx)
				if err != nil {
					return err
				}

				return commands.RunResetDailyLimits(
					ctx,
					cardUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					time.Now().UTC(),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "expire-vouchers",
			Usage: "Mark overdue vouchers as expired",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				voucherUseCase, err := container.VoucherUseCase(ctx)
				if err != nil {
					return err
				}

				return commands.RunExpireVouchers(
					ctx,
					voucherUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "sweep-topups",
			Usage: "Credit settled top-up invoices and drop expired ones",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Value:   scheduler.TopUpSweepBatch,
					Usage:   "Maximum number of pending top-ups to process",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				topUpUseCase, err := container.TopUpUseCase(ctx)
				if err != nil {
					return err
				}

				return commands.RunSweepTopUps(
					ctx,
					topUpUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("limit")),
					cmd.String("format"),
				)
			},
		},
	}
}
