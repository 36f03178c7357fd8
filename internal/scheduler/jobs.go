package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/boltgate/internal/boltcard/domain"
)

// Job names.
const (
	JobDailyReset    = "daily_reset"
	JobVoucherExpiry = "voucher_expiry"
	JobTopUpSweep    = "topup_sweep"
)

// TopUpSweepBatch is the number of pending top-ups processed per sweep run.
const TopUpSweepBatch = 200

// DailyResetter resets the daily spend of cards.
type DailyResetter interface {
	ResetAllDailySpent(ctx context.Context, before time.Time) (int64, error)
}

// VoucherExpirer expires overdue vouchers.
type VoucherExpirer interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

// TopUpSweeper credits settled top-ups and drops expired ones.
type TopUpSweeper interface {
	Sweep(ctx context.Context, limit int) (int, error)
}

// DailyResetJob resets every card whose daily window began before today (UTC). Taps
// also reset lazily, so a missed run only delays the reset until the next tap.
func DailyResetJob(cards DailyResetter, logger *slog.Logger, now func() time.Time) JobFunc {
	return func(ctx context.Context) error {
		count, err := cards.ResetAllDailySpent(ctx, domain.StartOfDay(now()))
		if err != nil {
			return err
		}
		logger.Info("daily spend reset", slog.Int64("cards", count))
		return nil
	}
}

// VoucherExpiryJob marks overdue vouchers EXPIRED.
func VoucherExpiryJob(vouchers VoucherExpirer) JobFunc {
	return func(ctx context.Context) error {
		_, err := vouchers.ExpireOverdue(ctx)
		return err
	}
}

// TopUpSweepJob processes pending top-ups of cards that were not tapped since paying.
func TopUpSweepJob(topUps TopUpSweeper, logger *slog.Logger) JobFunc {
	return func(ctx context.Context) error {
		credited, err := topUps.Sweep(ctx, TopUpSweepBatch)
		if err != nil {
			return err
		}
		if credited > 0 {
			logger.Info("top-up sweep credited", slog.Int("count", credited))
		}
		return nil
	}
}
