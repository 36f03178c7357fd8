package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/scheduler"
)

// RunResetDailyLimits resets the daily spend of every card whose window began before
// today (UTC). It performs the same work as the daily_reset scheduled job.
func RunResetDailyLimits(
	ctx context.Context,
	cards scheduler.DailyResetter,
	logger *slog.Logger,
	writer io.Writer,
	now time.Time,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	before := domain.StartOfDay(now)
	count, err := cards.ResetAllDailySpent(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to reset daily limits: %w", err)
	}
	logger.Info("daily limits reset", slog.Int64("cards", count))

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"count":  count,
			"before": before.Format(time.RFC3339),
		})
	}
	_, _ = fmt.Fprintf(writer, "Reset daily spend of %d card(s)\n", count)
	return nil
}

// RunExpireVouchers marks every overdue ACTIVE voucher EXPIRED.
func RunExpireVouchers(
	ctx context.Context,
	vouchers scheduler.VoucherExpirer,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	count, err := vouchers.ExpireOverdue(ctx)
	if err != nil {
		return fmt.Errorf("failed to expire vouchers: %w", err)
	}
	logger.Info("vouchers expired", slog.Int64("count", count))

	if format == "json" {
		return writeJSON(writer, map[string]any{"count": count})
	}
	_, _ = fmt.Fprintf(writer, "Expired %d voucher(s)\n", count)
	return nil
}

// RunSweepTopUps credits settled top-ups and drops expired ones, processing at most
// limit pending invoices.
func RunSweepTopUps(
	ctx context.Context,
	topUps scheduler.TopUpSweeper,
	logger *slog.Logger,
	writer io.Writer,
	limit int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("limit must be a positive number, got: %d", limit)
	}

	credited, err := topUps.Sweep(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to sweep top-ups: %w", err)
	}
	logger.Info("top-up sweep completed", slog.Int("credited", credited))

	if format == "json" {
		return writeJSON(writer, map[string]any{"credited": credited, "limit": limit})
	}
	_, _ = fmt.Fprintf(writer, "Credited %d top-up(s)\n", credited)
	return nil
}
