package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/lnurl"
	"github.com/allisson/boltgate/internal/metrics"
	"github.com/allisson/boltgate/internal/voucher/domain"
)

// voucherUseCaseWithMetrics decorates VoucherUseCase with metrics instrumentation.
type voucherUseCaseWithMetrics struct {
	next    VoucherUseCase
	metrics metrics.BusinessMetrics
}

// NewVoucherUseCaseWithMetrics wraps a VoucherUseCase with metrics recording.
func NewVoucherUseCaseWithMetrics(useCase VoucherUseCase, m metrics.BusinessMetrics) VoucherUseCase {
	return &voucherUseCaseWithMetrics{next: useCase, metrics: m}
}

func (v *voucherUseCaseWithMetrics) Create(
	ctx context.Context,
	input *domain.CreateVoucherInput,
) (*domain.Voucher, error) {
	start := time.Now()
	voucher, err := v.next.Create(ctx, input)
	metrics.Record(ctx, v.metrics, metricsDomain, "voucher_create", start, err)
	return voucher, err
}

func (v *voucherUseCaseWithMetrics) Status(ctx context.Context, chargeID string) (*domain.StatusView, error) {
	start := time.Now()
	view, err := v.next.Status(ctx, chargeID)
	metrics.Record(ctx, v.metrics, metricsDomain, "voucher_status", start, err)
	return view, err
}

func (v *voucherUseCaseWithMetrics) WithdrawRequest(
	ctx context.Context,
	chargeID string,
) (*lnurl.WithdrawRequest, error) {
	start := time.Now()
	req, err := v.next.WithdrawRequest(ctx, chargeID)
	metrics.Record(ctx, v.metrics, metricsDomain, "voucher_lnurlw", start, err)
	return req, err
}

func (v *voucherUseCaseWithMetrics) Callback(ctx context.Context, k1, paymentRequest string) error {
	start := time.Now()
	err := v.next.Callback(ctx, k1, paymentRequest)
	metrics.Record(ctx, v.metrics, metricsDomain, "voucher_callback", start, err)
	return err
}

func (v *voucherUseCaseWithMetrics) Cancel(ctx context.Context, voucherID uuid.UUID) error {
	start := time.Now()
	err := v.next.Cancel(ctx, voucherID)
	metrics.Record(ctx, v.metrics, metricsDomain, "voucher_cancel", start, err)
	return err
}

func (v *voucherUseCaseWithMetrics) ExpireOverdue(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := v.next.ExpireOverdue(ctx)
	metrics.Record(ctx, v.metrics, metricsDomain, "voucher_expire", start, err)
	return n, err
}
