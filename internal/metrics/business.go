package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Status values attached to operation metrics.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Payment outcomes attached to payment metrics.
const (
	PaymentSettled  = "settled"
	PaymentFailed   = "failed"
	PaymentUnknown  = "unknown"
	PaymentRefunded = "refunded"
)

// BusinessMetrics records gateway operation metrics.
type BusinessMetrics interface {
	// RecordOperation counts one operation. Domains are "boltcard", "topup" and "voucher";
	// operations are names like "card_tap" or "withdraw_callback".
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordPayment counts a Lightning payment or credit by outcome and adds its amount
	// in sats to the volume counter.
	RecordPayment(ctx context.Context, domain, outcome string, amountSats int64)
}

type businessMetrics struct {
	operationCounter metric.Int64Counter
	durationHisto    metric.Float64Histogram
	paymentCounter   metric.Int64Counter
	paymentVolume    metric.Int64Counter
}

// NewBusinessMetrics creates a BusinessMetrics backed by the given meter provider.
// Metric names are prefixed with namespace (e.g., "boltgate").
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of business operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of business operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	paymentCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_payments_total", namespace),
		metric.WithDescription("Total number of Lightning payments and credits by outcome"),
		metric.WithUnit("{payment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment counter: %w", err)
	}

	paymentVolume, err := meter.Int64Counter(
		fmt.Sprintf("%s_payment_volume_sats_total", namespace),
		metric.WithDescription("Total Lightning payment volume in satoshis by outcome"),
		metric.WithUnit("{sat}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment volume counter: %w", err)
	}

	return &businessMetrics{
		operationCounter: operationCounter,
		durationHisto:    durationHisto,
		paymentCounter:   paymentCounter,
		paymentVolume:    paymentVolume,
	}, nil
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

func (b *businessMetrics) RecordPayment(ctx context.Context, domain, outcome string, amountSats int64) {
	attrs := metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("outcome", outcome),
	)
	b.paymentCounter.Add(ctx, 1, attrs)
	if amountSats > 0 {
		b.paymentVolume.Add(ctx, amountSats, attrs)
	}
}

// Record counts an operation that started at start and records its duration, deriving
// the status from err.
func Record(ctx context.Context, m BusinessMetrics, domain, operation string, start time.Time, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.RecordOperation(ctx, domain, operation, status)
	m.RecordDuration(ctx, domain, operation, time.Since(start), status)
}

// NoOpBusinessMetrics is used when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {}

func (n *NoOpBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
}

func (n *NoOpBusinessMetrics) RecordPayment(ctx context.Context, domain, outcome string, amountSats int64) {}
