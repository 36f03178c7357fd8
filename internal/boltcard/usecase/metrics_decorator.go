package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/lnurl"
	"github.com/allisson/boltgate/internal/metrics"
)

const metricsDomain = "boltcard"

// cardUseCaseWithMetrics decorates CardUseCase with metrics instrumentation.
type cardUseCaseWithMetrics struct {
	next    CardUseCase
	metrics metrics.BusinessMetrics
}

// NewCardUseCaseWithMetrics wraps a CardUseCase with metrics recording.
func NewCardUseCaseWithMetrics(useCase CardUseCase, m metrics.BusinessMetrics) CardUseCase {
	return &cardUseCaseWithMetrics{next: useCase, metrics: m}
}

func (c *cardUseCaseWithMetrics) record(ctx context.Context, op string, start time.Time, err error) {
	metrics.Record(ctx, c.metrics, metricsDomain, op, start, err)
}

func (c *cardUseCaseWithMetrics) Create(ctx context.Context, input *domain.CreateCardInput) (*domain.Card, error) {
	start := time.Now()
	card, err := c.next.Create(ctx, input)
	c.record(ctx, "card_create", start, err)
	return card, err
}

func (c *cardUseCaseWithMetrics) Get(ctx context.Context, cardID uuid.UUID, includeKeys bool) (*domain.Card, error) {
	start := time.Now()
	card, err := c.next.Get(ctx, cardID, includeKeys)
	c.record(ctx, "card_get", start, err)
	return card, err
}

func (c *cardUseCaseWithMetrics) GetByIDHash(
	ctx context.Context,
	idHash string,
	includeKeys bool,
) (*domain.Card, error) {
	start := time.Now()
	card, err := c.next.GetByIDHash(ctx, idHash, includeKeys)
	c.record(ctx, "card_get", start, err)
	return card, err
}

func (c *cardUseCaseWithMetrics) List(ctx context.Context, offset, limit int) ([]*domain.Card, error) {
	start := time.Now()
	cards, err := c.next.List(ctx, offset, limit)
	c.record(ctx, "card_list", start, err)
	return cards, err
}

func (c *cardUseCaseWithMetrics) UpdateLastCounter(ctx context.Context, cardID uuid.UUID, counter uint32) error {
	start := time.Now()
	err := c.next.UpdateLastCounter(ctx, cardID, counter)
	c.record(ctx, "card_update_counter", start, err)
	return err
}

func (c *cardUseCaseWithMetrics) UpdateCardBalance(ctx context.Context, cardID uuid.UUID, newBalance int64) error {
	start := time.Now()
	err := c.next.UpdateCardBalance(ctx, cardID, newBalance)
	c.record(ctx, "card_update_balance", start, err)
	return err
}

func (c *cardUseCaseWithMetrics) RecordTransaction(
	ctx context.Context,
	cardID uuid.UUID,
	input domain.TransactionInput,
) (*domain.Transaction, error) {
	start := time.Now()
	tx, err := c.next.RecordTransaction(ctx, cardID, input)
	c.record(ctx, "card_record_transaction", start, err)
	return tx, err
}

func (c *cardUseCaseWithMetrics) ResetDailySpent(ctx context.Context, cardID uuid.UUID) error {
	start := time.Now()
	err := c.next.ResetDailySpent(ctx, cardID)
	c.record(ctx, "card_reset_daily", start, err)
	return err
}

func (c *cardUseCaseWithMetrics) ApplyDailyReset(ctx context.Context, cardID uuid.UUID) (bool, error) {
	start := time.Now()
	reset, err := c.next.ApplyDailyReset(ctx, cardID)
	c.record(ctx, "card_apply_daily_reset", start, err)
	return reset, err
}

func (c *cardUseCaseWithMetrics) ResetAllDailySpent(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	n, err := c.next.ResetAllDailySpent(ctx, before)
	c.record(ctx, "card_reset_daily_all", start, err)
	return n, err
}

func (c *cardUseCaseWithMetrics) Activate(ctx context.Context, cardID uuid.UUID) error {
	start := time.Now()
	err := c.next.Activate(ctx, cardID)
	c.record(ctx, "card_activate", start, err)
	return err
}

func (c *cardUseCaseWithMetrics) ActivateFromTap(ctx context.Context, cardID uuid.UUID, uid string) error {
	start := time.Now()
	err := c.next.ActivateFromTap(ctx, cardID, uid)
	c.record(ctx, "card_activate", start, err)
	return err
}

func (c *cardUseCaseWithMetrics) Disable(ctx context.Context, cardID uuid.UUID) error {
	start := time.Now()
	err := c.next.Disable(ctx, cardID)
	c.record(ctx, "card_disable", start, err)
	return err
}

func (c *cardUseCaseWithMetrics) Enable(ctx context.Context, cardID uuid.UUID) error {
	start := time.Now()
	err := c.next.Enable(ctx, cardID)
	c.record(ctx, "card_enable", start, err)
	return err
}

func (c *cardUseCaseWithMetrics) Wipe(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	start := time.Now()
	card, err := c.next.Wipe(ctx, cardID)
	c.record(ctx, "card_wipe", start, err)
	return card, err
}

func (c *cardUseCaseWithMetrics) UpdateLimits(
	ctx context.Context,
	cardID uuid.UUID,
	input *domain.UpdateCardInput,
) (*domain.Card, error) {
	start := time.Now()
	card, err := c.next.UpdateLimits(ctx, cardID, input)
	c.record(ctx, "card_update", start, err)
	return card, err
}

func (c *cardUseCaseWithMetrics) AdjustBalance(
	ctx context.Context,
	cardID uuid.UUID,
	input *domain.AdjustBalanceInput,
) (*domain.Transaction, error) {
	start := time.Now()
	tx, err := c.next.AdjustBalance(ctx, cardID, input)
	c.record(ctx, "card_adjust_balance", start, err)
	return tx, err
}

func (c *cardUseCaseWithMetrics) ListTransactions(
	ctx context.Context,
	cardID uuid.UUID,
	offset, limit int,
) ([]*domain.Transaction, error) {
	start := time.Now()
	txs, err := c.next.ListTransactions(ctx, cardID, offset, limit)
	c.record(ctx, "card_list_transactions", start, err)
	return txs, err
}

func (c *cardUseCaseWithMetrics) ProgrammingPayload(
	ctx context.Context,
	cardID uuid.UUID,
) (*domain.ProgrammingPayload, error) {
	start := time.Now()
	payload, err := c.next.ProgrammingPayload(ctx, cardID)
	c.record(ctx, "card_programming_payload", start, err)
	return payload, err
}

func (c *cardUseCaseWithMetrics) Credit(
	ctx context.Context,
	cardID uuid.UUID,
	amount int64,
	paymentHash, description string,
) (*domain.Transaction, error) {
	start := time.Now()
	tx, err := c.next.Credit(ctx, cardID, amount, paymentHash, description)
	c.record(ctx, "card_credit", start, err)
	return tx, err
}

func (c *cardUseCaseWithMetrics) Debit(
	ctx context.Context,
	cardID uuid.UUID,
	counter uint32,
	amount int64,
	paymentHash, description string,
) (*domain.Transaction, error) {
	start := time.Now()
	tx, err := c.next.Debit(ctx, cardID, counter, amount, paymentHash, description)
	c.record(ctx, "card_debit", start, err)
	return tx, err
}

func (c *cardUseCaseWithMetrics) Refund(
	ctx context.Context,
	cardID uuid.UUID,
	amount int64,
	description string,
) (*domain.Transaction, error) {
	start := time.Now()
	tx, err := c.next.Refund(ctx, cardID, amount, description)
	c.record(ctx, "card_refund", start, err)
	return tx, err
}

// withdrawUseCaseWithMetrics decorates WithdrawUseCase with metrics instrumentation.
type withdrawUseCaseWithMetrics struct {
	next    WithdrawUseCase
	metrics metrics.BusinessMetrics
}

// NewWithdrawUseCaseWithMetrics wraps a WithdrawUseCase with metrics recording.
func NewWithdrawUseCaseWithMetrics(useCase WithdrawUseCase, m metrics.BusinessMetrics) WithdrawUseCase {
	return &withdrawUseCaseWithMetrics{next: useCase, metrics: m}
}

func (w *withdrawUseCaseWithMetrics) Tap(ctx context.Context, input TapInput) (*lnurl.WithdrawRequest, error) {
	start := time.Now()
	req, err := w.next.Tap(ctx, input)
	metrics.Record(ctx, w.metrics, metricsDomain, "withdraw_tap", start, err)
	return req, err
}

func (w *withdrawUseCaseWithMetrics) Callback(ctx context.Context, input CallbackInput) error {
	start := time.Now()
	err := w.next.Callback(ctx, input)
	metrics.Record(ctx, w.metrics, metricsDomain, "withdraw_callback", start, err)
	return err
}

func (w *withdrawUseCaseWithMetrics) Balance(ctx context.Context, input TapInput) (*domain.BalanceView, error) {
	start := time.Now()
	view, err := w.next.Balance(ctx, input)
	metrics.Record(ctx, w.metrics, metricsDomain, "balance", start, err)
	return view, err
}

// topUpUseCaseWithMetrics decorates TopUpUseCase with metrics instrumentation.
type topUpUseCaseWithMetrics struct {
	next    TopUpUseCase
	metrics metrics.BusinessMetrics
}

// NewTopUpUseCaseWithMetrics wraps a TopUpUseCase with metrics recording.
func NewTopUpUseCaseWithMetrics(useCase TopUpUseCase, m metrics.BusinessMetrics) TopUpUseCase {
	return &topUpUseCaseWithMetrics{next: useCase, metrics: m}
}

func (t *topUpUseCaseWithMetrics) PayRequest(ctx context.Context, cardIDHash string) (*lnurl.PayRequest, error) {
	start := time.Now()
	req, err := t.next.PayRequest(ctx, cardIDHash)
	metrics.Record(ctx, t.metrics, metricsDomain, "topup_pay_request", start, err)
	return req, err
}

func (t *topUpUseCaseWithMetrics) Invoice(
	ctx context.Context,
	cardIDHash string,
	amountMsat int64,
	comment string,
) (*lnurl.InvoiceResponse, error) {
	start := time.Now()
	resp, err := t.next.Invoice(ctx, cardIDHash, amountMsat, comment)
	metrics.Record(ctx, t.metrics, metricsDomain, "topup_invoice", start, err)
	return resp, err
}

func (t *topUpUseCaseWithMetrics) CheckAndProcessPendingTopUps(ctx context.Context, cardID uuid.UUID) (int, error) {
	start := time.Now()
	n, err := t.next.CheckAndProcessPendingTopUps(ctx, cardID)
	metrics.Record(ctx, t.metrics, metricsDomain, "topup_check", start, err)
	return n, err
}

func (t *topUpUseCaseWithMetrics) ProcessPaymentHash(ctx context.Context, paymentHash string) (bool, error) {
	start := time.Now()
	ok, err := t.next.ProcessPaymentHash(ctx, paymentHash)
	metrics.Record(ctx, t.metrics, metricsDomain, "topup_webhook", start, err)
	return ok, err
}

func (t *topUpUseCaseWithMetrics) Sweep(ctx context.Context, limit int) (int, error) {
	start := time.Now()
	n, err := t.next.Sweep(ctx, limit)
	metrics.Record(ctx, t.metrics, metricsDomain, "topup_sweep", start, err)
	return n, err
}

func (t *topUpUseCaseWithMetrics) LNURL(ctx context.Context, cardID uuid.UUID) (string, error) {
	start := time.Now()
	s, err := t.next.LNURL(ctx, cardID)
	metrics.Record(ctx, t.metrics, metricsDomain, "topup_lnurl", start, err)
	return s, err
}

// resetUseCaseWithMetrics decorates ResetUseCase with metrics instrumentation.
type resetUseCaseWithMetrics struct {
	next    ResetUseCase
	metrics metrics.BusinessMetrics
}

// NewResetUseCaseWithMetrics wraps a ResetUseCase with metrics recording.
func NewResetUseCaseWithMetrics(useCase ResetUseCase, m metrics.BusinessMetrics) ResetUseCase {
	return &resetUseCaseWithMetrics{next: useCase, metrics: m}
}

func (r *resetUseCaseWithMetrics) Prove(
	ctx context.Context,
	cardIDHash, uid, p, c string,
) (*domain.ResetResult, error) {
	start := time.Now()
	result, err := r.next.Prove(ctx, cardIDHash, uid, p, c)
	metrics.Record(ctx, r.metrics, metricsDomain, "reset_prove", start, err)
	return result, err
}

func (r *resetUseCaseWithMetrics) Confirm(ctx context.Context, cardIDHash, token string) error {
	start := time.Now()
	err := r.next.Confirm(ctx, cardIDHash, token)
	metrics.Record(ctx, r.metrics, metricsDomain, "reset_confirm", start, err)
	return err
}
