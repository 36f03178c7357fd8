// Package http provides the HTTP handlers of the Boltcard API: the public LNURL
// endpoints hit by wallet apps and the bearer-protected admin endpoints.
package http

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/boltcard/http/dto"
	"github.com/allisson/boltgate/internal/boltcard/service"
	"github.com/allisson/boltgate/internal/boltcard/usecase"
	"github.com/allisson/boltgate/internal/httputil"
	"github.com/allisson/boltgate/internal/lnurl"
	customValidation "github.com/allisson/boltgate/internal/validation"
)

// WebhookSecretHeader carries the shared secret of the top-up settlement webhook.
const WebhookSecretHeader = "X-Webhook-Secret"

// LNURLHandler serves the public endpoints encoded on the card and in top-up QR codes.
// After the parameters parse, every failure is reported as an LNURL error with HTTP 200.
type LNURLHandler struct {
	withdrawUseCase usecase.WithdrawUseCase
	topUpUseCase    usecase.TopUpUseCase
	webhookSecret   string
	logger          *slog.Logger
}

// NewLNURLHandler creates a new LNURL handler. An empty webhookSecret disables the
// settlement webhook.
func NewLNURLHandler(
	withdrawUseCase usecase.WithdrawUseCase,
	topUpUseCase usecase.TopUpUseCase,
	webhookSecret string,
	logger *slog.Logger,
) *LNURLHandler {
	return &LNURLHandler{
		withdrawUseCase: withdrawUseCase,
		topUpUseCase:    topUpUseCase,
		webhookSecret:   webhookSecret,
		logger:          logger,
	}
}

// tapParams reads p and c and validates their format. A malformed tap is answered with
// 400 before any lookup or cryptography.
func (h *LNURLHandler) tapParams(c *gin.Context) (p, cmac string, ok bool) {
	p, cmac = c.Query("p"), c.Query("c")
	if err := service.ValidateTapParams(p, cmac); err != nil {
		h.logger.Debug("malformed tap", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, lnurl.Error(lnurlReason(err)))
		return "", "", false
	}
	return p, cmac, true
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}

// TapHandler answers a card tap with an LNURL-withdraw request.
// GET /api/boltcard/:cardId?p=&c=
// Browsers are redirected to the balance page, which performs the verification.
func (h *LNURLHandler) TapHandler(c *gin.Context) {
	cardID := c.Param("cardId")
	p, cmac, ok := h.tapParams(c)
	if !ok {
		return
	}

	if wantsHTML(c) {
		query := url.Values{"p": {p}, "c": {cmac}}.Encode()
		c.Redirect(http.StatusFound, "/api/boltcard/"+url.PathEscape(cardID)+"/balance?"+query)
		return
	}

	req, err := h.withdrawUseCase.Tap(c.Request.Context(), usecase.TapInput{CardIDHash: cardID, P: p, C: cmac})
	if err != nil {
		httputil.HandleLNURLErrorGin(c, lnurlReason(err), err, h.logger)
		return
	}
	c.JSON(http.StatusOK, req)
}

// CallbackHandler debits the card and pays the submitted invoice.
// GET|POST /api/boltcard/callback?k1=&pr=&p=&c=
func (h *LNURLHandler) CallbackHandler(c *gin.Context) {
	input := usecase.CallbackInput{
		K1:             param(c, "k1"),
		PaymentRequest: param(c, "pr"),
		P:              param(c, "p"),
		C:              param(c, "c"),
	}

	if err := h.withdrawUseCase.Callback(c.Request.Context(), input); err != nil {
		httputil.HandleLNURLErrorGin(c, lnurlReason(err), err, h.logger)
		return
	}
	c.JSON(http.StatusOK, lnurl.OK())
}

// BalanceHandler returns the balance of a card to a verified tap.
// GET /api/boltcard/:cardId/balance?p=&c=
func (h *LNURLHandler) BalanceHandler(c *gin.Context) {
	p, cmac, ok := h.tapParams(c)
	if !ok {
		return
	}

	view, err := h.withdrawUseCase.Balance(
		c.Request.Context(),
		usecase.TapInput{CardIDHash: c.Param("cardId"), P: p, C: cmac},
	)
	if err != nil {
		httputil.HandleLNURLErrorGin(c, lnurlReason(err), err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapBalanceToResponse(view))
}

// PayRequestHandler answers the first LNURL-pay step of a top-up.
// GET /api/boltcard/topup/:cardId
func (h *LNURLHandler) PayRequestHandler(c *gin.Context) {
	req, err := h.topUpUseCase.PayRequest(c.Request.Context(), c.Param("cardId"))
	if err != nil {
		httputil.HandleLNURLErrorGin(c, lnurlReason(err), err, h.logger)
		return
	}
	c.JSON(http.StatusOK, req)
}

// TopUpCallbackHandler issues the top-up invoice.
// GET /api/boltcard/topup/:cardId/callback?amount=<msat>&comment=
func (h *LNURLHandler) TopUpCallbackHandler(c *gin.Context) {
	amountMsat, err := strconv.ParseInt(c.Query("amount"), 10, 64)
	if err != nil {
		httputil.HandleLNURLErrorGin(c, "invalid amount", err, h.logger)
		return
	}

	resp, err := h.topUpUseCase.Invoice(c.Request.Context(), c.Param("cardId"), amountMsat, c.Query("comment"))
	if err != nil {
		httputil.HandleLNURLErrorGin(c, lnurlReason(err), err, h.logger)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// WebhookHandler processes a settlement notification for one top-up invoice.
// POST /api/boltcard/topup/webhook - Requires the X-Webhook-Secret header.
func (h *LNURLHandler) WebhookHandler(c *gin.Context) {
	if h.webhookSecret == "" {
		c.JSON(http.StatusNotFound, httputil.ErrorResponse{Error: "not_found"})
		return
	}
	provided := c.GetHeader(WebhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.webhookSecret)) != 1 {
		h.logger.Warn("top-up webhook rejected", slog.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
		return
	}

	var req dto.TopUpWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	req.PaymentHash = strings.ToLower(req.PaymentHash)
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	credited, err := h.topUpUseCase.ProcessPaymentHash(c.Request.Context(), req.PaymentHash)
	if err != nil && !errors.Is(err, domain.ErrTopUpNotFound) {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credited": credited})
}

// param reads a query parameter, falling back to the form body of POST callbacks.
func param(c *gin.Context, key string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return c.PostForm(key)
}
