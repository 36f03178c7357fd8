// Package http provides the HTTP handlers of the voucher API.
package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/allisson/boltgate/internal/errors"
	"github.com/allisson/boltgate/internal/httputil"
	"github.com/allisson/boltgate/internal/lnurl"
	customValidation "github.com/allisson/boltgate/internal/validation"
	"github.com/allisson/boltgate/internal/voucher/domain"
	"github.com/allisson/boltgate/internal/voucher/http/dto"
	"github.com/allisson/boltgate/internal/voucher/usecase"
)

// VoucherHandler serves the public redemption endpoints and the admin issuance endpoints.
type VoucherHandler struct {
	voucherUseCase usecase.VoucherUseCase
	publicBaseURL  string
	logger         *slog.Logger
}

// NewVoucherHandler creates a new voucher handler.
func NewVoucherHandler(voucherUseCase usecase.VoucherUseCase, publicBaseURL string, logger *slog.Logger) *VoucherHandler {
	return &VoucherHandler{
		voucherUseCase: voucherUseCase,
		publicBaseURL:  publicBaseURL,
		logger:         logger,
	}
}

func lnurlReason(err error) string {
	if reason, ok := httputil.PaymentReason(err); ok {
		return reason
	}
	for _, known := range []struct {
		err    error
		reason string
	}{
		{domain.ErrVoucherNotFound, "voucher not found"},
		{domain.ErrVoucherAlreadyClaimed, "voucher already claimed"},
		{domain.ErrVoucherExpired, "voucher expired"},
		{domain.ErrVoucherCancelled, "voucher cancelled"},
		{domain.ErrInvalidAmount, "invoice amount does not match the voucher value"},
	} {
		if errors.Is(err, known.err) {
			return known.reason
		}
	}
	if errors.Is(err, apperrors.ErrInvalidInput) {
		return "invalid request"
	}
	return "internal error"
}

// CreateHandler issues a voucher.
// POST /api/vouchers
// Returns 201 Created with the bech32 LNURL to print.
func (h *VoucherHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	voucher, err := h.voucherUseCase.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	resp, err := dto.MapVoucherToResponse(voucher, h.publicBaseURL)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CancelHandler cancels an unclaimed voucher.
// DELETE /api/vouchers/:id
// Returns 204 No Content.
func (h *VoucherHandler) CancelHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid voucher id format"), h.logger)
		return
	}

	if err := h.voucherUseCase.Cancel(c.Request.Context(), id); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.Data(http.StatusNoContent, "application/json", nil)
}

// StatusHandler reports whether a voucher was claimed. Unknown vouchers answer
// found=false rather than 404.
// GET /api/vouchers/:id/status
func (h *VoucherHandler) StatusHandler(c *gin.Context) {
	view, err := h.voucherUseCase.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapStatusToResponse(view))
}

// LNURLWHandler answers the voucher LNURL with a withdraw request.
// GET /api/vouchers/:id/lnurlw
func (h *VoucherHandler) LNURLWHandler(c *gin.Context) {
	req, err := h.voucherUseCase.WithdrawRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.HandleLNURLErrorGin(c, lnurlReason(err), err, h.logger)
		return
	}
	c.JSON(http.StatusOK, req)
}

// CallbackHandler claims the voucher and pays the submitted invoice.
// GET|POST /api/vouchers/callback?k1=&pr=
func (h *VoucherHandler) CallbackHandler(c *gin.Context) {
	k1, pr := c.Query("k1"), c.Query("pr")
	if k1 == "" {
		k1 = c.PostForm("k1")
	}
	if pr == "" {
		pr = c.PostForm("pr")
	}

	if err := h.voucherUseCase.Callback(c.Request.Context(), k1, pr); err != nil {
		httputil.HandleLNURLErrorGin(c, lnurlReason(err), err, h.logger)
		return
	}
	c.JSON(http.StatusOK, lnurl.OK())
}
