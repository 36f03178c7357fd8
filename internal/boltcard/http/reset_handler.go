package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/allisson/boltgate/internal/boltcard/http/dto"
	"github.com/allisson/boltgate/internal/boltcard/usecase"
	"github.com/allisson/boltgate/internal/httputil"
	customValidation "github.com/allisson/boltgate/internal/validation"
)

// ResetHandler handles the two-step force-reset flow.
type ResetHandler struct {
	resetUseCase usecase.ResetUseCase
	logger       *slog.Logger
}

// NewResetHandler creates a new reset handler.
func NewResetHandler(resetUseCase usecase.ResetUseCase, logger *slog.Logger) *ResetHandler {
	return &ResetHandler{
		resetUseCase: resetUseCase,
		logger:       logger,
	}
}

// ProveHandler checks possession of the card and returns its keys plus a reset token.
// POST /api/boltcard/reset/:cardId
func (h *ResetHandler) ProveHandler(c *gin.Context) {
	var req dto.ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.resetUseCase.Prove(
		c.Request.Context(),
		c.Param("cardId"),
		strings.ToLower(req.UID),
		req.P,
		req.C,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer result.Keys.Zero()

	c.JSON(http.StatusOK, dto.MapResetResultToResponse(result))
}

// ConfirmHandler wipes the card once the reset token verifies.
// POST /api/boltcard/reset/:cardId/confirm
// Returns 204 No Content.
func (h *ResetHandler) ConfirmHandler(c *gin.Context) {
	var req dto.ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.resetUseCase.Confirm(c.Request.Context(), c.Param("cardId"), req.ResetToken); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.Data(http.StatusNoContent, "application/json", nil)
}
