package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/boltcard/http/dto"
	"github.com/allisson/boltgate/internal/boltcard/usecase"
	"github.com/allisson/boltgate/internal/httputil"
	customValidation "github.com/allisson/boltgate/internal/validation"
)

// CardHandler handles the admin card endpoints.
type CardHandler struct {
	cardUseCase  usecase.CardUseCase
	topUpUseCase usecase.TopUpUseCase
	logger       *slog.Logger
}

// NewCardHandler creates a new card handler.
func NewCardHandler(
	cardUseCase usecase.CardUseCase,
	topUpUseCase usecase.TopUpUseCase,
	logger *slog.Logger,
) *CardHandler {
	return &CardHandler{
		cardUseCase:  cardUseCase,
		topUpUseCase: topUpUseCase,
		logger:       logger,
	}
}

func (h *CardHandler) cardID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid card id format"), h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// CreateHandler registers a card and generates its keys.
// POST /api/cards
// Returns 201 Created. Keys are only available through the program endpoint.
func (h *CardHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	card, err := h.cardUseCase.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusCreated, dto.MapCardToResponse(card))
}

// ListHandler lists cards.
// GET /api/cards?offset=0&limit=50
func (h *CardHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	cards, err := h.cardUseCase.List(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapCardsToListResponse(cards))
}

// GetHandler returns a card.
// GET /api/cards/:id
func (h *CardHandler) GetHandler(c *gin.Context) {
	id, ok := h.cardID(c)
	if !ok {
		return
	}

	card, err := h.cardUseCase.Get(c.Request.Context(), id, false)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapCardToResponse(card))
}

// UpdateHandler changes the name and spending limits of a card.
// PATCH /api/cards/:id
func (h *CardHandler) UpdateHandler(c *gin.Context) {
	id, ok := h.cardID(c)
	if !ok {
		return
	}

	var req dto.UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	card, err := h.cardUseCase.UpdateLimits(c.Request.Context(), id, req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapCardToResponse(card))
}

// WipeHandler wipes a card. The card keeps its ledger but can never be used again.
// DELETE /api/cards/:id
func (h *CardHandler) WipeHandler(c *gin.Context) {
	id, ok := h.cardID(c)
	if !ok {
		return
	}

	card, err := h.cardUseCase.Wipe(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapCardToResponse(card))
}

// statusHandler builds the activate, disable and enable handlers.
func (h *CardHandler) statusHandler(change func(c *gin.Context, id uuid.UUID) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.cardID(c)
		if !ok {
			return
		}
		if err := change(c, id); err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}

		card, err := h.cardUseCase.Get(c.Request.Context(), id, false)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		c.JSON(http.StatusOK, dto.MapCardToResponse(card))
	}
}

// ActivateHandler handles POST /api/cards/:id/activate.
func (h *CardHandler) ActivateHandler() gin.HandlerFunc {
	return h.statusHandler(func(c *gin.Context, id uuid.UUID) error {
		return h.cardUseCase.Activate(c.Request.Context(), id)
	})
}

// DisableHandler handles POST /api/cards/:id/disable.
func (h *CardHandler) DisableHandler() gin.HandlerFunc {
	return h.statusHandler(func(c *gin.Context, id uuid.UUID) error {
		return h.cardUseCase.Disable(c.Request.Context(), id)
	})
}

// EnableHandler handles POST /api/cards/:id/enable.
func (h *CardHandler) EnableHandler() gin.HandlerFunc {
	return h.statusHandler(func(c *gin.Context, id uuid.UUID) error {
		return h.cardUseCase.Enable(c.Request.Context(), id)
	})
}

// ResetDailyHandler handles POST /api/cards/:id/reset-daily.
func (h *CardHandler) ResetDailyHandler() gin.HandlerFunc {
	return h.statusHandler(func(c *gin.Context, id uuid.UUID) error {
		return h.cardUseCase.ResetDailySpent(c.Request.Context(), id)
	})
}

// AdjustHandler applies a signed balance correction.
// POST /api/cards/:id/adjust
func (h *CardHandler) AdjustHandler(c *gin.Context) {
	id, ok := h.cardID(c)
	if !ok {
		return
	}

	var req dto.AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	tx, err := h.cardUseCase.AdjustBalance(c.Request.Context(), id, req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapTransactionToResponse(tx))
}

// ListTransactionsHandler lists the ledger of a card, newest first.
// GET /api/cards/:id/transactions?offset=0&limit=50
func (h *CardHandler) ListTransactionsHandler(c *gin.Context) {
	id, ok := h.cardID(c)
	if !ok {
		return
	}
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	txs, err := h.cardUseCase.ListTransactions(c.Request.Context(), id, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapTransactionsToListResponse(txs))
}

// ProgramHandler returns the document read by the NFC programming app. It exposes the
// card keys.
// GET /api/cards/:id/program
func (h *CardHandler) ProgramHandler(c *gin.Context) {
	id, ok := h.cardID(c)
	if !ok {
		return
	}

	payload, err := h.cardUseCase.ProgrammingPayload(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	h.logger.Info("card programming payload issued", slog.String("card_id", id.String()))
	c.JSON(http.StatusOK, payload)
}

// TopUpLNURLHandler returns the bech32 LNURL of the card top-up endpoint.
// GET /api/cards/:id/topup-lnurl
func (h *CardHandler) TopUpLNURLHandler(c *gin.Context) {
	id, ok := h.cardID(c)
	if !ok {
		return
	}

	encoded, err := h.topUpUseCase.LNURL(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.TopUpLNURLResponse{LNURL: encoded})
}
