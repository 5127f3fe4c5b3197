package handlers

import (
	"errors"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/core/domain"
	"fuelink/internal/core/services"
	"fuelink/internal/pkg/pagination"
	"fuelink/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// TransactionHandler handles the hold/capture endpoints used by stations
type TransactionHandler struct {
	txService *services.TransactionService
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(txService *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{txService: txService}
}

// AuthorizeRequest represents authorize request body
type AuthorizeRequest struct {
	VoucherCode string `json:"voucher_code"`
}

// SettleRequest represents settle request body
type SettleRequest struct {
	Amount float64 `json:"amount"`
}

// Authorize handles voucher redemption by the authenticated station
// @Summary Authorize transaction
// @Description Redeem a scanned voucher and place a hold for its authorized amount
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Client-generated idempotency key"
// @Param body body AuthorizeRequest true "Voucher code"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /transactions/authorize [post]
func (h *TransactionHandler) Authorize(c *fiber.Ctx) error {
	stationID, ok := c.Locals("subjectID").(uint)
	if !ok || stationID == 0 {
		return response.Unauthorized(c, "Unauthorized")
	}

	idemKey := c.Get("Idempotency-Key")
	if idemKey == "" {
		return response.BadRequest(c, "Idempotency-Key header is required")
	}

	var req AuthorizeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.VoucherCode == "" {
		return response.BadRequest(c, "Voucher code is required")
	}

	input := &services.AuthorizeInput{
		VoucherCode:    req.VoucherCode,
		StationID:      stationID,
		IdempotencyKey: idemKey,
	}

	tx, err := h.txService.Authorize(c.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrVoucherNotFound):
			return response.NotFound(c, "Voucher not found for this station")
		case errors.Is(err, domain.ErrVoucherExpired):
			return response.UnprocessableEntity(c, "Voucher has expired")
		case errors.Is(err, domain.ErrVoucherAlreadyUsed):
			return response.Conflict(c, "Voucher has already been redeemed")
		case errors.Is(err, domain.ErrInsufficientCredit):
			return response.UnprocessableEntity(c, "Insufficient available credit")
		case errors.Is(err, domain.ErrCreditLineInactive):
			return response.UnprocessableEntity(c, "Credit line is deactivated")
		case errors.Is(err, domain.ErrCreditLineContention):
			return response.Conflict(c, "Credit line is under contention, please retry")
		case errors.Is(err, domain.ErrIdempotencyKeyConflict):
			return response.Conflict(c, "Idempotency key already used for a different request")
		default:
			return response.InternalServerError(c, "Failed to authorize transaction")
		}
	}

	return response.Created(c, "Transaction authorized successfully", tx)
}

// Settle handles capture of the final pumped amount
// @Summary Settle transaction
// @Description Capture the pumped amount; the unused hold flows back to the credit line
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Client-generated idempotency key"
// @Param id path int true "Transaction ID"
// @Param body body SettleRequest true "Settled amount"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /transactions/{id}/settle [post]
func (h *TransactionHandler) Settle(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid transaction ID")
	}

	idemKey := c.Get("Idempotency-Key")
	if idemKey == "" {
		return response.BadRequest(c, "Idempotency-Key header is required")
	}

	var req SettleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	input := &services.SettleInput{
		TransactionID:  uint(id),
		Amount:         req.Amount,
		IdempotencyKey: idemKey,
	}

	tx, err := h.txService.Settle(c.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTransactionNotFound):
			return response.NotFound(c, "Transaction not found")
		case errors.Is(err, domain.ErrAlreadySettled):
			return response.Conflict(c, "Transaction already settled")
		case errors.Is(err, domain.ErrTransactionNotAuthorized):
			return response.UnprocessableEntity(c, "Transaction is not in authorized state")
		case errors.Is(err, domain.ErrSettlementExceedsAuthorization):
			return response.UnprocessableEntity(c, "Settled amount exceeds authorized amount")
		case errors.Is(err, domain.ErrIdempotencyKeyConflict):
			return response.Conflict(c, "Idempotency key already used for a different request")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Settled amount must not be negative")
		default:
			return response.InternalServerError(c, "Failed to settle transaction")
		}
	}

	return response.Success(c, "Transaction settled successfully", tx)
}

// Cancel handles voiding a pending hold
// @Summary Cancel transaction
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /transactions/{id}/cancel [post]
func (h *TransactionHandler) Cancel(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid transaction ID")
	}

	tx, err := h.txService.Cancel(c.Context(), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTransactionNotFound):
			return response.NotFound(c, "Transaction not found")
		case errors.Is(err, domain.ErrAlreadySettled):
			return response.Conflict(c, "Transaction already settled")
		case errors.Is(err, domain.ErrTransactionNotAuthorized):
			return response.UnprocessableEntity(c, "Transaction is not in authorized state")
		default:
			return response.InternalServerError(c, "Failed to cancel transaction")
		}
	}

	return response.Success(c, "Transaction cancelled successfully", tx.ToResponse())
}

// Get handles transaction retrieval
// @Summary Get transaction
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /transactions/{id} [get]
func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid transaction ID")
	}

	tx, err := h.txService.Get(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return response.NotFound(c, "Transaction not found")
		}
		return response.InternalServerError(c, "Failed to get transaction")
	}

	return response.Success(c, "Transaction retrieved successfully", tx.ToResponse())
}

// GetSettlementIntent handles settlement intent retrieval
// @Summary Get settlement intent
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /transactions/{id}/settlement-intent [get]
func (h *TransactionHandler) GetSettlementIntent(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid transaction ID")
	}

	intent, err := h.txService.GetSettlementIntent(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return response.NotFound(c, "Settlement intent not found")
		}
		return response.InternalServerError(c, "Failed to get settlement intent")
	}

	return response.Success(c, "Settlement intent retrieved successfully", intent)
}

// ListMine handles listing transactions for the authenticated driver or station
// @Summary List my transactions
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /transactions [get]
func (h *TransactionHandler) ListMine(c *fiber.Ctx) error {
	subjectID, ok := c.Locals("subjectID").(uint)
	if !ok || subjectID == 0 {
		return response.Unauthorized(c, "Unauthorized")
	}
	role, _ := c.Locals("role").(string)

	params := pagination.GetParams(c)

	var (
		txs   []*models.Transaction
		total int64
		err   error
	)
	switch role {
	case "STATION":
		txs, total, err = h.txService.ListForStation(c.Context(), subjectID, params.Offset, params.Limit)
	case "DRIVER":
		txs, total, err = h.txService.ListForDriver(c.Context(), subjectID, params.Offset, params.Limit)
	default:
		return response.Forbidden(c, "Only drivers and stations have transaction feeds")
	}
	if err != nil {
		return response.InternalServerError(c, "Failed to list transactions")
	}

	responses := make([]*models.TransactionResponse, len(txs))
	for i, tx := range txs {
		responses[i] = tx.ToResponse()
	}

	return response.Success(c, "Transactions retrieved successfully", pagination.NewResponse(responses, params, total))
}
