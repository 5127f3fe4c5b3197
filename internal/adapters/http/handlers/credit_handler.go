package handlers

import (
	"errors"

	"fuelink/internal/core/domain"
	"fuelink/internal/core/services"
	"fuelink/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CreditHandler handles credit line endpoints
type CreditHandler struct {
	creditService *services.CreditService
}

// NewCreditHandler creates a new credit handler
func NewCreditHandler(creditService *services.CreditService) *CreditHandler {
	return &CreditHandler{creditService: creditService}
}

// CreateLineRequest represents create credit line request body
type CreateLineRequest struct {
	OwnerType   string  `json:"owner_type"`
	DriverID    *uint   `json:"driver_id"`
	AgencyID    *uint   `json:"agency_id"`
	BankID      uint    `json:"bank_id"`
	CreditLimit float64 `json:"credit_limit"`
}

// ResizeLineRequest represents resize credit line request body
type ResizeLineRequest struct {
	CreditLimit float64 `json:"credit_limit"`
}

// CreateLine handles credit line creation
// @Summary Create credit line
// @Description Open a credit line for a driver or agency; limit 0 takes the scoring recommendation
// @Tags Credit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateLineRequest true "Credit line data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /credit-lines [post]
func (h *CreditHandler) CreateLine(c *fiber.Ctx) error {
	var req CreateLineRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.BankID == 0 {
		return response.BadRequest(c, "Bank ID is required")
	}

	input := &services.CreateLineInput{
		OwnerType:   req.OwnerType,
		DriverID:    req.DriverID,
		AgencyID:    req.AgencyID,
		BankID:      req.BankID,
		CreditLimit: req.CreditLimit,
	}

	line, err := h.creditService.CreateLine(c.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCreditLineNotFound):
			return response.NotFound(c, "Referenced party or parent line not found")
		case errors.Is(err, domain.ErrHierarchyTooDeep):
			return response.UnprocessableEntity(c, "Credit line hierarchy is limited to agency and driver levels")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Invalid owner type or missing owner ID")
		default:
			return response.InternalServerError(c, "Failed to create credit line")
		}
	}

	return response.Created(c, "Credit line created successfully", line.ToResponse())
}

// GetLine handles credit line retrieval
// @Summary Get credit line
// @Tags Credit
// @Produce json
// @Security BearerAuth
// @Param id path int true "Credit line ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /credit-lines/{id} [get]
func (h *CreditHandler) GetLine(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid credit line ID")
	}

	line, err := h.creditService.GetLine(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrCreditLineNotFound) {
			return response.NotFound(c, "Credit line not found")
		}
		return response.InternalServerError(c, "Failed to get credit line")
	}

	return response.Success(c, "Credit line retrieved successfully", line.ToResponse())
}

// GetAvailable handles available credit retrieval
// @Summary Get available credit
// @Description Resolve effective headroom across the line and its parent pool
// @Tags Credit
// @Produce json
// @Security BearerAuth
// @Param id path int true "Credit line ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /credit-lines/{id}/available [get]
func (h *CreditHandler) GetAvailable(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid credit line ID")
	}

	available, err := h.creditService.AvailableCredit(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrCreditLineNotFound) {
			return response.NotFound(c, "Credit line not found")
		}
		return response.InternalServerError(c, "Failed to compute available credit")
	}

	return response.Success(c, "Available credit retrieved successfully", fiber.Map{
		"credit_line_id":   uint(id),
		"available_credit": available,
	})
}

// ResizeLine handles credit limit changes
// @Summary Resize credit line
// @Tags Credit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Credit line ID"
// @Param body body ResizeLineRequest true "New limit"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /credit-lines/{id}/limit [patch]
func (h *CreditHandler) ResizeLine(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid credit line ID")
	}

	var req ResizeLineRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	line, err := h.creditService.ResizeLine(c.Context(), uint(id), req.CreditLimit)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCreditLineNotFound):
			return response.NotFound(c, "Credit line not found")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Credit limit must not be negative")
		case errors.Is(err, domain.ErrLimitBelowUtilized):
			return response.UnprocessableEntity(c, "Credit limit cannot be set below the utilized amount")
		case errors.Is(err, domain.ErrCreditLineContention):
			return response.Conflict(c, "Credit line is under contention, please retry")
		default:
			return response.InternalServerError(c, "Failed to resize credit line")
		}
	}

	return response.Success(c, "Credit line resized successfully", line.ToResponse())
}

// DeactivateLine handles credit line deactivation
// @Summary Deactivate credit line
// @Tags Credit
// @Produce json
// @Security BearerAuth
// @Param id path int true "Credit line ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /credit-lines/{id}/deactivate [post]
func (h *CreditHandler) DeactivateLine(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid credit line ID")
	}

	if err := h.creditService.DeactivateLine(c.Context(), uint(id)); err != nil {
		if errors.Is(err, domain.ErrCreditLineNotFound) {
			return response.NotFound(c, "Credit line not found")
		}
		return response.InternalServerError(c, "Failed to deactivate credit line")
	}

	return response.Success(c, "Credit line deactivated successfully", nil)
}
