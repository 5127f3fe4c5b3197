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

// VoucherHandler handles QR voucher endpoints
type VoucherHandler struct {
	voucherService *services.VoucherService
}

// NewVoucherHandler creates a new voucher handler
func NewVoucherHandler(voucherService *services.VoucherService) *VoucherHandler {
	return &VoucherHandler{voucherService: voucherService}
}

// IssueVoucherRequest represents issue voucher request body
type IssueVoucherRequest struct {
	StationID uint    `json:"station_id"`
	Amount    float64 `json:"amount"`
}

// Issue handles voucher issuance for the authenticated driver
// @Summary Issue QR voucher
// @Description Issue a single-use voucher bound to one station; requires an Idempotency-Key header
// @Tags Vouchers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Client-generated idempotency key"
// @Param body body IssueVoucherRequest true "Voucher data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /vouchers [post]
func (h *VoucherHandler) Issue(c *fiber.Ctx) error {
	driverID, ok := c.Locals("subjectID").(uint)
	if !ok || driverID == 0 {
		return response.Unauthorized(c, "Unauthorized")
	}

	idemKey := c.Get("Idempotency-Key")
	if idemKey == "" {
		return response.BadRequest(c, "Idempotency-Key header is required")
	}

	var req IssueVoucherRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.StationID == 0 {
		return response.BadRequest(c, "Station ID is required")
	}
	if req.Amount <= 0 {
		return response.BadRequest(c, "Amount must be positive")
	}

	input := &services.IssueVoucherInput{
		DriverID:       driverID,
		StationID:      req.StationID,
		Amount:         req.Amount,
		IdempotencyKey: idemKey,
	}

	voucher, err := h.voucherService.Issue(c.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCreditLineNotFound):
			return response.NotFound(c, "Driver, station or credit line not found")
		case errors.Is(err, domain.ErrCreditLineInactive):
			return response.UnprocessableEntity(c, "Credit line is deactivated")
		case errors.Is(err, domain.ErrInsufficientCredit):
			return response.UnprocessableEntity(c, "Insufficient available credit")
		case errors.Is(err, domain.ErrIdempotencyKeyConflict):
			return response.Conflict(c, "Idempotency key already used for a different request")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Invalid voucher request")
		default:
			return response.InternalServerError(c, "Failed to issue voucher")
		}
	}

	return response.Created(c, "Voucher issued successfully", voucher)
}

// GetByCode handles voucher lookup by code
// @Summary Get voucher
// @Tags Vouchers
// @Produce json
// @Security BearerAuth
// @Param code path string true "Voucher code"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /vouchers/{code} [get]
func (h *VoucherHandler) GetByCode(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return response.BadRequest(c, "Voucher code is required")
	}

	voucher, err := h.voucherService.GetByCode(c.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrVoucherNotFound) {
			return response.NotFound(c, "Voucher not found")
		}
		return response.InternalServerError(c, "Failed to get voucher")
	}

	return response.Success(c, "Voucher retrieved successfully", voucher.ToResponse())
}

// ListMine handles listing the authenticated driver's vouchers
// @Summary List my vouchers
// @Tags Vouchers
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /vouchers [get]
func (h *VoucherHandler) ListMine(c *fiber.Ctx) error {
	driverID, ok := c.Locals("subjectID").(uint)
	if !ok || driverID == 0 {
		return response.Unauthorized(c, "Unauthorized")
	}

	params := pagination.GetParams(c)
	vouchers, total, err := h.voucherService.ListForDriver(c.Context(), driverID, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list vouchers")
	}

	responses := make([]*models.QrVoucherResponse, len(vouchers))
	for i, v := range vouchers {
		responses[i] = v.ToResponse()
	}

	return response.Success(c, "Vouchers retrieved successfully", pagination.NewResponse(responses, params, total))
}
