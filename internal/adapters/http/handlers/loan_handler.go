package handlers

import (
	"errors"
	"strings"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/core/domain"
	"fuelink/internal/core/services"
	"fuelink/internal/pkg/pagination"
	"fuelink/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// LoanHandler handles loan endpoints
type LoanHandler struct {
	loanService *services.LoanService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// RepaymentRequest represents post repayment request body
type RepaymentRequest struct {
	Amount    float64 `json:"amount"`
	Source    string  `json:"source"`
	Reference string  `json:"reference"`
}

// Get handles loan retrieval
// @Summary Get loan
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [get]
func (h *LoanHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid loan ID")
	}

	loan, err := h.loanService.Get(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return response.NotFound(c, "Loan not found")
		}
		return response.InternalServerError(c, "Failed to get loan")
	}

	return response.Success(c, "Loan retrieved successfully", loan.ToResponse())
}

// Statement handles loan statement retrieval
// @Summary Get loan statement
// @Description Loan with its full repayment history
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id}/statement [get]
func (h *LoanHandler) Statement(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid loan ID")
	}

	statement, err := h.loanService.Statement(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return response.NotFound(c, "Loan not found")
		}
		return response.InternalServerError(c, "Failed to build loan statement")
	}

	return response.Success(c, "Loan statement retrieved successfully", statement)
}

// PostRepayment handles posting a repayment to a loan
// @Summary Post repayment
// @Description Apply a payment to the loan; the repaid amount is released back to the credit line
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param body body RepaymentRequest true "Repayment data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans/{id}/repayments [post]
func (h *LoanHandler) PostRepayment(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid loan ID")
	}

	var req RepaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Amount <= 0 {
		return response.BadRequest(c, "Amount must be positive")
	}

	input := &services.RepaymentInput{
		Amount:    req.Amount,
		Source:    strings.ToUpper(strings.TrimSpace(req.Source)),
		Reference: req.Reference,
	}

	loan, err := h.loanService.PostRepayment(c.Context(), uint(id), input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLoanNotFound):
			return response.NotFound(c, "Loan not found")
		case errors.Is(err, domain.ErrLoanNotActive):
			return response.UnprocessableEntity(c, "Loan is not open for repayment")
		case errors.Is(err, domain.ErrRepaymentTooLarge):
			return response.UnprocessableEntity(c, "Repayment exceeds outstanding balance")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Invalid repayment amount")
		case errors.Is(err, domain.ErrLoanContention):
			return response.Conflict(c, "Loan is under contention, please retry")
		default:
			return response.InternalServerError(c, "Failed to post repayment")
		}
	}

	return response.Success(c, "Repayment posted successfully", loan.ToResponse())
}

// MarkDefaulted handles writing off an overdue loan
// @Summary Mark loan defaulted
// @Description Write off an overdue loan after its grace period has elapsed
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans/{id}/default [post]
func (h *LoanHandler) MarkDefaulted(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid loan ID")
	}

	loan, err := h.loanService.MarkDefaulted(c.Context(), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLoanNotFound):
			return response.NotFound(c, "Loan not found")
		case errors.Is(err, domain.ErrLoanNotOverdue):
			return response.UnprocessableEntity(c, "Loan is not overdue past its grace period")
		default:
			return response.InternalServerError(c, "Failed to mark loan defaulted")
		}
	}

	return response.Success(c, "Loan marked defaulted", loan.ToResponse())
}

// ListMine handles listing loans for the authenticated driver or agency
// @Summary List my loans
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /loans [get]
func (h *LoanHandler) ListMine(c *fiber.Ctx) error {
	subjectID, ok := c.Locals("subjectID").(uint)
	if !ok || subjectID == 0 {
		return response.Unauthorized(c, "Unauthorized")
	}
	role, _ := c.Locals("role").(string)

	params := pagination.GetParams(c)
	status := strings.ToUpper(c.Query("status", ""))

	var (
		loans []*models.Loan
		total int64
		err   error
	)
	switch role {
	case "AGENCY":
		loans, total, err = h.loanService.ListForAgency(c.Context(), subjectID, status, params.Offset, params.Limit)
	case "DRIVER":
		loans, total, err = h.loanService.ListForDriver(c.Context(), subjectID, status, params.Offset, params.Limit)
	default:
		return response.Forbidden(c, "Only drivers and agencies have loan feeds")
	}
	if err != nil {
		return response.InternalServerError(c, "Failed to list loans")
	}

	responses := make([]*models.LoanResponse, len(loans))
	for i, loan := range loans {
		responses[i] = loan.ToResponse()
	}

	return response.Success(c, "Loans retrieved successfully", pagination.NewResponse(responses, params, total))
}
