package handlers

import (
	"errors"

	"fuelink/internal/core/domain"
	"fuelink/internal/core/services"
	"fuelink/internal/pkg/pagination"
	"fuelink/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PartyHandler handles onboarding and directory endpoints for banks,
// agencies, drivers and stations
type PartyHandler struct {
	partyService *services.PartyService
}

// NewPartyHandler creates a new party handler
func NewPartyHandler(partyService *services.PartyService) *PartyHandler {
	return &PartyHandler{partyService: partyService}
}

// CreateBank handles bank onboarding
// @Summary Create bank
// @Tags Parties
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateBankInput true "Bank data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /banks [post]
func (h *PartyHandler) CreateBank(c *fiber.Ctx) error {
	var req services.CreateBankInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	bank, err := h.partyService.CreateBank(c.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return response.BadRequest(c, "Bank name is required")
		}
		return response.InternalServerError(c, "Failed to create bank")
	}

	return response.Created(c, "Bank created successfully", bank)
}

// CreateAgency handles agency onboarding
// @Summary Create agency
// @Tags Parties
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateAgencyInput true "Agency data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /agencies [post]
func (h *PartyHandler) CreateAgency(c *fiber.Ctx) error {
	var req services.CreateAgencyInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	agency, err := h.partyService.CreateAgency(c.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return response.BadRequest(c, "Agency name is required")
		}
		return response.InternalServerError(c, "Failed to create agency")
	}

	return response.Created(c, "Agency created successfully", agency)
}

// RescoreAgency handles refreshing an agency's risk score
// @Summary Rescore agency
// @Tags Parties
// @Produce json
// @Security BearerAuth
// @Param id path int true "Agency ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /agencies/{id}/rescore [post]
func (h *PartyHandler) RescoreAgency(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid agency ID")
	}

	agency, score, err := h.partyService.RescoreAgency(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return response.NotFound(c, "Agency not found")
		}
		return response.InternalServerError(c, "Failed to rescore agency")
	}

	return response.Success(c, "Agency rescored successfully", fiber.Map{
		"agency": agency,
		"score": fiber.Map{
			"score":             score.Score,
			"risk_category":     score.RiskCategory,
			"recommended_limit": score.RecommendedLimit,
		},
	})
}

// CreateDriver handles driver onboarding
// @Summary Create driver
// @Tags Parties
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateDriverInput true "Driver data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /drivers [post]
func (h *PartyHandler) CreateDriver(c *fiber.Ctx) error {
	var req services.CreateDriverInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	driver, err := h.partyService.CreateDriver(c.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Driver name and phone number are required")
		case errors.Is(err, domain.ErrNotFound):
			return response.NotFound(c, "Agency not found")
		default:
			return response.InternalServerError(c, "Failed to create driver")
		}
	}

	return response.Created(c, "Driver created successfully", driver)
}

// ScoreDriver handles running the risk heuristics for a driver
// @Summary Score driver
// @Tags Parties
// @Produce json
// @Security BearerAuth
// @Param id path int true "Driver ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /drivers/{id}/score [get]
func (h *PartyHandler) ScoreDriver(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid driver ID")
	}

	score, err := h.partyService.ScoreDriver(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return response.NotFound(c, "Driver not found")
		}
		return response.InternalServerError(c, "Failed to score driver")
	}

	return response.Success(c, "Driver scored successfully", fiber.Map{
		"score":             score.Score,
		"risk_category":     score.RiskCategory,
		"recommended_limit": score.RecommendedLimit,
	})
}

// ListAgencyDrivers handles listing an agency's fleet
// @Summary List agency drivers
// @Tags Parties
// @Produce json
// @Security BearerAuth
// @Param id path int true "Agency ID"
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /agencies/{id}/drivers [get]
func (h *PartyHandler) ListAgencyDrivers(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid agency ID")
	}

	params := pagination.GetParams(c)
	drivers, total, err := h.partyService.ListDriversByAgency(c.Context(), uint(id), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list drivers")
	}

	return response.Success(c, "Drivers retrieved successfully", pagination.NewResponse(drivers, params, total))
}

// CreateStation handles station onboarding
// @Summary Create fuel station
// @Tags Parties
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateStationInput true "Station data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /stations [post]
func (h *PartyHandler) CreateStation(c *fiber.Ctx) error {
	var req services.CreateStationInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	station, err := h.partyService.CreateStation(c.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return response.BadRequest(c, "Station name is required")
		}
		return response.InternalServerError(c, "Failed to create station")
	}

	return response.Created(c, "Station created successfully", station)
}

// ListStations handles listing active fuel stations
// @Summary List fuel stations
// @Tags Parties
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /stations [get]
func (h *PartyHandler) ListStations(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	stations, total, err := h.partyService.ListStations(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list stations")
	}

	return response.Success(c, "Stations retrieved successfully", pagination.NewResponse(stations, params, total))
}
