package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/adapters/persistence/repositories"
	"fuelink/internal/core/domain"
)

// PartyService onboards and reads the clearing parties: banks, agencies,
// drivers and fuel stations. Credit lines are created separately through
// the credit service once a party exists.
type PartyService struct {
	partyRepo *repositories.PartyRepository
	scoring   *ScoringService
}

// NewPartyService creates a new party service
func NewPartyService(partyRepo *repositories.PartyRepository, scoring *ScoringService) *PartyService {
	return &PartyService{partyRepo: partyRepo, scoring: scoring}
}

// CreateBankInput represents create bank input
type CreateBankInput struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
}

// CreateBank onboards a funding bank
func (s *PartyService) CreateBank(ctx context.Context, input *CreateBankInput) (*models.Bank, error) {
	if input.Name == "" {
		return nil, domain.ErrInvalidInput
	}
	bank := &models.Bank{
		Name:          input.Name,
		AccountNumber: input.AccountNumber,
		IsActive:      true,
	}
	if err := s.partyRepo.CreateBank(ctx, bank); err != nil {
		return nil, err
	}
	return bank, nil
}

// GetBank gets a bank by ID
func (s *PartyService) GetBank(ctx context.Context, id uint) (*models.Bank, error) {
	bank, err := s.partyRepo.GetBank(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return bank, nil
}

// CreateAgencyInput represents create agency input
type CreateAgencyInput struct {
	Name                 string  `json:"name"`
	FleetSize            int     `json:"fleet_size"`
	AverageRepaymentDays float64 `json:"average_repayment_days"`
	MonthlyFuelVolume    float64 `json:"monthly_fuel_volume"`
}

// CreateAgency onboards a fleet agency, scoring it on the way in
func (s *PartyService) CreateAgency(ctx context.Context, input *CreateAgencyInput) (*models.Agency, error) {
	if input.Name == "" {
		return nil, domain.ErrInvalidInput
	}
	agency := &models.Agency{
		Name:                 input.Name,
		FleetSize:            input.FleetSize,
		AverageRepaymentDays: input.AverageRepaymentDays,
		MonthlyFuelVolume:    input.MonthlyFuelVolume,
	}
	agency.RiskScore = s.scoring.ScoreAgency(agency).Score

	if err := s.partyRepo.CreateAgency(ctx, agency); err != nil {
		return nil, err
	}
	return agency, nil
}

// GetAgency gets an agency by ID
func (s *PartyService) GetAgency(ctx context.Context, id uint) (*models.Agency, error) {
	agency, err := s.partyRepo.GetAgency(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return agency, nil
}

// RescoreAgency refreshes an agency's risk score from its current
// fleet figures and returns the updated record.
func (s *PartyService) RescoreAgency(ctx context.Context, id uint) (*models.Agency, domain.CreditScore, error) {
	agency, err := s.GetAgency(ctx, id)
	if err != nil {
		return nil, domain.CreditScore{}, err
	}

	score := s.scoring.ScoreAgency(agency)
	agency.RiskScore = score.Score
	if err := s.partyRepo.UpdateAgency(ctx, agency); err != nil {
		return nil, domain.CreditScore{}, err
	}
	return agency, score, nil
}

// CreateDriverInput represents create driver input
type CreateDriverInput struct {
	FullName              string  `json:"full_name"`
	PhoneNumber           string  `json:"phone_number"`
	AgencyID              *uint   `json:"agency_id"`
	PreferredBankID       *uint   `json:"preferred_bank_id"`
	FuelTankCapacityL     float64 `json:"fuel_tank_capacity_liters"`
	FuelConsumptionLPerKm float64 `json:"fuel_consumption_l_per_km"`
}

// CreateDriver onboards a driver, optionally under an agency fleet
func (s *PartyService) CreateDriver(ctx context.Context, input *CreateDriverInput) (*models.Driver, error) {
	if input.FullName == "" || input.PhoneNumber == "" {
		return nil, domain.ErrInvalidInput
	}
	if input.AgencyID != nil {
		if _, err := s.GetAgency(ctx, *input.AgencyID); err != nil {
			return nil, err
		}
	}

	driver := &models.Driver{
		FullName:              input.FullName,
		PhoneNumber:           input.PhoneNumber,
		AgencyID:              input.AgencyID,
		PreferredBankID:       input.PreferredBankID,
		FuelTankCapacityL:     input.FuelTankCapacityL,
		FuelConsumptionLPerKm: input.FuelConsumptionLPerKm,
	}
	if err := s.partyRepo.CreateDriver(ctx, driver); err != nil {
		return nil, err
	}
	return driver, nil
}

// GetDriver gets a driver by ID
func (s *PartyService) GetDriver(ctx context.Context, id uint) (*models.Driver, error) {
	driver, err := s.partyRepo.GetDriver(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return driver, nil
}

// ScoreDriver runs the risk heuristics for a driver without persisting
// anything; banks consult it before approving a line resize.
func (s *PartyService) ScoreDriver(ctx context.Context, id uint) (domain.CreditScore, error) {
	driver, err := s.GetDriver(ctx, id)
	if err != nil {
		return domain.CreditScore{}, err
	}
	return s.scoring.ScoreDriver(driver), nil
}

// ListDriversByAgency lists an agency's fleet
func (s *PartyService) ListDriversByAgency(ctx context.Context, agencyID uint, offset, limit int) ([]*models.Driver, int64, error) {
	return s.partyRepo.ListDriversByAgency(ctx, agencyID, offset, limit)
}

// CreateStationInput represents create station input
type CreateStationInput struct {
	Name            string `json:"name"`
	MerchantAccount string `json:"merchant_account"`
}

// CreateStation onboards a fuel station
func (s *PartyService) CreateStation(ctx context.Context, input *CreateStationInput) (*models.FuelStation, error) {
	if input.Name == "" {
		return nil, domain.ErrInvalidInput
	}
	station := &models.FuelStation{
		Name:            input.Name,
		MerchantAccount: input.MerchantAccount,
		IsActive:        true,
	}
	if err := s.partyRepo.CreateStation(ctx, station); err != nil {
		return nil, err
	}
	return station, nil
}

// GetStation gets a fuel station by ID
func (s *PartyService) GetStation(ctx context.Context, id uint) (*models.FuelStation, error) {
	station, err := s.partyRepo.GetStation(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return station, nil
}

// ListStations lists active fuel stations
func (s *PartyService) ListStations(ctx context.Context, offset, limit int) ([]*models.FuelStation, int64, error) {
	return s.partyRepo.ListStations(ctx, offset, limit)
}
