package repositories

import (
	"context"

	"fuelink/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// PartyRepository handles banks, agencies, drivers and stations
type PartyRepository struct {
	db *gorm.DB
}

// NewPartyRepository creates a new party repository
func NewPartyRepository(db *gorm.DB) *PartyRepository {
	return &PartyRepository{db: db}
}

// CreateBank creates a new bank
func (r *PartyRepository) CreateBank(ctx context.Context, bank *models.Bank) error {
	return r.db.WithContext(ctx).Create(bank).Error
}

// GetBank gets a bank by ID
func (r *PartyRepository) GetBank(ctx context.Context, id uint) (*models.Bank, error) {
	var bank models.Bank
	err := r.db.WithContext(ctx).First(&bank, id).Error
	if err != nil {
		return nil, err
	}
	return &bank, nil
}

// CreateAgency creates a new agency
func (r *PartyRepository) CreateAgency(ctx context.Context, agency *models.Agency) error {
	return r.db.WithContext(ctx).Create(agency).Error
}

// GetAgency gets an agency by ID
func (r *PartyRepository) GetAgency(ctx context.Context, id uint) (*models.Agency, error) {
	var agency models.Agency
	err := r.db.WithContext(ctx).First(&agency, id).Error
	if err != nil {
		return nil, err
	}
	return &agency, nil
}

// UpdateAgency updates an agency
func (r *PartyRepository) UpdateAgency(ctx context.Context, agency *models.Agency) error {
	return r.db.WithContext(ctx).Save(agency).Error
}

// CreateDriver creates a new driver
func (r *PartyRepository) CreateDriver(ctx context.Context, driver *models.Driver) error {
	return r.db.WithContext(ctx).Create(driver).Error
}

// GetDriver gets a driver by ID
func (r *PartyRepository) GetDriver(ctx context.Context, id uint) (*models.Driver, error) {
	var driver models.Driver
	err := r.db.WithContext(ctx).First(&driver, id).Error
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

// ListDriversByAgency lists drivers in an agency fleet
func (r *PartyRepository) ListDriversByAgency(ctx context.Context, agencyID uint, offset, limit int) ([]*models.Driver, int64, error) {
	var drivers []*models.Driver
	var total int64

	r.db.WithContext(ctx).Model(&models.Driver{}).Where("agency_id = ?", agencyID).Count(&total)

	err := r.db.WithContext(ctx).
		Where("agency_id = ?", agencyID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&drivers).Error

	return drivers, total, err
}

// CreateStation creates a new fuel station
func (r *PartyRepository) CreateStation(ctx context.Context, station *models.FuelStation) error {
	return r.db.WithContext(ctx).Create(station).Error
}

// GetStation gets a fuel station by ID
func (r *PartyRepository) GetStation(ctx context.Context, id uint) (*models.FuelStation, error) {
	var station models.FuelStation
	err := r.db.WithContext(ctx).First(&station, id).Error
	if err != nil {
		return nil, err
	}
	return &station, nil
}

// ListStations lists active fuel stations
func (r *PartyRepository) ListStations(ctx context.Context, offset, limit int) ([]*models.FuelStation, int64, error) {
	var stations []*models.FuelStation
	var total int64

	r.db.WithContext(ctx).Model(&models.FuelStation{}).Where("is_active = ?", true).Count(&total)

	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Offset(offset).
		Limit(limit).
		Find(&stations).Error

	return stations, total, err
}
