package repositories

import (
	"context"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/core/domain"

	"gorm.io/gorm"
)

// CreditLineRepository handles credit line data access. All mutations of
// (utilized_amount, version) go through CompareAndSwapUtilized; there is
// no pessimistic locking anywhere on this table.
type CreditLineRepository struct {
	db *gorm.DB
}

// NewCreditLineRepository creates a new credit line repository
func NewCreditLineRepository(db *gorm.DB) *CreditLineRepository {
	return &CreditLineRepository{db: db}
}

// Create creates a new credit line
func (r *CreditLineRepository) Create(ctx context.Context, line *models.CreditLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// GetByID gets a credit line by ID
func (r *CreditLineRepository) GetByID(ctx context.Context, id uint) (*models.CreditLine, error) {
	var line models.CreditLine
	err := r.db.WithContext(ctx).First(&line, id).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// GetByDriverID gets the active credit line owned by a driver
func (r *CreditLineRepository) GetByDriverID(ctx context.Context, driverID uint) (*models.CreditLine, error) {
	var line models.CreditLine
	err := r.db.WithContext(ctx).
		Where("owner_type = ?", models.LineOwnerDriver).
		Where("driver_id = ?", driverID).
		Where("is_active = ?", true).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// GetByAgencyID gets the active credit line owned by an agency
func (r *CreditLineRepository) GetByAgencyID(ctx context.Context, agencyID uint) (*models.CreditLine, error) {
	var line models.CreditLine
	err := r.db.WithContext(ctx).
		Where("owner_type = ?", models.LineOwnerAgency).
		Where("agency_id = ?", agencyID).
		Where("is_active = ?", true).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// CompareAndSwapUtilized atomically sets utilized_amount and bumps the
// version, but only if the row still carries the version the caller read.
// Returns domain.ErrStaleVersion when another writer got there first.
func (r *CreditLineRepository) CompareAndSwapUtilized(ctx context.Context, id uint, newUtilized float64, expectedVersion uint64) error {
	result := r.db.WithContext(ctx).
		Model(&models.CreditLine{}).
		Where("id = ?", id).
		Where("version = ?", expectedVersion).
		Updates(map[string]interface{}{
			"utilized_amount": newUtilized,
			"version":         gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrStaleVersion
	}
	return nil
}

// UpdateLimit resizes a credit line (onboarding / bank approval path).
// Limit changes also go through the version stamp so they serialize
// against concurrent reserves.
func (r *CreditLineRepository) UpdateLimit(ctx context.Context, id uint, newLimit float64, expectedVersion uint64) error {
	result := r.db.WithContext(ctx).
		Model(&models.CreditLine{}).
		Where("id = ?", id).
		Where("version = ?", expectedVersion).
		Updates(map[string]interface{}{
			"credit_limit": newLimit,
			"version":      gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrStaleVersion
	}
	return nil
}

// Deactivate soft-disables a credit line. Lines are never deleted.
func (r *CreditLineRepository) Deactivate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.CreditLine{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

// ListByBank lists credit lines funded by a bank
func (r *CreditLineRepository) ListByBank(ctx context.Context, bankID uint, offset, limit int) ([]*models.CreditLine, int64, error) {
	var lines []*models.CreditLine
	var total int64

	r.db.WithContext(ctx).Model(&models.CreditLine{}).Where("bank_id = ?", bankID).Count(&total)

	err := r.db.WithContext(ctx).
		Where("bank_id = ?", bankID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&lines).Error

	return lines, total, err
}

// CountChildren counts lines pointing at the given parent line
func (r *CreditLineRepository) CountChildren(ctx context.Context, parentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditLine{}).
		Where("parent_line_id = ?", parentID).
		Count(&count).Error
	return count, err
}
