package repositories

import (
	"context"
	"time"

	"fuelink/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// VoucherRepository handles QR voucher data access
type VoucherRepository struct {
	db *gorm.DB
}

// NewVoucherRepository creates a new voucher repository
func NewVoucherRepository(db *gorm.DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

// Create creates a new voucher
func (r *VoucherRepository) Create(ctx context.Context, voucher *models.QrVoucher) error {
	return r.db.WithContext(ctx).Create(voucher).Error
}

// GetByCode gets a voucher by its opaque code
func (r *VoucherRepository) GetByCode(ctx context.Context, code string) (*models.QrVoucher, error) {
	var voucher models.QrVoucher
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// GetByID gets a voucher by ID
func (r *VoucherRepository) GetByID(ctx context.Context, id uint) (*models.QrVoucher, error) {
	var voucher models.QrVoucher
	err := r.db.WithContext(ctx).First(&voucher, id).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// MarkRedeemed flips ISSUED -> REDEEMED as a single conditional update.
// Two concurrent scans of the same voucher race on the status predicate;
// exactly one sees RowsAffected == 1. Returns false when this caller lost.
func (r *VoucherRepository) MarkRedeemed(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.QrVoucher{}).
		Where("id = ?", id).
		Where("status = ?", models.VoucherStatusIssued).
		Updates(map[string]interface{}{
			"status":      models.VoucherStatusRedeemed,
			"redeemed_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Reopen undoes a redemption after a downstream authorize step failed,
// returning the voucher to ISSUED so the driver can retry the scan.
func (r *VoucherRepository) Reopen(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.QrVoucher{}).
		Where("id = ?", id).
		Where("status = ?", models.VoucherStatusRedeemed).
		Updates(map[string]interface{}{
			"status":      models.VoucherStatusIssued,
			"redeemed_at": nil,
		}).Error
}

// MarkExpired stamps a voucher EXPIRED; only ISSUED vouchers qualify
func (r *VoucherRepository) MarkExpired(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.QrVoucher{}).
		Where("id = ?", id).
		Where("status = ?", models.VoucherStatusIssued).
		Update("status", models.VoucherStatusExpired).Error
}

// AttachTransaction links the redeemed voucher to the transaction it produced
func (r *VoucherRepository) AttachTransaction(ctx context.Context, id uint, transactionID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.QrVoucher{}).
		Where("id = ?", id).
		Update("transaction_id", transactionID).Error
}

// ExpireStale marks all ISSUED vouchers past their expiry as EXPIRED.
// Used by the cron sweep; redemption-time checks never rely on it.
func (r *VoucherRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.QrVoucher{}).
		Where("status = ?", models.VoucherStatusIssued).
		Where("expires_at < ?", now).
		Update("status", models.VoucherStatusExpired)
	return result.RowsAffected, result.Error
}

// ListByDriver lists vouchers issued to a driver
func (r *VoucherRepository) ListByDriver(ctx context.Context, driverID uint, offset, limit int) ([]*models.QrVoucher, int64, error) {
	var vouchers []*models.QrVoucher
	var total int64

	r.db.WithContext(ctx).Model(&models.QrVoucher{}).Where("driver_id = ?", driverID).Count(&total)

	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("issued_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&vouchers).Error

	return vouchers, total, err
}
