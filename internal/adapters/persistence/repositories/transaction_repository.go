package repositories

import (
	"context"
	"time"

	"fuelink/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// TransactionRepository handles transaction data access
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create creates a new transaction
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// GetByID gets a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).First(&tx, id).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetByIdempotencyKey gets the transaction created under a given key
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// Settle moves AUTHORIZED -> SETTLED as a single conditional update so a
// concurrent expire/cancel cannot interleave. Returns false when the
// transaction was no longer AUTHORIZED.
func (r *TransactionRepository) Settle(ctx context.Context, id uint, settledAmount float64, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Where("status = ?", models.TxStatusAuthorized).
		Updates(map[string]interface{}{
			"status":         models.TxStatusSettled,
			"settled_amount": settledAmount,
			"settled_at":     at,
			"closed_at":      at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Close moves AUTHORIZED -> EXPIRED or CANCELLED with the same
// conditional-update discipline as Settle.
func (r *TransactionRepository) Close(ctx context.Context, id uint, status string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Where("status = ?", models.TxStatusAuthorized).
		Updates(map[string]interface{}{
			"status":    status,
			"closed_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListAuthorizedBefore returns AUTHORIZED transactions older than the
// cutoff, for the caller-driven expiry sweep.
func (r *TransactionRepository) ListAuthorizedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ?", models.TxStatusAuthorized).
		Where("authorized_at < ?", cutoff).
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

// ListByDriver lists transactions for a driver
func (r *TransactionRepository) ListByDriver(ctx context.Context, driverID uint, offset, limit int) ([]*models.Transaction, int64, error) {
	var txs []*models.Transaction
	var total int64

	r.db.WithContext(ctx).Model(&models.Transaction{}).Where("driver_id = ?", driverID).Count(&total)

	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("authorized_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&txs).Error

	return txs, total, err
}

// ListByStation lists transactions redeemed at a station
func (r *TransactionRepository) ListByStation(ctx context.Context, stationID uint, offset, limit int) ([]*models.Transaction, int64, error) {
	var txs []*models.Transaction
	var total int64

	r.db.WithContext(ctx).Model(&models.Transaction{}).Where("station_id = ?", stationID).Count(&total)

	err := r.db.WithContext(ctx).
		Where("station_id = ?", stationID).
		Order("authorized_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&txs).Error

	return txs, total, err
}

// CreateSettlementIntent records the settlement-intent row emitted on capture
func (r *TransactionRepository) CreateSettlementIntent(ctx context.Context, intent *models.SettlementIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

// GetSettlementIntent gets the settlement intent for a transaction
func (r *TransactionRepository) GetSettlementIntent(ctx context.Context, transactionID uint) (*models.SettlementIntent, error) {
	var intent models.SettlementIntent
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}
