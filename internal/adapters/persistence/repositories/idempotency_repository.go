package repositories

import (
	"context"
	"errors"
	"time"

	"fuelink/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// IdempotencyRepository handles idempotency record data access
type IdempotencyRepository struct {
	db *gorm.DB
}

// NewIdempotencyRepository creates a new idempotency repository
func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Get returns the record for (key, kind), or nil when none exists
func (r *IdempotencyRepository) Get(ctx context.Context, key, kind string) (*models.IdempotencyRecord, error) {
	var record models.IdempotencyRecord
	err := r.db.WithContext(ctx).
		Where("idem_key = ?", key).
		Where("operation_kind = ?", kind).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Create inserts a pending record. The unique (idem_key, operation_kind)
// index makes two racing callers collide here; the loser reads the
// winner's row instead.
func (r *IdempotencyRepository) Create(ctx context.Context, record *models.IdempotencyRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Complete stores the final result against a pending record
func (r *IdempotencyRepository) Complete(ctx context.Context, id uint, code int, body string) error {
	return r.db.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"completed":   true,
			"result_code": code,
			"result_body": body,
		}).Error
}

// Delete removes a pending record after the guarded operation failed,
// so the client may retry with the same key.
func (r *IdempotencyRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.IdempotencyRecord{}, id).Error
}

// DeleteExpired drops records past their retention window
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.IdempotencyRecord{})
	return result.RowsAffected, result.Error
}
