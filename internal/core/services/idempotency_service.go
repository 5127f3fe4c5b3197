package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"time"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/adapters/persistence/repositories"
	"fuelink/internal/core/domain"
)

// IdempotencyService deduplicates retried requests. A (key, kind) pair
// maps to at most one stored result; replays get that result verbatim,
// and reusing a key for a different logical request is a client error
// rather than a silent merge.
type IdempotencyService struct {
	repo      *repositories.IdempotencyRepository
	retention time.Duration
}

// NewIdempotencyService creates a new idempotency service. Retention
// should cover the longest plausible client retry window; callers wire
// it as voucher TTL times a safety factor.
func NewIdempotencyService(repo *repositories.IdempotencyRepository, retention time.Duration) *IdempotencyService {
	if retention <= 0 {
		retention = 2 * time.Hour
	}
	return &IdempotencyService{repo: repo, retention: retention}
}

// Fingerprint canonicalizes a request payload for collision detection
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Begin consults the guard before a state-mutating operation. It
// returns (record, true) when a completed result exists for the same
// request, (record, false) when the operation should proceed and later
// call Complete or Abandon on the returned pending record.
func (s *IdempotencyService) Begin(ctx context.Context, key, kind, fingerprint string) (*models.IdempotencyRecord, bool, error) {
	existing, err := s.repo.Get(ctx, key, kind)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return s.resolve(ctx, existing, fingerprint)
	}

	record := &models.IdempotencyRecord{
		IdemKey:       key,
		OperationKind: kind,
		Fingerprint:   fingerprint,
		ExpiresAt:     time.Now().Add(s.retention),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		// A unique-index violation means we lost the insert race; the
		// winner's row decides. Not every driver maps to
		// gorm.ErrDuplicatedKey, so re-read rather than inspect err.
		winner, gerr := s.repo.Get(ctx, key, kind)
		if gerr == nil && winner != nil {
			return s.resolve(ctx, winner, fingerprint)
		}
		return nil, false, err
	}
	return record, false, nil
}

// resolve decides what an existing record means for the new attempt
func (s *IdempotencyService) resolve(ctx context.Context, record *models.IdempotencyRecord, fingerprint string) (*models.IdempotencyRecord, bool, error) {
	if record.Fingerprint != fingerprint {
		return nil, false, domain.ErrIdempotencyKeyConflict
	}
	if record.Completed {
		return record, true, nil
	}
	if time.Now().After(record.ExpiresAt) {
		// Crashed attempt past retention: take the slot over
		if err := s.repo.Delete(ctx, record.ID); err != nil {
			return nil, false, err
		}
		fresh := &models.IdempotencyRecord{
			IdemKey:       record.IdemKey,
			OperationKind: record.OperationKind,
			Fingerprint:   fingerprint,
			ExpiresAt:     time.Now().Add(s.retention),
		}
		if err := s.repo.Create(ctx, fresh); err != nil {
			return nil, false, err
		}
		return fresh, false, nil
	}
	// Same request still in flight elsewhere
	return nil, false, domain.ErrIdempotencyKeyConflict
}

// Complete stores the operation's final result against the record
func (s *IdempotencyService) Complete(ctx context.Context, record *models.IdempotencyRecord, code int, body []byte) {
	if err := s.repo.Complete(ctx, record.ID, code, string(body)); err != nil {
		log.Printf("❌ Failed to store idempotency result for %s/%s: %v", record.OperationKind, record.IdemKey, err)
	}
}

// Abandon releases the slot after the guarded operation failed, so the
// client may retry with the same key.
func (s *IdempotencyService) Abandon(ctx context.Context, record *models.IdempotencyRecord) {
	if err := s.repo.Delete(ctx, record.ID); err != nil {
		log.Printf("❌ Failed to release idempotency slot for %s/%s: %v", record.OperationKind, record.IdemKey, err)
	}
}

// PurgeExpired drops records past their retention window
func (s *IdempotencyService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, time.Now())
}
