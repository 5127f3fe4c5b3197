package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/adapters/persistence/repositories"
	"fuelink/internal/core/domain"
)

// TransactionService runs the hold/capture cycle. Authorize redeems a
// voucher and places the hold; Settle captures the pumped amount,
// returns the difference and derives the loan. Every state transition
// is a conditional update so concurrent settles, cancels and expiry
// sweeps cannot double-apply.
type TransactionService struct {
	txRepo      *repositories.TransactionRepository
	voucherRepo *repositories.VoucherRepository
	partyRepo   *repositories.PartyRepository
	credit      *CreditService
	loans       *LoanService
	guard       *IdempotencyService
	notifier    *NotificationService
}

// NewTransactionService creates a new transaction service
func NewTransactionService(
	txRepo *repositories.TransactionRepository,
	voucherRepo *repositories.VoucherRepository,
	partyRepo *repositories.PartyRepository,
	credit *CreditService,
	loans *LoanService,
	guard *IdempotencyService,
	notifier *NotificationService,
) *TransactionService {
	return &TransactionService{
		txRepo:      txRepo,
		voucherRepo: voucherRepo,
		partyRepo:   partyRepo,
		credit:      credit,
		loans:       loans,
		guard:       guard,
		notifier:    notifier,
	}
}

// AuthorizeInput represents authorize input
type AuthorizeInput struct {
	VoucherCode    string `json:"voucher_code"`
	StationID      uint   `json:"-"`
	IdempotencyKey string `json:"-"`
}

// Authorize redeems the scanned voucher and places a hold for its full
// authorized amount. The voucher flip is the serialization point: of N
// concurrent scans exactly one wins the conditional update, reserves
// credit and creates the transaction; the rest see the voucher as used.
func (s *TransactionService) Authorize(ctx context.Context, input *AuthorizeInput) (*models.TransactionResponse, error) {
	// A retry whose first attempt fully committed finds its transaction
	// directly by key, without touching the voucher again.
	if existing, err := s.txRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey); err == nil {
		return existing.ToResponse(), nil
	}

	voucher, err := s.voucherRepo.GetByCode(ctx, input.VoucherCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrVoucherNotFound
		}
		return nil, err
	}
	if voucher.StationID != input.StationID {
		return nil, domain.ErrVoucherNotFound
	}

	now := time.Now()
	switch voucher.Status {
	case models.VoucherStatusRedeemed:
		return nil, domain.ErrVoucherAlreadyUsed
	case models.VoucherStatusExpired:
		return nil, domain.ErrVoucherExpired
	}
	if voucher.IsExpired(now) {
		if err := s.voucherRepo.MarkExpired(ctx, voucher.ID); err != nil {
			return nil, err
		}
		return nil, domain.ErrVoucherExpired
	}

	fingerprint := Fingerprint(input.VoucherCode, fmt.Sprintf("%d", input.StationID))
	record, replayed, err := s.guard.Begin(ctx, input.IdempotencyKey, models.OpKindAuthorize, fingerprint)
	if err != nil {
		return nil, err
	}
	if replayed {
		var resp models.TransactionResponse
		if err := json.Unmarshal([]byte(record.ResultBody), &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	}

	redeemed, err := s.voucherRepo.MarkRedeemed(ctx, voucher.ID, now)
	if err != nil {
		s.guard.Abandon(ctx, record)
		return nil, err
	}
	if !redeemed {
		s.guard.Abandon(ctx, record)
		return nil, domain.ErrVoucherAlreadyUsed
	}

	line, err := s.credit.GetLine(ctx, voucher.CreditLineID)
	if err != nil {
		s.unwindRedemption(ctx, voucher.ID)
		s.guard.Abandon(ctx, record)
		return nil, err
	}

	if err := s.credit.Reserve(ctx, line.ID, voucher.AuthorizedAmount); err != nil {
		s.unwindRedemption(ctx, voucher.ID)
		s.guard.Abandon(ctx, record)
		return nil, err
	}

	tx := &models.Transaction{
		Reference:        newTransactionReference(),
		IdempotencyKey:   input.IdempotencyKey,
		CreditLineID:     line.ID,
		VoucherID:        voucher.ID,
		DriverID:         voucher.DriverID,
		AgencyID:         line.AgencyID,
		StationID:        voucher.StationID,
		AuthorizedAmount: voucher.AuthorizedAmount,
		Status:           models.TxStatusAuthorized,
		AuthorizedAt:     now,
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		if rerr := s.credit.Release(ctx, line.ID, voucher.AuthorizedAmount); rerr != nil {
			log.Printf("❌ Failed to release hold after aborted authorize on voucher %s: %v", voucher.Code, rerr)
		}
		s.unwindRedemption(ctx, voucher.ID)
		s.guard.Abandon(ctx, record)
		return nil, err
	}

	if err := s.voucherRepo.AttachTransaction(ctx, voucher.ID, tx.ID); err != nil {
		log.Printf("⚠️ Failed to link voucher %s to transaction %s: %v", voucher.Code, tx.Reference, err)
	}

	resp := tx.ToResponse()
	if body, merr := json.Marshal(resp); merr == nil {
		s.guard.Complete(ctx, record, 201, body)
	} else {
		log.Printf("⚠️ Failed to marshal transaction %s for idempotency store: %v", tx.Reference, merr)
	}

	s.notifier.TransactionAuthorized(tx)
	return resp, nil
}

// SettleInput represents settle input
type SettleInput struct {
	TransactionID  uint    `json:"-"`
	Amount         float64 `json:"amount"`
	IdempotencyKey string  `json:"-"`
}

// Settle captures the final pumped amount against the hold. The unused
// part of the authorization flows back to the credit line, a settlement
// intent is queued for the payment rail and the loan is derived.
func (s *TransactionService) Settle(ctx context.Context, input *SettleInput) (*models.TransactionResponse, error) {
	if input.Amount < 0 {
		return nil, domain.ErrInvalidInput
	}

	tx, err := s.Get(ctx, input.TransactionID)
	if err != nil {
		return nil, err
	}

	// The guard resolves before the status checks so a retry of a settle
	// that already landed gets its stored result back, not a conflict.
	fingerprint := Fingerprint(fmt.Sprintf("%d", input.TransactionID), fmt.Sprintf("%.2f", input.Amount))
	record, replayed, err := s.guard.Begin(ctx, input.IdempotencyKey, models.OpKindSettle, fingerprint)
	if err != nil {
		return nil, err
	}
	if replayed {
		var resp models.TransactionResponse
		if err := json.Unmarshal([]byte(record.ResultBody), &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	}

	switch tx.Status {
	case models.TxStatusSettled:
		s.guard.Abandon(ctx, record)
		return nil, domain.ErrAlreadySettled
	case models.TxStatusExpired, models.TxStatusCancelled:
		s.guard.Abandon(ctx, record)
		return nil, domain.ErrTransactionNotAuthorized
	}
	if input.Amount > tx.AuthorizedAmount {
		s.guard.Abandon(ctx, record)
		return nil, domain.ErrSettlementExceedsAuthorization
	}

	now := time.Now()
	settled, err := s.txRepo.Settle(ctx, tx.ID, input.Amount, now)
	if err != nil {
		s.guard.Abandon(ctx, record)
		return nil, err
	}
	if !settled {
		// Lost a race with another settle, a cancel or the expiry sweep
		s.guard.Abandon(ctx, record)
		current, gerr := s.txRepo.GetByID(ctx, tx.ID)
		if gerr == nil && current.Status == models.TxStatusSettled {
			return nil, domain.ErrAlreadySettled
		}
		return nil, domain.ErrTransactionNotAuthorized
	}

	if unused := tx.AuthorizedAmount - input.Amount; unused > 0 {
		if err := s.credit.Release(ctx, tx.CreditLineID, unused); err != nil {
			log.Printf("❌ Failed to release unused hold %.2f on transaction %s: %v", unused, tx.Reference, err)
		}
	}

	tx.Status = models.TxStatusSettled
	tx.SettledAmount = &input.Amount
	tx.SettledAt = &now
	tx.ClosedAt = &now

	s.queueSettlementIntent(ctx, tx, input.Amount)

	if _, err := s.loans.DeriveFromTransaction(ctx, tx, input.Amount); err != nil {
		log.Printf("❌ Failed to derive loan for transaction %s: %v", tx.Reference, err)
	}

	resp := tx.ToResponse()
	if body, merr := json.Marshal(resp); merr == nil {
		s.guard.Complete(ctx, record, 200, body)
	} else {
		log.Printf("⚠️ Failed to marshal transaction %s for idempotency store: %v", tx.Reference, merr)
	}

	s.notifier.TransactionSettled(tx)
	return resp, nil
}

// Cancel voids a pending hold and returns it to the credit line
func (s *TransactionService) Cancel(ctx context.Context, transactionID uint) (*models.Transaction, error) {
	tx, err := s.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	closed, err := s.txRepo.Close(ctx, tx.ID, models.TxStatusCancelled, now)
	if err != nil {
		return nil, err
	}
	if !closed {
		if tx.Status == models.TxStatusSettled {
			return nil, domain.ErrAlreadySettled
		}
		return nil, domain.ErrTransactionNotAuthorized
	}

	if err := s.credit.Release(ctx, tx.CreditLineID, tx.AuthorizedAmount); err != nil {
		log.Printf("❌ Failed to release hold on cancelled transaction %s: %v", tx.Reference, err)
	}

	tx.Status = models.TxStatusCancelled
	tx.ClosedAt = &now
	return tx, nil
}

// ExpireStale closes AUTHORIZED transactions older than maxAge and
// returns their holds. The conditional Close keeps the sweep safe
// against a settle landing on the same row at the same instant.
func (s *TransactionService) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	now := time.Now()
	stale, err := s.txRepo.ListAuthorizedBefore(ctx, now.Add(-maxAge), 500)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, tx := range stale {
		closed, err := s.txRepo.Close(ctx, tx.ID, models.TxStatusExpired, now)
		if err != nil {
			return expired, err
		}
		if !closed {
			continue
		}
		if err := s.credit.Release(ctx, tx.CreditLineID, tx.AuthorizedAmount); err != nil {
			log.Printf("❌ Failed to release hold on expired transaction %s: %v", tx.Reference, err)
		}
		s.notifier.TransactionExpired(tx)
		expired++
	}
	return expired, nil
}

// Get reads a transaction by ID
func (s *TransactionService) Get(ctx context.Context, id uint) (*models.Transaction, error) {
	tx, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// ListForDriver lists a driver's transactions, newest first
func (s *TransactionService) ListForDriver(ctx context.Context, driverID uint, offset, limit int) ([]*models.Transaction, int64, error) {
	return s.txRepo.ListByDriver(ctx, driverID, offset, limit)
}

// ListForStation lists transactions redeemed at a station
func (s *TransactionService) ListForStation(ctx context.Context, stationID uint, offset, limit int) ([]*models.Transaction, int64, error) {
	return s.txRepo.ListByStation(ctx, stationID, offset, limit)
}

// GetSettlementIntent reads the intent queued for a settled transaction
func (s *TransactionService) GetSettlementIntent(ctx context.Context, transactionID uint) (*models.SettlementIntent, error) {
	intent, err := s.txRepo.GetSettlementIntent(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return intent, nil
}

// queueSettlementIntent records the transfer order for the payment rail.
// A failure here is logged, never fatal: the reconciliation job rebuilds
// missing intents from settled transactions.
func (s *TransactionService) queueSettlementIntent(ctx context.Context, tx *models.Transaction, amount float64) {
	if amount <= 0 {
		return
	}

	intent := &models.SettlementIntent{
		TransactionID: tx.ID,
		Amount:        amount,
		Status:        models.IntentStatusPending,
	}

	if station, err := s.partyRepo.GetStation(ctx, tx.StationID); err == nil {
		intent.MerchantAccount = station.MerchantAccount
	}
	if line, err := s.credit.GetLine(ctx, tx.CreditLineID); err == nil {
		if bank, err := s.partyRepo.GetBank(ctx, line.BankID); err == nil {
			intent.BankAccount = bank.AccountNumber
		}
	}

	if err := s.txRepo.CreateSettlementIntent(ctx, intent); err != nil {
		log.Printf("❌ Failed to queue settlement intent for transaction %s: %v", tx.Reference, err)
	}
}

// unwindRedemption reopens a voucher after a failed authorize so the
// driver can rescan it
func (s *TransactionService) unwindRedemption(ctx context.Context, voucherID uint) {
	if err := s.voucherRepo.Reopen(ctx, voucherID); err != nil {
		log.Printf("❌ Failed to reopen voucher %d after aborted authorize: %v", voucherID, err)
	}
}

// newTransactionReference produces the human-facing transaction number
func newTransactionReference() string {
	return "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:20]
}
