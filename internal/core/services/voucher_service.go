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

// VoucherService issues and resolves QR vouchers. Issuance checks
// availability as a point-in-time gate only; no credit is held until the
// voucher is redeemed, so a wallet full of unredeemed vouchers costs the
// driver nothing.
type VoucherService struct {
	voucherRepo *repositories.VoucherRepository
	partyRepo   *repositories.PartyRepository
	credit      *CreditService
	guard       *IdempotencyService
	notifier    *NotificationService
	ttl         time.Duration
}

// NewVoucherService creates a new voucher service
func NewVoucherService(
	voucherRepo *repositories.VoucherRepository,
	partyRepo *repositories.PartyRepository,
	credit *CreditService,
	guard *IdempotencyService,
	notifier *NotificationService,
	ttlMinutes int,
) *VoucherService {
	if ttlMinutes < 1 {
		ttlMinutes = 30
	}
	return &VoucherService{
		voucherRepo: voucherRepo,
		partyRepo:   partyRepo,
		credit:      credit,
		guard:       guard,
		notifier:    notifier,
		ttl:         time.Duration(ttlMinutes) * time.Minute,
	}
}

// IssueVoucherInput represents issue voucher input
type IssueVoucherInput struct {
	DriverID       uint    `json:"driver_id"`
	StationID      uint    `json:"station_id"`
	Amount         float64 `json:"amount"`
	IdempotencyKey string  `json:"-"`
}

// Issue creates a single-use voucher for the driver against their active
// credit line, bound to one station. Retries carrying the same
// idempotency key get the originally issued voucher back.
func (s *VoucherService) Issue(ctx context.Context, input *IssueVoucherInput) (*models.QrVoucherResponse, error) {
	if input.Amount <= 0 {
		return nil, domain.ErrInvalidInput
	}

	driver, err := s.partyRepo.GetDriver(ctx, input.DriverID)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	station, err := s.partyRepo.GetStation(ctx, input.StationID)
	if err != nil || !station.IsActive {
		return nil, domain.ErrNotFound
	}

	line, err := s.credit.GetLineForDriver(ctx, driver.ID)
	if err != nil {
		return nil, err
	}
	if !line.IsActive {
		return nil, domain.ErrCreditLineInactive
	}

	fingerprint := Fingerprint(
		fmt.Sprintf("%d", input.DriverID),
		fmt.Sprintf("%d", input.StationID),
		fmt.Sprintf("%.2f", input.Amount),
	)
	record, replayed, err := s.guard.Begin(ctx, input.IdempotencyKey, models.OpKindIssueVoucher, fingerprint)
	if err != nil {
		return nil, err
	}
	if replayed {
		var resp models.QrVoucherResponse
		if err := json.Unmarshal([]byte(record.ResultBody), &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	}

	// Advisory gate: the hold happens at redemption, this only stops
	// vouchers that could never be honored.
	available, err := s.credit.AvailableCredit(ctx, line.ID)
	if err != nil {
		s.guard.Abandon(ctx, record)
		return nil, err
	}
	if input.Amount > available {
		s.guard.Abandon(ctx, record)
		return nil, domain.ErrInsufficientCredit
	}

	now := time.Now()
	voucher := &models.QrVoucher{
		Code:             newVoucherCode(),
		DriverID:         driver.ID,
		StationID:        station.ID,
		CreditLineID:     line.ID,
		AuthorizedAmount: input.Amount,
		Status:           models.VoucherStatusIssued,
		IssuedAt:         now,
		ExpiresAt:        now.Add(s.ttl),
	}
	if err := s.voucherRepo.Create(ctx, voucher); err != nil {
		s.guard.Abandon(ctx, record)
		return nil, err
	}

	resp := voucher.ToResponse()
	body, err := json.Marshal(resp)
	if err != nil {
		log.Printf("⚠️ Failed to marshal voucher %s for idempotency store: %v", voucher.Code, err)
	} else {
		s.guard.Complete(ctx, record, 201, body)
	}

	s.notifier.VoucherIssued(voucher)
	return resp, nil
}

// GetByCode resolves a voucher, ageing it to EXPIRED when its deadline
// has passed unscanned.
func (s *VoucherService) GetByCode(ctx context.Context, code string) (*models.QrVoucher, error) {
	voucher, err := s.voucherRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrVoucherNotFound
		}
		return nil, err
	}
	if voucher.Status == models.VoucherStatusIssued && voucher.IsExpired(time.Now()) {
		if err := s.voucherRepo.MarkExpired(ctx, voucher.ID); err != nil {
			return nil, err
		}
		voucher.Status = models.VoucherStatusExpired
	}
	return voucher, nil
}

// ListForDriver lists a driver's vouchers, newest first
func (s *VoucherService) ListForDriver(ctx context.Context, driverID uint, offset, limit int) ([]*models.QrVoucher, int64, error) {
	return s.voucherRepo.ListByDriver(ctx, driverID, offset, limit)
}

// ExpireStale ages all overdue ISSUED vouchers, returning the count
func (s *VoucherService) ExpireStale(ctx context.Context) (int64, error) {
	return s.voucherRepo.ExpireStale(ctx, time.Now())
}

// newVoucherCode produces the opaque token embedded in the QR image
func newVoucherCode() string {
	return "FV-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}
