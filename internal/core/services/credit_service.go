package services

import (
	"context"
	"errors"
	"log"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/adapters/persistence/repositories"
	"fuelink/internal/core/domain"

	"gorm.io/gorm"
)

// CreditService owns the credit-line ledger and the two-level
// agency/driver hierarchy. All utilized/limit mutations run through the
// repository's compare-and-swap; contention is resolved by bounded
// re-read-and-retry, never by blocking.
type CreditService struct {
	lineRepo   *repositories.CreditLineRepository
	partyRepo  *repositories.PartyRepository
	scoring    *ScoringService
	maxRetries int
}

// NewCreditService creates a new credit service
func NewCreditService(
	lineRepo *repositories.CreditLineRepository,
	partyRepo *repositories.PartyRepository,
	scoring *ScoringService,
	maxRetries int,
) *CreditService {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &CreditService{
		lineRepo:   lineRepo,
		partyRepo:  partyRepo,
		scoring:    scoring,
		maxRetries: maxRetries,
	}
}

// CreateLineInput represents create credit line input
type CreateLineInput struct {
	OwnerType   string  `json:"owner_type"`
	DriverID    *uint   `json:"driver_id,omitempty"`
	AgencyID    *uint   `json:"agency_id,omitempty"`
	BankID      uint    `json:"bank_id"`
	CreditLimit float64 `json:"credit_limit"` // 0 means: take the scoring recommendation
}

// CreateLine onboards a credit line for a driver or an agency. A driver
// that belongs to an agency gets a child line pointing at the agency's
// pool; anything deeper than agency -> driver is rejected here, so the
// runtime never has to walk more than one parent.
func (s *CreditService) CreateLine(ctx context.Context, input *CreateLineInput) (*models.CreditLine, error) {
	if _, err := s.partyRepo.GetBank(ctx, input.BankID); err != nil {
		return nil, domain.ErrNotFound
	}

	line := &models.CreditLine{
		OwnerType:   input.OwnerType,
		BankID:      input.BankID,
		CreditLimit: input.CreditLimit,
		IsActive:    true,
	}

	switch input.OwnerType {
	case models.LineOwnerDriver:
		if input.DriverID == nil {
			return nil, domain.ErrInvalidInput
		}
		driver, err := s.partyRepo.GetDriver(ctx, *input.DriverID)
		if err != nil {
			return nil, domain.ErrNotFound
		}
		if existing, err := s.lineRepo.GetByDriverID(ctx, driver.ID); err == nil {
			return existing, nil
		}
		line.DriverID = &driver.ID
		if driver.AgencyID != nil {
			parent, err := s.lineRepo.GetByAgencyID(ctx, *driver.AgencyID)
			if err != nil {
				return nil, domain.ErrCreditLineNotFound
			}
			if parent.ParentLineID != nil {
				return nil, domain.ErrHierarchyTooDeep
			}
			line.AgencyID = driver.AgencyID
			line.ParentLineID = &parent.ID
		}
		if line.CreditLimit <= 0 {
			line.CreditLimit = s.scoring.ScoreDriver(driver).RecommendedLimit
		}

	case models.LineOwnerAgency:
		if input.AgencyID == nil {
			return nil, domain.ErrInvalidInput
		}
		agency, err := s.partyRepo.GetAgency(ctx, *input.AgencyID)
		if err != nil {
			return nil, domain.ErrNotFound
		}
		if existing, err := s.lineRepo.GetByAgencyID(ctx, agency.ID); err == nil {
			return existing, nil
		}
		line.AgencyID = &agency.ID
		if line.CreditLimit <= 0 {
			line.CreditLimit = s.scoring.ScoreAgency(agency).RecommendedLimit
		}

	default:
		return nil, domain.ErrInvalidInput
	}

	if err := s.lineRepo.Create(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

// GetLine reads a credit line by ID
func (s *CreditService) GetLine(ctx context.Context, id uint) (*models.CreditLine, error) {
	line, err := s.lineRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCreditLineNotFound
		}
		return nil, err
	}
	return line, nil
}

// GetLineForDriver reads the active line owned by a driver
func (s *CreditService) GetLineForDriver(ctx context.Context, driverID uint) (*models.CreditLine, error) {
	line, err := s.lineRepo.GetByDriverID(ctx, driverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCreditLineNotFound
		}
		return nil, err
	}
	return line, nil
}

// AvailableCredit resolves the hierarchy: a child line can draw neither
// more than its own headroom nor more than its parent pool's. The two
// reads are not atomic with any later reserve; the reserve re-validates
// against the live counters at commit time.
func (s *CreditService) AvailableCredit(ctx context.Context, lineID uint) (float64, error) {
	line, err := s.GetLine(ctx, lineID)
	if err != nil {
		return 0, err
	}
	available := line.Available()
	if line.ParentLineID != nil {
		parent, err := s.GetLine(ctx, *line.ParentLineID)
		if err != nil {
			return 0, err
		}
		if parent.Available() < available {
			available = parent.Available()
		}
	}
	return available, nil
}

// Reserve places a hold of amount on the line, cascading to the parent
// pool when one exists, so the agency's utilized figure tracks fleet
// draws. The child hold is unwound if the parent rejects.
func (s *CreditService) Reserve(ctx context.Context, lineID uint, amount float64) error {
	if amount <= 0 {
		return domain.ErrInvalidInput
	}

	line, err := s.GetLine(ctx, lineID)
	if err != nil {
		return err
	}
	if !line.IsActive {
		return domain.ErrCreditLineInactive
	}

	if err := s.reserveOne(ctx, lineID, amount); err != nil {
		return err
	}

	if line.ParentLineID != nil {
		if err := s.reserveOne(ctx, *line.ParentLineID, amount); err != nil {
			// Compensate: the child hold must not survive a parent rejection
			s.releaseOne(ctx, lineID, amount)
			return err
		}
	}
	return nil
}

// Release returns amount to the line (and its parent pool), used to
// unwind expired/cancelled holds, return the unused part of a capture,
// and credit repayments back.
func (s *CreditService) Release(ctx context.Context, lineID uint, amount float64) error {
	if amount <= 0 {
		return nil
	}

	line, err := s.GetLine(ctx, lineID)
	if err != nil {
		return err
	}

	if err := s.releaseOne(ctx, lineID, amount); err != nil {
		return err
	}
	if line.ParentLineID != nil {
		if err := s.releaseOne(ctx, *line.ParentLineID, amount); err != nil {
			return err
		}
	}
	return nil
}

// reserveOne runs the read / check / compare-and-swap loop on a single
// line. The loser of a race observes a stale version, re-reads and
// retries; after maxRetries the conflict surfaces to the caller.
func (s *CreditService) reserveOne(ctx context.Context, lineID uint, amount float64) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		line, err := s.GetLine(ctx, lineID)
		if err != nil {
			return err
		}
		if line.UtilizedAmount+amount > line.CreditLimit {
			return domain.ErrInsufficientCredit
		}

		err = s.lineRepo.CompareAndSwapUtilized(ctx, lineID, line.UtilizedAmount+amount, line.Version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrStaleVersion) {
			return err
		}
	}
	return domain.ErrCreditLineContention
}

// releaseOne is the mirror of reserveOne. Releasing more than is held
// is clamped to zero and logged, never fatal.
func (s *CreditService) releaseOne(ctx context.Context, lineID uint, amount float64) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		line, err := s.GetLine(ctx, lineID)
		if err != nil {
			return err
		}

		newUtilized := line.UtilizedAmount - amount
		if newUtilized < 0 {
			log.Printf("⚠️ Release of %.2f exceeds utilized %.2f on credit line %d, clamping to zero",
				amount, line.UtilizedAmount, lineID)
			newUtilized = 0
		}

		err = s.lineRepo.CompareAndSwapUtilized(ctx, lineID, newUtilized, line.Version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrStaleVersion) {
			return err
		}
	}
	return domain.ErrCreditLineContention
}

// ResizeLine sets a new limit, re-consulting scoring is the caller's
// concern (a bank approval flow passes the approved figure). Shrinking
// below the utilized amount is rejected; outstanding holds and loans
// keep their headroom accounted for.
func (s *CreditService) ResizeLine(ctx context.Context, lineID uint, newLimit float64) (*models.CreditLine, error) {
	if newLimit < 0 {
		return nil, domain.ErrInvalidInput
	}
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		line, err := s.GetLine(ctx, lineID)
		if err != nil {
			return nil, err
		}
		// Checked every attempt: a concurrent reserve can raise
		// utilized between the read and the version-stamped write.
		if newLimit < line.UtilizedAmount {
			return nil, domain.ErrLimitBelowUtilized
		}
		err = s.lineRepo.UpdateLimit(ctx, lineID, newLimit, line.Version)
		if err == nil {
			return s.GetLine(ctx, lineID)
		}
		if !errors.Is(err, domain.ErrStaleVersion) {
			return nil, err
		}
	}
	return nil, domain.ErrCreditLineContention
}

// DeactivateLine disables a line. Lines are never deleted; history
// keeps pointing at them.
func (s *CreditService) DeactivateLine(ctx context.Context, lineID uint) error {
	if _, err := s.GetLine(ctx, lineID); err != nil {
		return err
	}
	return s.lineRepo.Deactivate(ctx, lineID)
}
