package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/adapters/persistence/repositories"
	"fuelink/internal/core/domain"
)

// Attempts on the conditional balance update before a repayment race
// surfaces to the caller.
const repaymentMaxRetries = 3

// LoanService turns settled transactions into repayable loans and tracks
// them to PAID_OFF, OVERDUE or DEFAULTED. Overdue status is evaluated
// lazily on every read and write; the cron sweep only catches loans
// nobody is looking at.
type LoanService struct {
	loanRepo  *repositories.LoanRepository
	credit    *CreditService
	notifier  *NotificationService
	termDays  int
	graceDays int
}

// NewLoanService creates a new loan service
func NewLoanService(
	loanRepo *repositories.LoanRepository,
	credit *CreditService,
	notifier *NotificationService,
	termDays, graceDays int,
) *LoanService {
	if termDays < 1 {
		termDays = 30
	}
	if graceDays < 0 {
		graceDays = 30
	}
	return &LoanService{
		loanRepo:  loanRepo,
		credit:    credit,
		notifier:  notifier,
		termDays:  termDays,
		graceDays: graceDays,
	}
}

// DeriveFromTransaction creates the loan backing a settled transaction.
// The unique transaction_id index makes this derive-once: a repeat call
// returns the loan created by the first, never a second one.
func (s *LoanService) DeriveFromTransaction(ctx context.Context, tx *models.Transaction, principal float64) (*models.Loan, error) {
	if principal < 0 {
		return nil, domain.ErrInvalidInput
	}

	now := time.Now()
	loan := &models.Loan{
		TransactionID:      tx.ID,
		CreditLineID:       tx.CreditLineID,
		DriverID:           tx.DriverID,
		AgencyID:           tx.AgencyID,
		Principal:          principal,
		OutstandingBalance: principal,
		Status:             models.LoanStatusActive,
		DueAt:              now.AddDate(0, 0, s.termDays),
	}
	// A zero-amount capture leaves nothing to repay
	if principal == 0 {
		loan.Status = models.LoanStatusPaidOff
		loan.PaidOffAt = &now
	}

	if err := s.loanRepo.Create(ctx, loan); err != nil {
		if existing, gerr := s.loanRepo.GetByTransactionID(ctx, tx.ID); gerr == nil {
			return existing, nil
		}
		return nil, err
	}
	return loan, nil
}

// Get reads a loan, ageing it to OVERDUE in passing when due
func (s *LoanService) Get(ctx context.Context, id uint) (*models.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return s.ageIfOverdue(ctx, loan)
}

// GetByTransaction reads the loan derived from a transaction
func (s *LoanService) GetByTransaction(ctx context.Context, transactionID uint) (*models.Loan, error) {
	loan, err := s.loanRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return s.ageIfOverdue(ctx, loan)
}

// ListForDriver lists a driver's loans, optionally filtered by status
func (s *LoanService) ListForDriver(ctx context.Context, driverID uint, status string, offset, limit int) ([]*models.Loan, int64, error) {
	loans, total, err := s.loanRepo.ListByDriver(ctx, driverID, status, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	for i, loan := range loans {
		if aged, aerr := s.ageIfOverdue(ctx, loan); aerr == nil {
			loans[i] = aged
		}
	}
	return loans, total, nil
}

// ListForAgency lists loans across an agency's fleet
func (s *LoanService) ListForAgency(ctx context.Context, agencyID uint, status string, offset, limit int) ([]*models.Loan, int64, error) {
	loans, total, err := s.loanRepo.ListByAgency(ctx, agencyID, status, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	for i, loan := range loans {
		if aged, aerr := s.ageIfOverdue(ctx, loan); aerr == nil {
			loans[i] = aged
		}
	}
	return loans, total, nil
}

// RepaymentInput represents post repayment input
type RepaymentInput struct {
	Amount    float64 `json:"amount"`
	Source    string  `json:"source"`
	Reference string  `json:"reference"`
}

// PostRepayment applies a payment to the loan. The repaid amount flows
// back to the credit line as released headroom; overpaying past the
// outstanding balance is rejected, not clamped. The balance decrement
// is a conditional update keyed on the balance the validation saw, so
// two concurrent repayments cannot both draw from the same balance.
func (s *LoanService) PostRepayment(ctx context.Context, loanID uint, input *RepaymentInput) (*models.Loan, error) {
	if input.Amount <= 0 {
		return nil, domain.ErrInvalidInput
	}
	source := input.Source
	if source == "" {
		source = models.RepaySourceManual
	}

	for attempt := 0; attempt < repaymentMaxRetries; attempt++ {
		loan, err := s.Get(ctx, loanID)
		if err != nil {
			return nil, err
		}
		if loan.Status != models.LoanStatusActive && loan.Status != models.LoanStatusOverdue {
			return nil, domain.ErrLoanNotActive
		}
		if input.Amount > loan.OutstandingBalance {
			return nil, domain.ErrRepaymentTooLarge
		}

		now := time.Now()
		newBalance := loan.OutstandingBalance - input.Amount
		status := loan.Status
		paidOffAt := loan.PaidOffAt
		if newBalance <= 0 {
			newBalance = 0
			status = models.LoanStatusPaidOff
			paidOffAt = &now
		}

		applied, err := s.loanRepo.ApplyRepayment(ctx, loan.ID, newBalance, status, paidOffAt, loan.OutstandingBalance)
		if err != nil {
			return nil, err
		}
		if !applied {
			// Lost a race with another repayment; re-read and re-validate
			continue
		}

		repayment := &models.LoanRepayment{
			LoanID:    loan.ID,
			Amount:    input.Amount,
			Source:    source,
			Reference: input.Reference,
			PostedAt:  now,
		}
		if err := s.loanRepo.CreateRepayment(ctx, repayment); err != nil {
			return nil, err
		}

		loan.OutstandingBalance = newBalance
		loan.Status = status
		loan.PaidOffAt = paidOffAt
		if err := s.credit.Release(ctx, loan.CreditLineID, input.Amount); err != nil {
			return nil, err
		}
		return loan, nil
	}
	return nil, domain.ErrLoanContention
}

// LoanStatement is the loan with its full repayment history
type LoanStatement struct {
	Loan       *models.LoanResponse    `json:"loan"`
	Repayments []*models.LoanRepayment `json:"repayments"`
	TotalPaid  float64                 `json:"total_paid"`
}

// Statement assembles the loan and its repayments in posting order
func (s *LoanService) Statement(ctx context.Context, loanID uint) (*LoanStatement, error) {
	loan, err := s.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	repayments, err := s.loanRepo.ListRepayments(ctx, loan.ID)
	if err != nil {
		return nil, err
	}

	var totalPaid float64
	for _, r := range repayments {
		totalPaid += r.Amount
	}

	return &LoanStatement{
		Loan:       loan.ToResponse(),
		Repayments: repayments,
		TotalPaid:  totalPaid,
	}, nil
}

// MarkDefaulted writes off an overdue loan once the grace period after
// its due date has fully elapsed. The defaulted balance stays utilized
// on the credit line; the bank's recovery process owns it from here.
func (s *LoanService) MarkDefaulted(ctx context.Context, loanID uint) (*models.Loan, error) {
	loan, err := s.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanStatusOverdue {
		return nil, domain.ErrLoanNotOverdue
	}
	if time.Now().Before(loan.DueAt.AddDate(0, 0, s.graceDays)) {
		return nil, domain.ErrLoanNotOverdue
	}

	now := time.Now()
	loan.Status = models.LoanStatusDefaulted
	loan.DefaultedAt = &now
	if err := s.loanRepo.Update(ctx, loan); err != nil {
		return nil, err
	}

	s.notifier.LoanDefaulted(loan)
	return loan, nil
}

// AgeOverdue flips every past-due ACTIVE loan to OVERDUE, returning the
// number aged. Driven by the cron sweep.
func (s *LoanService) AgeOverdue(ctx context.Context) (int, error) {
	loans, err := s.loanRepo.ListDueBefore(ctx, time.Now(), 500)
	if err != nil {
		return 0, err
	}

	aged := 0
	for _, loan := range loans {
		loan.Status = models.LoanStatusOverdue
		if err := s.loanRepo.Update(ctx, loan); err != nil {
			return aged, err
		}
		s.notifier.LoanOverdue(loan)
		aged++
	}
	return aged, nil
}

// ageIfOverdue persists the lazy ACTIVE -> OVERDUE transition
func (s *LoanService) ageIfOverdue(ctx context.Context, loan *models.Loan) (*models.Loan, error) {
	if !loan.IsOverdue(time.Now()) {
		return loan, nil
	}
	loan.Status = models.LoanStatusOverdue
	if err := s.loanRepo.Update(ctx, loan); err != nil {
		return nil, err
	}
	s.notifier.LoanOverdue(loan)
	return loan, nil
}
