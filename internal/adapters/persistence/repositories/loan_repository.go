package repositories

import (
	"context"
	"time"

	"fuelink/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// LoanRepository handles loan and repayment data access
type LoanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// Create creates a new loan. The unique transaction_id index enforces
// derive-once: a second derivation for the same transaction fails here.
func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

// GetByID gets a loan by ID
func (r *LoanRepository) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// GetByTransactionID gets the loan derived from a transaction
func (r *LoanRepository) GetByTransactionID(ctx context.Context, transactionID uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// Update updates a loan
func (r *LoanRepository) Update(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Save(loan).Error
}

// ListByDriver lists loans for a driver, optionally filtered by status
func (r *LoanRepository) ListByDriver(ctx context.Context, driverID uint, status string, offset, limit int) ([]*models.Loan, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Loan{}).Where("driver_id = ?", driverID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var loans []*models.Loan
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&loans).Error

	return loans, total, err
}

// ListByAgency lists loans across an agency's fleet
func (r *LoanRepository) ListByAgency(ctx context.Context, agencyID uint, status string, offset, limit int) ([]*models.Loan, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Loan{}).Where("agency_id = ?", agencyID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var loans []*models.Loan
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&loans).Error

	return loans, total, err
}

// ListDueBefore returns ACTIVE loans whose due date has passed, for the
// cron aging sweep.
func (r *LoanRepository) ListDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ?", models.LoanStatusActive).
		Where("due_at < ?", cutoff).
		Where("outstanding_balance > 0").
		Limit(limit).
		Find(&loans).Error
	return loans, err
}

// ApplyRepayment writes the post-repayment balance and status, but only
// if the row still carries the balance the caller read. Two concurrent
// repayments can therefore never both draw from the same balance; the
// loser observes applied == false and re-reads.
func (r *LoanRepository) ApplyRepayment(ctx context.Context, id uint, newBalance float64, status string, paidOffAt *time.Time, expectedBalance float64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ?", id).
		Where("outstanding_balance = ?", expectedBalance).
		Updates(map[string]interface{}{
			"outstanding_balance": newBalance,
			"status":              status,
			"paid_off_at":         paidOffAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CreateRepayment appends a repayment record. Repayments are never
// updated or deleted once posted.
func (r *LoanRepository) CreateRepayment(ctx context.Context, repayment *models.LoanRepayment) error {
	return r.db.WithContext(ctx).Create(repayment).Error
}

// ListRepayments lists repayments for a loan in posting order
func (r *LoanRepository) ListRepayments(ctx context.Context, loanID uint) ([]*models.LoanRepayment, error) {
	var repayments []*models.LoanRepayment
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("posted_at ASC").
		Find(&repayments).Error
	return repayments, err
}
