package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"fuelink/internal/adapters/persistence/repositories"
)

// Stale AUTHORIZED transactions older than this are force-closed and
// their holds returned. Well beyond any legitimate pump session.
const staleAuthorizedAge = 24 * time.Hour

// CronService schedules the background sweeps. Every sweep is a safety
// net behind a lazy check that already runs on the hot path; a missed
// tick delays cleanup, it never corrupts state.
type CronService struct {
	cron         *cron.Cron
	vouchers     *VoucherService
	transactions *TransactionService
	loans        *LoanService
	guard        *IdempotencyService
	tokenRepo    repositories.RefreshTokenRepository
}

// NewCronService creates a new cron service
func NewCronService(
	vouchers *VoucherService,
	transactions *TransactionService,
	loans *LoanService,
	guard *IdempotencyService,
	tokenRepo repositories.RefreshTokenRepository,
) *CronService {
	return &CronService{
		cron:         cron.New(),
		vouchers:     vouchers,
		transactions: transactions,
		loans:        loans,
		guard:        guard,
		tokenRepo:    tokenRepo,
	}
}

// Start registers and launches all scheduled jobs
func (s *CronService) Start() {
	s.cron.AddFunc("*/5 * * * *", s.sweepVouchers)
	s.cron.AddFunc("*/10 * * * *", s.sweepTransactions)
	s.cron.AddFunc("0 1 * * *", s.ageLoans)
	s.cron.AddFunc("30 * * * *", s.purgeIdempotency)
	s.cron.AddFunc("0 2 * * *", s.purgeRefreshTokens)

	s.cron.Start()
	log.Println("🚀 CronService started")
}

// Stop gracefully stops the scheduler, waiting for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 CronService stopped")
}

func (s *CronService) sweepVouchers() {
	count, err := s.vouchers.ExpireStale(context.Background())
	if err != nil {
		log.Printf("❌ Voucher expiry sweep failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("✅ Voucher sweep expired %d stale vouchers", count)
	}
}

func (s *CronService) sweepTransactions() {
	count, err := s.transactions.ExpireStale(context.Background(), staleAuthorizedAge)
	if err != nil {
		log.Printf("❌ Transaction expiry sweep failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("✅ Transaction sweep expired %d stale holds", count)
	}
}

func (s *CronService) ageLoans() {
	count, err := s.loans.AgeOverdue(context.Background())
	if err != nil {
		log.Printf("❌ Loan aging sweep failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("✅ Loan sweep aged %d loans to overdue", count)
	}
}

func (s *CronService) purgeIdempotency() {
	count, err := s.guard.PurgeExpired(context.Background())
	if err != nil {
		log.Printf("❌ Idempotency purge failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("✅ Purged %d expired idempotency records", count)
	}
}

func (s *CronService) purgeRefreshTokens() {
	if err := s.tokenRepo.DeleteExpired(context.Background()); err != nil {
		log.Printf("❌ Refresh token purge failed: %v", err)
	}
}
