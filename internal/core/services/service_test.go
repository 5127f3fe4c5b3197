package services

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/adapters/persistence/repositories"
)

// newTestDB opens a fresh in-memory database per test. A single
// connection keeps sqlite writes serialized under concurrent access.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// fixture wires the service graph against one seeded bank, agency,
// driver, station and a driver line nested under the agency pool.
type fixture struct {
	db *gorm.DB

	bank       *models.Bank
	agency     *models.Agency
	driver     *models.Driver
	station    *models.FuelStation
	agencyLine *models.CreditLine
	driverLine *models.CreditLine

	lineRepo    *repositories.CreditLineRepository
	partyRepo   *repositories.PartyRepository
	voucherRepo *repositories.VoucherRepository
	txRepo      *repositories.TransactionRepository
	loanRepo    *repositories.LoanRepository
	idemRepo    *repositories.IdempotencyRepository

	credit   *CreditService
	guard    *IdempotencyService
	vouchers *VoucherService
	loans    *LoanService
	txs      *TransactionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	f := &fixture{db: db}

	f.bank = &models.Bank{Name: "Test Bank", AccountNumber: "100-000-0001", IsActive: true}
	if err := db.Create(f.bank).Error; err != nil {
		t.Fatalf("seed bank: %v", err)
	}

	f.agency = &models.Agency{Name: "Test Transit", FleetSize: 10, AverageRepaymentDays: 20, MonthlyFuelVolume: 30000}
	if err := db.Create(f.agency).Error; err != nil {
		t.Fatalf("seed agency: %v", err)
	}

	f.driver = &models.Driver{
		FullName:              "Test Driver",
		PhoneNumber:           "0810000001",
		AgencyID:              &f.agency.ID,
		PreferredBankID:       &f.bank.ID,
		FuelTankCapacityL:     80,
		FuelConsumptionLPerKm: 0.12,
	}
	if err := db.Create(f.driver).Error; err != nil {
		t.Fatalf("seed driver: %v", err)
	}

	f.station = &models.FuelStation{Name: "Test Station", MerchantAccount: "200-000-0001", IsActive: true}
	if err := db.Create(f.station).Error; err != nil {
		t.Fatalf("seed station: %v", err)
	}

	f.agencyLine = &models.CreditLine{
		OwnerType:   models.LineOwnerAgency,
		AgencyID:    &f.agency.ID,
		BankID:      f.bank.ID,
		CreditLimit: 100000,
		IsActive:    true,
	}
	if err := db.Create(f.agencyLine).Error; err != nil {
		t.Fatalf("seed agency line: %v", err)
	}

	f.driverLine = &models.CreditLine{
		OwnerType:    models.LineOwnerDriver,
		DriverID:     &f.driver.ID,
		AgencyID:     &f.agency.ID,
		BankID:       f.bank.ID,
		ParentLineID: &f.agencyLine.ID,
		CreditLimit:  10000,
		IsActive:     true,
	}
	if err := db.Create(f.driverLine).Error; err != nil {
		t.Fatalf("seed driver line: %v", err)
	}

	f.lineRepo = repositories.NewCreditLineRepository(db)
	f.partyRepo = repositories.NewPartyRepository(db)
	f.voucherRepo = repositories.NewVoucherRepository(db)
	f.txRepo = repositories.NewTransactionRepository(db)
	f.loanRepo = repositories.NewLoanRepository(db)
	f.idemRepo = repositories.NewIdempotencyRepository(db)

	notifier := NewNotificationService()
	scoring := NewScoringService()
	f.credit = NewCreditService(f.lineRepo, f.partyRepo, scoring, 10)
	f.guard = NewIdempotencyService(f.idemRepo, time.Hour)
	f.vouchers = NewVoucherService(f.voucherRepo, f.partyRepo, f.credit, f.guard, notifier, 30)
	f.loans = NewLoanService(f.loanRepo, f.credit, notifier, 30, 30)
	f.txs = NewTransactionService(f.txRepo, f.voucherRepo, f.partyRepo, f.credit, f.loans, f.guard, notifier)

	return f
}

// line re-reads a credit line straight from the database
func (f *fixture) line(t *testing.T, id uint) *models.CreditLine {
	t.Helper()
	var line models.CreditLine
	if err := f.db.First(&line, id).Error; err != nil {
		t.Fatalf("read credit line %d: %v", id, err)
	}
	return &line
}

// setUtilized force-writes the counters, bypassing the CAS path
func (f *fixture) setUtilized(t *testing.T, lineID uint, utilized float64) {
	t.Helper()
	err := f.db.Model(&models.CreditLine{}).Where("id = ?", lineID).
		Update("utilized_amount", utilized).Error
	if err != nil {
		t.Fatalf("set utilized on line %d: %v", lineID, err)
	}
}

// issueVoucher runs the full issuance path with a unique key
func (f *fixture) issueVoucher(t *testing.T, amount float64, key string) *models.QrVoucherResponse {
	t.Helper()
	resp, err := f.vouchers.Issue(context.Background(), &IssueVoucherInput{
		DriverID:       f.driver.ID,
		StationID:      f.station.ID,
		Amount:         amount,
		IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("issue voucher: %v", err)
	}
	return resp
}

// authorize redeems a voucher code at the fixture station
func (f *fixture) authorize(t *testing.T, code, key string) *models.TransactionResponse {
	t.Helper()
	resp, err := f.txs.Authorize(context.Background(), &AuthorizeInput{
		VoucherCode:    code,
		StationID:      f.station.ID,
		IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("authorize voucher %s: %v", code, err)
	}
	return resp
}
