package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/core/domain"
)

func TestCreditService_Reserve_CascadesToParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.credit.Reserve(ctx, f.driverLine.ID, 4000); err != nil {
		t.Fatalf("Reserve() error: %v", err)
	}

	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 4000 {
		t.Errorf("driver line utilized = %.2f, want 4000", got)
	}
	if got := f.line(t, f.agencyLine.ID).UtilizedAmount; got != 4000 {
		t.Errorf("agency line utilized = %.2f, want 4000", got)
	}
}

func TestCreditService_Reserve_InsufficientOwnHeadroom(t *testing.T) {
	f := newFixture(t)

	err := f.credit.Reserve(context.Background(), f.driverLine.ID, 10001)
	if !errors.Is(err, domain.ErrInsufficientCredit) {
		t.Fatalf("Reserve() error = %v, want ErrInsufficientCredit", err)
	}
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 0 {
		t.Errorf("driver line utilized = %.2f, want 0", got)
	}
}

func TestCreditService_Reserve_ParentExhausted_UnwindsChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Drain the agency pool so the driver's own headroom is irrelevant
	f.setUtilized(t, f.agencyLine.ID, 97000)

	err := f.credit.Reserve(ctx, f.driverLine.ID, 5000)
	if !errors.Is(err, domain.ErrInsufficientCredit) {
		t.Fatalf("Reserve() error = %v, want ErrInsufficientCredit", err)
	}

	// The child hold must not survive the parent rejection
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 0 {
		t.Errorf("driver line utilized = %.2f, want 0 after unwind", got)
	}
	if got := f.line(t, f.agencyLine.ID).UtilizedAmount; got != 97000 {
		t.Errorf("agency line utilized = %.2f, want 97000", got)
	}
}

func TestCreditService_Reserve_InactiveLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.credit.DeactivateLine(ctx, f.driverLine.ID); err != nil {
		t.Fatalf("DeactivateLine() error: %v", err)
	}

	err := f.credit.Reserve(ctx, f.driverLine.ID, 100)
	if !errors.Is(err, domain.ErrCreditLineInactive) {
		t.Fatalf("Reserve() error = %v, want ErrCreditLineInactive", err)
	}
}

func TestCreditService_AvailableCredit_MinOfOwnAndParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Driver has 9900 of own headroom but the pool only has 200 left
	f.setUtilized(t, f.agencyLine.ID, 99800)
	f.setUtilized(t, f.driverLine.ID, 100)

	available, err := f.credit.AvailableCredit(ctx, f.driverLine.ID)
	if err != nil {
		t.Fatalf("AvailableCredit() error: %v", err)
	}
	if available != 200 {
		t.Errorf("available = %.2f, want 200 (parent bound)", available)
	}

	// With the pool refilled the driver's own headroom binds
	f.setUtilized(t, f.agencyLine.ID, 0)
	available, err = f.credit.AvailableCredit(ctx, f.driverLine.ID)
	if err != nil {
		t.Fatalf("AvailableCredit() error: %v", err)
	}
	if available != 9900 {
		t.Errorf("available = %.2f, want 9900 (own bound)", available)
	}
}

func TestCreditService_Release_ReturnsToBothLevels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.credit.Reserve(ctx, f.driverLine.ID, 3000); err != nil {
		t.Fatalf("Reserve() error: %v", err)
	}
	if err := f.credit.Release(ctx, f.driverLine.ID, 1200); err != nil {
		t.Fatalf("Release() error: %v", err)
	}

	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 1800 {
		t.Errorf("driver line utilized = %.2f, want 1800", got)
	}
	if got := f.line(t, f.agencyLine.ID).UtilizedAmount; got != 1800 {
		t.Errorf("agency line utilized = %.2f, want 1800", got)
	}
}

func TestCreditService_Release_ClampsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.setUtilized(t, f.driverLine.ID, 30)

	if err := f.credit.Release(ctx, f.driverLine.ID, 50); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 0 {
		t.Errorf("driver line utilized = %.2f, want 0 after clamp", got)
	}
}

func TestCreditService_Reserve_ConcurrentNeverOversubscribes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 20 competing holds of 1000 against a 10000 limit: at most 10 can win
	const workers = 20
	const amount = 1000.0

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.credit.Reserve(ctx, f.driverLine.ID, amount)
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrInsufficientCredit):
		case errors.Is(err, domain.ErrCreditLineContention):
		default:
			t.Fatalf("Reserve() unexpected error: %v", err)
		}
	}

	line := f.line(t, f.driverLine.ID)
	if want := float64(successes) * amount; line.UtilizedAmount != want {
		t.Errorf("utilized = %.2f, want %.2f (%d successful holds)", line.UtilizedAmount, want, successes)
	}
	if line.UtilizedAmount > line.CreditLimit {
		t.Errorf("utilized %.2f exceeds limit %.2f", line.UtilizedAmount, line.CreditLimit)
	}
	if got := f.line(t, f.agencyLine.ID).UtilizedAmount; got != line.UtilizedAmount {
		t.Errorf("agency utilized = %.2f, diverged from driver %.2f", got, line.UtilizedAmount)
	}
}

func TestCreditService_CreateLine_DriverNestsUnderAgencyPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := &models.Driver{
		FullName:          "Second Driver",
		PhoneNumber:       "0810000002",
		AgencyID:          &f.agency.ID,
		FuelTankCapacityL: 60,
	}
	if err := f.db.Create(second).Error; err != nil {
		t.Fatalf("seed driver: %v", err)
	}

	line, err := f.credit.CreateLine(ctx, &CreateLineInput{
		OwnerType: models.LineOwnerDriver,
		DriverID:  &second.ID,
		BankID:    f.bank.ID,
	})
	if err != nil {
		t.Fatalf("CreateLine() error: %v", err)
	}

	if line.ParentLineID == nil || *line.ParentLineID != f.agencyLine.ID {
		t.Errorf("ParentLineID = %v, want %d", line.ParentLineID, f.agencyLine.ID)
	}
	if line.CreditLimit <= 0 {
		t.Errorf("CreditLimit = %.2f, want scoring recommendation > 0", line.CreditLimit)
	}
}

func TestCreditService_CreateLine_IdempotentPerOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	line, err := f.credit.CreateLine(ctx, &CreateLineInput{
		OwnerType:   models.LineOwnerDriver,
		DriverID:    &f.driver.ID,
		BankID:      f.bank.ID,
		CreditLimit: 5000,
	})
	if err != nil {
		t.Fatalf("CreateLine() error: %v", err)
	}
	if line.ID != f.driverLine.ID {
		t.Errorf("CreateLine() returned line %d, want existing %d", line.ID, f.driverLine.ID)
	}
}

func TestCreditService_CreateLine_UnknownBank(t *testing.T) {
	f := newFixture(t)

	_, err := f.credit.CreateLine(context.Background(), &CreateLineInput{
		OwnerType: models.LineOwnerAgency,
		AgencyID:  &f.agency.ID,
		BankID:    999,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("CreateLine() error = %v, want ErrNotFound", err)
	}
}

func TestCreditService_ResizeLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	line, err := f.credit.ResizeLine(ctx, f.driverLine.ID, 25000)
	if err != nil {
		t.Fatalf("ResizeLine() error: %v", err)
	}
	if line.CreditLimit != 25000 {
		t.Errorf("CreditLimit = %.2f, want 25000", line.CreditLimit)
	}

	if _, err := f.credit.ResizeLine(ctx, f.driverLine.ID, -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("ResizeLine(-1) error = %v, want ErrInvalidInput", err)
	}
}

func TestCreditService_ResizeLine_BelowUtilized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.credit.Reserve(ctx, f.driverLine.ID, 5000); err != nil {
		t.Fatalf("Reserve() error: %v", err)
	}

	_, err := f.credit.ResizeLine(ctx, f.driverLine.ID, 100)
	if !errors.Is(err, domain.ErrLimitBelowUtilized) {
		t.Fatalf("ResizeLine(100) error = %v, want ErrLimitBelowUtilized", err)
	}

	line := f.line(t, f.driverLine.ID)
	if line.CreditLimit != 10000 {
		t.Errorf("CreditLimit = %.2f, want 10000 (unchanged)", line.CreditLimit)
	}
	if line.UtilizedAmount > line.CreditLimit {
		t.Errorf("utilized %.2f exceeds limit %.2f", line.UtilizedAmount, line.CreditLimit)
	}

	// Shrinking down to exactly the utilized amount is allowed
	line, err = f.credit.ResizeLine(ctx, f.driverLine.ID, 5000)
	if err != nil {
		t.Fatalf("ResizeLine(5000) error: %v", err)
	}
	if line.CreditLimit != 5000 {
		t.Errorf("CreditLimit = %.2f, want 5000", line.CreditLimit)
	}
}

func TestCreditService_GetLine_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.credit.GetLine(context.Background(), 999)
	if !errors.Is(err, domain.ErrCreditLineNotFound) {
		t.Fatalf("GetLine() error = %v, want ErrCreditLineNotFound", err)
	}
}
