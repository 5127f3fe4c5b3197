package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/core/domain"
)

func TestTransactionService_Authorize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	voucher := f.issueVoucher(t, 1000, "issue-1")
	resp := f.authorize(t, voucher.Code, "auth-1")

	if !strings.HasPrefix(resp.Reference, "TXN-") {
		t.Errorf("Reference = %q, want TXN- prefix", resp.Reference)
	}
	if resp.Status != models.TxStatusAuthorized {
		t.Errorf("Status = %q, want AUTHORIZED", resp.Status)
	}
	if resp.AuthorizedAmount != 1000 {
		t.Errorf("AuthorizedAmount = %.2f, want 1000", resp.AuthorizedAmount)
	}

	// The hold landed on both levels of the hierarchy
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 1000 {
		t.Errorf("driver line utilized = %.2f, want 1000", got)
	}
	if got := f.line(t, f.agencyLine.ID).UtilizedAmount; got != 1000 {
		t.Errorf("agency line utilized = %.2f, want 1000", got)
	}

	// The voucher is burned and linked to the transaction
	stored, err := f.vouchers.GetByCode(ctx, voucher.Code)
	if err != nil {
		t.Fatalf("GetByCode() error: %v", err)
	}
	if stored.Status != models.VoucherStatusRedeemed {
		t.Errorf("voucher Status = %q, want REDEEMED", stored.Status)
	}
	if stored.TransactionID == nil || *stored.TransactionID != resp.ID {
		t.Errorf("voucher TransactionID = %v, want %d", stored.TransactionID, resp.ID)
	}
}

func TestTransactionService_Authorize_ReplaySameKey(t *testing.T) {
	f := newFixture(t)

	voucher := f.issueVoucher(t, 1000, "issue-1")
	first := f.authorize(t, voucher.Code, "auth-1")
	second := f.authorize(t, voucher.Code, "auth-1")

	if second.Reference != first.Reference {
		t.Errorf("replay Reference = %q, want original %q", second.Reference, first.Reference)
	}

	// The retry held no additional credit
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 1000 {
		t.Errorf("driver line utilized = %.2f, want 1000 after replay", got)
	}
	var count int64
	f.db.Model(&models.Transaction{}).Count(&count)
	if count != 1 {
		t.Errorf("transaction rows = %d, want 1", count)
	}
}

func TestTransactionService_Authorize_SecondScanRejected(t *testing.T) {
	f := newFixture(t)

	voucher := f.issueVoucher(t, 1000, "issue-1")
	f.authorize(t, voucher.Code, "auth-1")

	_, err := f.txs.Authorize(context.Background(), &AuthorizeInput{
		VoucherCode:    voucher.Code,
		StationID:      f.station.ID,
		IdempotencyKey: "auth-2",
	})
	if !errors.Is(err, domain.ErrVoucherAlreadyUsed) {
		t.Fatalf("Authorize() error = %v, want ErrVoucherAlreadyUsed", err)
	}
}

func TestTransactionService_Authorize_WrongStation(t *testing.T) {
	f := newFixture(t)

	other := &models.FuelStation{Name: "Other Station", IsActive: true}
	if err := f.db.Create(other).Error; err != nil {
		t.Fatalf("seed station: %v", err)
	}

	voucher := f.issueVoucher(t, 1000, "issue-1")
	_, err := f.txs.Authorize(context.Background(), &AuthorizeInput{
		VoucherCode:    voucher.Code,
		StationID:      other.ID,
		IdempotencyKey: "auth-1",
	})
	if !errors.Is(err, domain.ErrVoucherNotFound) {
		t.Fatalf("Authorize() error = %v, want ErrVoucherNotFound", err)
	}
}

func TestTransactionService_Authorize_ExpiredVoucher(t *testing.T) {
	f := newFixture(t)

	voucher := f.issueVoucher(t, 1000, "issue-1")
	f.db.Model(&models.QrVoucher{}).Where("code = ?", voucher.Code).
		Update("expires_at", time.Now().Add(-time.Minute))

	_, err := f.txs.Authorize(context.Background(), &AuthorizeInput{
		VoucherCode:    voucher.Code,
		StationID:      f.station.ID,
		IdempotencyKey: "auth-1",
	})
	if !errors.Is(err, domain.ErrVoucherExpired) {
		t.Fatalf("Authorize() error = %v, want ErrVoucherExpired", err)
	}

	var stored models.QrVoucher
	f.db.Where("code = ?", voucher.Code).First(&stored)
	if stored.Status != models.VoucherStatusExpired {
		t.Errorf("voucher Status = %q, want EXPIRED", stored.Status)
	}
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 0 {
		t.Errorf("driver line utilized = %.2f, want 0", got)
	}
}

func TestTransactionService_Authorize_InsufficientCredit_ReopensVoucher(t *testing.T) {
	f := newFixture(t)

	voucher := f.issueVoucher(t, 8000, "issue-1")

	// Credit drained between issuance and the scan
	f.setUtilized(t, f.driverLine.ID, 5000)

	_, err := f.txs.Authorize(context.Background(), &AuthorizeInput{
		VoucherCode:    voucher.Code,
		StationID:      f.station.ID,
		IdempotencyKey: "auth-1",
	})
	if !errors.Is(err, domain.ErrInsufficientCredit) {
		t.Fatalf("Authorize() error = %v, want ErrInsufficientCredit", err)
	}

	// The voucher went back to ISSUED so the driver can rescan later
	var stored models.QrVoucher
	f.db.Where("code = ?", voucher.Code).First(&stored)
	if stored.Status != models.VoucherStatusIssued {
		t.Errorf("voucher Status = %q, want ISSUED after unwind", stored.Status)
	}
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 5000 {
		t.Errorf("driver line utilized = %.2f, want 5000", got)
	}
}

func TestTransactionService_Authorize_ConcurrentScansSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	voucher := f.issueVoucher(t, 1000, "issue-1")

	const scanners = 8
	var wg sync.WaitGroup
	results := make(chan error, scanners)
	for i := 0; i < scanners; i++ {
		key := fmt.Sprintf("auth-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.txs.Authorize(ctx, &AuthorizeInput{
				VoucherCode:    voucher.Code,
				StationID:      f.station.ID,
				IdempotencyKey: key,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrVoucherAlreadyUsed):
		default:
			t.Fatalf("Authorize() unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}

	// The single winner holds the amount exactly once
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 1000 {
		t.Errorf("driver line utilized = %.2f, want 1000", got)
	}
	var count int64
	f.db.Model(&models.Transaction{}).Count(&count)
	if count != 1 {
		t.Errorf("transaction rows = %d, want 1", count)
	}
}

func TestTransactionService_Settle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	voucher := f.issueVoucher(t, 1000, "issue-1")
	auth := f.authorize(t, voucher.Code, "auth-1")

	resp, err := f.txs.Settle(ctx, &SettleInput{
		TransactionID:  auth.ID,
		Amount:         420,
		IdempotencyKey: "settle-1",
	})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}
	if resp.Status != models.TxStatusSettled {
		t.Errorf("Status = %q, want SETTLED", resp.Status)
	}
	if resp.SettledAmount == nil || *resp.SettledAmount != 420 {
		t.Errorf("SettledAmount = %v, want 420", resp.SettledAmount)
	}

	// Only the pumped amount stays utilized
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 420 {
		t.Errorf("driver line utilized = %.2f, want 420", got)
	}
	if got := f.line(t, f.agencyLine.ID).UtilizedAmount; got != 420 {
		t.Errorf("agency line utilized = %.2f, want 420", got)
	}

	// The loan mirrors the captured amount
	loan, err := f.loans.GetByTransaction(ctx, auth.ID)
	if err != nil {
		t.Fatalf("GetByTransaction() error: %v", err)
	}
	if loan.Principal != 420 || loan.OutstandingBalance != 420 {
		t.Errorf("loan principal/outstanding = %.2f/%.2f, want 420/420", loan.Principal, loan.OutstandingBalance)
	}
	if loan.Status != models.LoanStatusActive {
		t.Errorf("loan Status = %q, want ACTIVE", loan.Status)
	}

	// The payment rail got its transfer order
	intent, err := f.txs.GetSettlementIntent(ctx, auth.ID)
	if err != nil {
		t.Fatalf("GetSettlementIntent() error: %v", err)
	}
	if intent.Amount != 420 {
		t.Errorf("intent Amount = %.2f, want 420", intent.Amount)
	}
	if intent.MerchantAccount != f.station.MerchantAccount {
		t.Errorf("intent MerchantAccount = %q, want %q", intent.MerchantAccount, f.station.MerchantAccount)
	}
	if intent.BankAccount != f.bank.AccountNumber {
		t.Errorf("intent BankAccount = %q, want %q", intent.BankAccount, f.bank.AccountNumber)
	}
}

func TestTransactionService_Settle_ReplaySameKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	voucher := f.issueVoucher(t, 1000, "issue-1")
	auth := f.authorize(t, voucher.Code, "auth-1")

	first, err := f.txs.Settle(ctx, &SettleInput{TransactionID: auth.ID, Amount: 420, IdempotencyKey: "settle-1"})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}
	second, err := f.txs.Settle(ctx, &SettleInput{TransactionID: auth.ID, Amount: 420, IdempotencyKey: "settle-1"})
	if err != nil {
		t.Fatalf("replayed Settle() error: %v", err)
	}
	if second.Reference != first.Reference || second.Status != models.TxStatusSettled {
		t.Errorf("replay = %q/%q, want original %q/SETTLED", second.Reference, second.Status, first.Reference)
	}

	// No double release, no second loan
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 420 {
		t.Errorf("driver line utilized = %.2f, want 420 after replay", got)
	}
	var loans int64
	f.db.Model(&models.Loan{}).Count(&loans)
	if loans != 1 {
		t.Errorf("loan rows = %d, want 1", loans)
	}
}

func TestTransactionService_Settle_ExceedsAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	voucher := f.issueVoucher(t, 1000, "issue-1")
	auth := f.authorize(t, voucher.Code, "auth-1")

	_, err := f.txs.Settle(ctx, &SettleInput{TransactionID: auth.ID, Amount: 1001, IdempotencyKey: "settle-1"})
	if !errors.Is(err, domain.ErrSettlementExceedsAuthorization) {
		t.Fatalf("Settle() error = %v, want ErrSettlementExceedsAuthorization", err)
	}

	// The hold stays in place for a corrected retry
	tx, err := f.txs.Get(ctx, auth.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if tx.Status != models.TxStatusAuthorized {
		t.Errorf("Status = %q, want AUTHORIZED", tx.Status)
	}
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 1000 {
		t.Errorf("driver line utilized = %.2f, want 1000", got)
	}
}

func TestTransactionService_Settle_NewKeyAfterSettle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	voucher := f.issueVoucher(t, 1000, "issue-1")
	auth := f.authorize(t, voucher.Code, "auth-1")

	if _, err := f.txs.Settle(ctx, &SettleInput{TransactionID: auth.ID, Amount: 420, IdempotencyKey: "settle-1"}); err != nil {
		t.Fatalf("Settle() error: %v", err)
	}

	_, err := f.txs.Settle(ctx, &SettleInput{TransactionID: auth.ID, Amount: 300, IdempotencyKey: "settle-2"})
	if !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("Settle() error = %v, want ErrAlreadySettled", err)
	}
}

func TestTransactionService_Settle_ZeroAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	voucher := f.issueVoucher(t, 1000, "issue-1")
	auth := f.authorize(t, voucher.Code, "auth-1")

	resp, err := f.txs.Settle(ctx, &SettleInput{TransactionID: auth.ID, Amount: 0, IdempotencyKey: "settle-1"})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}
	if resp.Status != models.TxStatusSettled {
		t.Errorf("Status = %q, want SETTLED", resp.Status)
	}

	// The whole hold flows back and the loan is born repaid
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 0 {
		t.Errorf("driver line utilized = %.2f, want 0", got)
	}
	loan, err := f.loans.GetByTransaction(ctx, auth.ID)
	if err != nil {
		t.Fatalf("GetByTransaction() error: %v", err)
	}
	if loan.Status != models.LoanStatusPaidOff {
		t.Errorf("loan Status = %q, want PAID_OFF", loan.Status)
	}
}

func TestTransactionService_Cancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	voucher := f.issueVoucher(t, 1000, "issue-1")
	auth := f.authorize(t, voucher.Code, "auth-1")

	tx, err := f.txs.Cancel(ctx, auth.ID)
	if err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if tx.Status != models.TxStatusCancelled {
		t.Errorf("Status = %q, want CANCELLED", tx.Status)
	}
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 0 {
		t.Errorf("driver line utilized = %.2f, want 0 after cancel", got)
	}
}

func TestTransactionService_Cancel_AfterSettle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	voucher := f.issueVoucher(t, 1000, "issue-1")
	auth := f.authorize(t, voucher.Code, "auth-1")
	if _, err := f.txs.Settle(ctx, &SettleInput{TransactionID: auth.ID, Amount: 500, IdempotencyKey: "settle-1"}); err != nil {
		t.Fatalf("Settle() error: %v", err)
	}

	_, err := f.txs.Cancel(ctx, auth.ID)
	if !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("Cancel() error = %v, want ErrAlreadySettled", err)
	}
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 500 {
		t.Errorf("driver line utilized = %.2f, want 500 untouched", got)
	}
}

func TestTransactionService_ExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	voucher := f.issueVoucher(t, 1000, "issue-1")
	auth := f.authorize(t, voucher.Code, "auth-1")

	fresh := f.issueVoucher(t, 500, "issue-2")
	f.authorize(t, fresh.Code, "auth-2")

	// Backdate only the first hold past the sweep horizon
	f.db.Model(&models.Transaction{}).Where("id = ?", auth.ID).
		Update("authorized_at", time.Now().Add(-48*time.Hour))

	expired, err := f.txs.ExpireStale(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("ExpireStale() error: %v", err)
	}
	if expired != 1 {
		t.Errorf("expired = %d, want 1", expired)
	}

	tx, err := f.txs.Get(ctx, auth.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if tx.Status != models.TxStatusExpired {
		t.Errorf("Status = %q, want EXPIRED", tx.Status)
	}

	// Only the expired hold was released
	if got := f.line(t, f.driverLine.ID).UtilizedAmount; got != 500 {
		t.Errorf("driver line utilized = %.2f, want 500", got)
	}
}

func TestTransactionService_Get_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.txs.Get(context.Background(), 999)
	if !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Fatalf("Get() error = %v, want ErrTransactionNotFound", err)
	}
}

func TestTransactionService_Settle_NegativeAmount(t *testing.T) {
	f := newFixture(t)

	_, err := f.txs.Settle(context.Background(), &SettleInput{TransactionID: 1, Amount: -1, IdempotencyKey: "settle-1"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Settle() error = %v, want ErrInvalidInput", err)
	}
}
