package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/adapters/persistence/repositories"
	"fuelink/internal/core/domain"
)

func TestIdempotencyService_BeginFreshThenReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fp := Fingerprint("voucher-1", "42")
	record, replayed, err := f.guard.Begin(ctx, "key-1", models.OpKindAuthorize, fp)
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	if replayed {
		t.Fatal("first Begin() reported replay")
	}

	f.guard.Complete(ctx, record, 201, []byte(`{"reference":"TXN-1"}`))

	record, replayed, err = f.guard.Begin(ctx, "key-1", models.OpKindAuthorize, fp)
	if err != nil {
		t.Fatalf("second Begin() error: %v", err)
	}
	if !replayed {
		t.Fatal("second Begin() did not report replay")
	}
	if record.ResultCode != 201 {
		t.Errorf("ResultCode = %d, want 201", record.ResultCode)
	}
	if record.ResultBody != `{"reference":"TXN-1"}` {
		t.Errorf("ResultBody = %q, want stored result", record.ResultBody)
	}
}

func TestIdempotencyService_FingerprintMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, _, err := f.guard.Begin(ctx, "key-1", models.OpKindSettle, Fingerprint("1", "420.00"))
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	f.guard.Complete(ctx, record, 200, []byte(`{}`))

	_, _, err = f.guard.Begin(ctx, "key-1", models.OpKindSettle, Fingerprint("1", "999.00"))
	if !errors.Is(err, domain.ErrIdempotencyKeyConflict) {
		t.Fatalf("Begin() error = %v, want ErrIdempotencyKeyConflict", err)
	}
}

func TestIdempotencyService_InFlightConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fp := Fingerprint("voucher-1")
	if _, _, err := f.guard.Begin(ctx, "key-1", models.OpKindAuthorize, fp); err != nil {
		t.Fatalf("Begin() error: %v", err)
	}

	// The same request racing itself must not run twice
	_, _, err := f.guard.Begin(ctx, "key-1", models.OpKindAuthorize, fp)
	if !errors.Is(err, domain.ErrIdempotencyKeyConflict) {
		t.Fatalf("Begin() error = %v, want ErrIdempotencyKeyConflict", err)
	}
}

func TestIdempotencyService_AbandonReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fp := Fingerprint("voucher-1")
	record, _, err := f.guard.Begin(ctx, "key-1", models.OpKindAuthorize, fp)
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	f.guard.Abandon(ctx, record)

	_, replayed, err := f.guard.Begin(ctx, "key-1", models.OpKindAuthorize, fp)
	if err != nil {
		t.Fatalf("Begin() after Abandon error: %v", err)
	}
	if replayed {
		t.Fatal("Begin() after Abandon reported replay")
	}
}

func TestIdempotencyService_ExpiredPendingIsTakenOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	guard := NewIdempotencyService(f.idemRepo, time.Millisecond)
	fp := Fingerprint("voucher-1")
	if _, _, err := guard.Begin(ctx, "key-1", models.OpKindAuthorize, fp); err != nil {
		t.Fatalf("Begin() error: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	// The crashed first attempt is past retention; its slot is reusable
	_, replayed, err := guard.Begin(ctx, "key-1", models.OpKindAuthorize, fp)
	if err != nil {
		t.Fatalf("Begin() after expiry error: %v", err)
	}
	if replayed {
		t.Fatal("Begin() after expiry reported replay")
	}
}

func TestIdempotencyService_SameKeyDifferentKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fp := Fingerprint("x")
	record, _, err := f.guard.Begin(ctx, "key-1", models.OpKindAuthorize, fp)
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	f.guard.Complete(ctx, record, 201, []byte(`{}`))

	// A key is scoped per operation kind
	_, replayed, err := f.guard.Begin(ctx, "key-1", models.OpKindSettle, fp)
	if err != nil {
		t.Fatalf("Begin() with other kind error: %v", err)
	}
	if replayed {
		t.Fatal("Begin() with other kind reported replay")
	}
}

func TestIdempotencyService_PurgeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	guard := NewIdempotencyService(f.idemRepo, time.Millisecond)
	record, _, err := guard.Begin(ctx, "key-old", models.OpKindIssueVoucher, Fingerprint("a"))
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	guard.Complete(ctx, record, 201, []byte(`{}`))

	if _, _, err := f.guard.Begin(ctx, "key-live", models.OpKindIssueVoucher, Fingerprint("b")); err != nil {
		t.Fatalf("Begin() error: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	purged, err := guard.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired() error: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
}

func TestFingerprint_PartBoundariesMatter(t *testing.T) {
	if Fingerprint("ab", "c") == Fingerprint("a", "bc") {
		t.Error("fingerprints with shifted part boundaries collided")
	}
	if Fingerprint("a", "b") != Fingerprint("a", "b") {
		t.Error("identical parts produced different fingerprints")
	}
}

func TestNewIdempotencyService_DefaultRetention(t *testing.T) {
	s := NewIdempotencyService(&repositories.IdempotencyRepository{}, 0)
	if s.retention != 2*time.Hour {
		t.Errorf("retention = %v, want 2h default", s.retention)
	}
}
