package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stagedoor/seat-inventory/internal/domain"
	"github.com/stagedoor/seat-inventory/internal/observability"
)

func TestLedger_CommitBooking(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedgerStore()
	l := NewLedger(store, observability.NewLogger())
	eventID := uuid.New()

	bookings, err := l.CommitBooking(ctx, eventID, []string{"A1-1", "A1-2"}, "sess", 42, nil, "buyer@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(bookings) != 2 {
		t.Errorf("expected 2 bookings, got %d", len(bookings))
	}
	if len(store.commits) != 1 || store.commits[0].OrderID != 42 {
		t.Errorf("unexpected commit params: %+v", store.commits)
	}

	if _, err := l.CommitBooking(ctx, eventID, []string{"A1-1"}, "", 42, nil, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input for missing session, got %v", err)
	}
	if _, err := l.CommitBooking(ctx, eventID, []string{"A1-1"}, "sess", 0, nil, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input for missing order, got %v", err)
	}
}

func TestLedger_FullRefundRelease(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedgerStore()
	audit := &fakeAuditor{}
	l := NewLedger(store, observability.NewLogger()).WithAuditor(audit)
	eventID := uuid.New()

	if _, err := l.CommitBooking(ctx, eventID, []string{"A1-1", "A1-2"}, "sess", 42, nil, ""); err != nil {
		t.Fatal(err)
	}

	released, err := l.FullRefundRelease(ctx, 42, 100.0, 100.0, "refunded")
	if err != nil {
		t.Fatal(err)
	}
	if len(released) != 2 {
		t.Errorf("expected both bookings released, got %d", len(released))
	}
	for _, b := range released {
		if b.Status != domain.BookingRefunded {
			t.Errorf("expected refunded status, got %s", b.Status)
		}
	}
	if len(audit.actions) != 1 || audit.actions[0] != "order.released" {
		t.Errorf("expected one audit entry, got %v", audit.actions)
	}
}

func TestLedger_FullRefundRelease_Guards(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedgerStore()
	l := NewLedger(store, observability.NewLogger())
	eventID := uuid.New()

	if _, err := l.CommitBooking(ctx, eventID, []string{"A1-1"}, "sess", 42, nil, ""); err != nil {
		t.Fatal(err)
	}

	// Comp orders keep their seats.
	released, err := l.FullRefundRelease(ctx, 42, 0.0, 0.0, "refunded")
	if err != nil || released != nil {
		t.Errorf("expected zero-total no-op, got %v, %v", released, err)
	}

	// Partial-amount refunds keep seats too.
	released, err = l.FullRefundRelease(ctx, 42, 100.0, 40.0, "refunded")
	if err != nil || released != nil {
		t.Errorf("expected partial-amount no-op, got %v, %v", released, err)
	}

	if _, err := l.FullRefundRelease(ctx, 42, 100.0, 100.0, "chargeback"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input for unknown reason, got %v", err)
	}
	if store.released[42] {
		t.Error("no guard should have reached the store")
	}
}

func TestLedger_FullRefundRelease_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedgerStore()
	l := NewLedger(store, observability.NewLogger())
	eventID := uuid.New()

	if _, err := l.CommitBooking(ctx, eventID, []string{"A1-1"}, "sess", 42, nil, ""); err != nil {
		t.Fatal(err)
	}
	first, err := l.FullRefundRelease(ctx, 42, 50.0, 50.0, "cancelled")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("expected one booking released, got %d", len(first))
	}

	second, err := l.FullRefundRelease(ctx, 42, 50.0, 50.0, "cancelled")
	if err != nil {
		t.Fatal(err)
	}
	if second != nil {
		t.Errorf("expected repeat invocation to be a no-op, got %v", second)
	}
}

func TestLedger_SelectiveRefund(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedgerStore()
	l := NewLedger(store, observability.NewLogger())
	eventID := uuid.New()

	if _, err := l.CommitBooking(ctx, eventID, []string{"A1-1", "A1-2", "A1-3", "A1-4"}, "sess", 42, nil, ""); err != nil {
		t.Fatal(err)
	}

	updated, err := l.SelectiveRefund(ctx, 42, []string{"A1-1"}, false, "re_123", 100.0, 4, "request", "admin")
	if err != nil {
		t.Fatal(err)
	}
	if len(updated) != 1 || updated[0].Status != domain.BookingPartiallyRefunded {
		t.Errorf("expected partially_refunded, got %+v", updated)
	}
	if store.selective[0].Amount != 25.0 {
		t.Errorf("expected even split of 25.0, got %v", store.selective[0].Amount)
	}
}

func TestLedger_SelectiveRefund_KeepHeld(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedgerStore()
	l := NewLedger(store, observability.NewLogger())
	eventID := uuid.New()

	if _, err := l.CommitBooking(ctx, eventID, []string{"A1-1", "A1-2"}, "sess", 42, nil, ""); err != nil {
		t.Fatal(err)
	}

	updated, err := l.SelectiveRefund(ctx, 42, []string{"A1-2"}, true, "re_124", 80.0, 2, "comp", "admin")
	if err != nil {
		t.Fatal(err)
	}
	if len(updated) != 1 || updated[0].Status != domain.BookingGuestList {
		t.Errorf("expected guest_list with keepHeld, got %+v", updated)
	}
}

func TestLedger_SelectiveRefund_Validation(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(newFakeLedgerStore(), observability.NewLogger())

	if _, err := l.SelectiveRefund(ctx, 42, []string{"A1-1", "A1-2"}, false, "re_1", 100.0, 1, "", "admin"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input when refunding more seats than the order has, got %v", err)
	}
	if _, err := l.SelectiveRefund(ctx, 0, []string{"A1-1"}, false, "re_1", 100.0, 1, "", "admin"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input for missing order, got %v", err)
	}
}

func TestLedger_Reassign(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedgerStore()
	audit := &fakeAuditor{}
	l := NewLedger(store, observability.NewLogger()).WithAuditor(audit)
	eventID := uuid.New()

	if _, err := l.CommitBooking(ctx, eventID, []string{"A1-1"}, "sess", 42, nil, ""); err != nil {
		t.Fatal(err)
	}

	booking, err := l.Reassign(ctx, 42, "A1-1", "B2-2", 7, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if booking.SeatID != "B2-2" {
		t.Errorf("expected seat moved to B2-2, got %s", booking.SeatID)
	}

	if _, err := l.Reassign(ctx, 42, "B2-2", "B2-2", 7, "admin"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input for unchanged seat, got %v", err)
	}
	if _, err := l.Reassign(ctx, 42, "Z9-9", "C3-3", 7, "admin"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found for unknown booking, got %v", err)
	}
}
