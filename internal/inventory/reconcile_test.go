package inventory

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stagedoor/seat-inventory/internal/domain"
	"github.com/stagedoor/seat-inventory/internal/observability"
)

func TestReconciler_RehomesStaleSessionCartSeats(t *testing.T) {
	ctx := context.Background()
	store := newFakeHoldStore()
	logger := observability.NewLogger()
	holds := NewHoldManager(store, logger, 15*time.Minute, 10)
	r := NewReconciler(store, logger, 15*time.Minute)
	eventID := uuid.New()

	// The cart seat was held under the session the shopper had before
	// navigating back; the new request comes in under a fresh session.
	if _, err := holds.CreateHold(ctx, eventID, []string{"A1-1"}, "old-session"); err != nil {
		t.Fatal(err)
	}
	if _, err := holds.CreateHold(ctx, eventID, []string{"A1-2"}, "new-session"); err != nil {
		t.Fatal(err)
	}

	committed, err := r.Reconcile(ctx, eventID, []string{"A1-2"}, "new-session", []CartItem{
		{SeatID: "A1-1", SessionID: "old-session"},
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(committed)
	if len(committed) != 2 || committed[0] != "A1-1" || committed[1] != "A1-2" {
		t.Errorf("expected cart seat preserved alongside requested seat, got %v", committed)
	}

	// The re-homed hold now belongs to the current session.
	seats, err := store.ActiveHoldSeats(ctx, eventID, "new-session", time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if len(seats) != 2 {
		t.Errorf("expected both holds under the current session, got %v", seats)
	}
}

func TestReconciler_SkipsLapsedCartSeats(t *testing.T) {
	ctx := context.Background()
	store := newFakeHoldStore()
	logger := observability.NewLogger()
	holds := NewHoldManager(store, logger, 15*time.Minute, 10)
	r := NewReconciler(store, logger, 15*time.Minute)
	eventID := uuid.New()

	if _, err := holds.CreateHold(ctx, eventID, []string{"A1-2"}, "new-session"); err != nil {
		t.Fatal(err)
	}

	// Cart line references a hold that no longer exists.
	committed, err := r.Reconcile(ctx, eventID, []string{"A1-2"}, "new-session", []CartItem{
		{SeatID: "A1-1", SessionID: "gone-session"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(committed) != 1 || committed[0] != "A1-2" {
		t.Errorf("expected only the live requested seat, got %v", committed)
	}
}

func TestReconciler_RejectsUnheldRequestedSeats(t *testing.T) {
	ctx := context.Background()
	store := newFakeHoldStore()
	logger := observability.NewLogger()
	holds := NewHoldManager(store, logger, 15*time.Minute, 10)
	r := NewReconciler(store, logger, 15*time.Minute)
	eventID := uuid.New()

	if _, err := holds.CreateHold(ctx, eventID, []string{"A1-1"}, "sess"); err != nil {
		t.Fatal(err)
	}

	committed, err := r.Reconcile(ctx, eventID, []string{"A1-1", "B2-2"}, "sess", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(committed) != 1 || committed[0] != "A1-1" {
		t.Errorf("expected unheld B2-2 dropped, got %v", committed)
	}
}

func TestReconciler_NothingHeldIsConflict(t *testing.T) {
	ctx := context.Background()
	store := newFakeHoldStore()
	r := NewReconciler(store, observability.NewLogger(), 15*time.Minute)

	_, err := r.Reconcile(ctx, uuid.New(), []string{"A1-1"}, "sess", nil)
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict when nothing is held, got %v", err)
	}
}

func TestReconciler_PreservesCurrentSessionCartSeats(t *testing.T) {
	ctx := context.Background()
	store := newFakeHoldStore()
	logger := observability.NewLogger()
	holds := NewHoldManager(store, logger, 15*time.Minute, 10)
	r := NewReconciler(store, logger, 15*time.Minute)
	eventID := uuid.New()

	if _, err := holds.CreateHold(ctx, eventID, []string{"A1-1", "A1-2"}, "sess"); err != nil {
		t.Fatal(err)
	}

	// The new request drops A1-1, but the cart still carries it.
	committed, err := r.Reconcile(ctx, eventID, []string{"A1-2"}, "sess", []CartItem{
		{SeatID: "A1-1", SessionID: "sess"},
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(committed)
	if len(committed) != 2 || committed[0] != "A1-1" || committed[1] != "A1-2" {
		t.Errorf("expected cart seat to survive the narrower request, got %v", committed)
	}
}
