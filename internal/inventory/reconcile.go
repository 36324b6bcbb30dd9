package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stagedoor/seat-inventory/internal/domain"
	"github.com/stagedoor/seat-inventory/internal/observability"
)

// CartItem is one seat line in the shopper's cart together with the
// session that originally held it. After a back-navigation the current
// session can differ from the one recorded on the line item.
type CartItem struct {
	SeatID    string `json:"seat_id"`
	SessionID string `json:"session_id"`
}

// Reconciler merges the shopper's newly requested seats with seats already
// sitting in the cart under a stale session, re-homing those holds so that
// checkout validation against the current session succeeds.
type Reconciler struct {
	holds  HoldStore
	rehome SeatLockMover
	cache  Invalidator
	logger observability.Logger
	ttl    time.Duration
}

// SeatLockMover re-points fast-path locks during re-homing. Optional.
type SeatLockMover interface {
	MoveSeatLock(ctx context.Context, eventID, seatID, toSession string, ttl time.Duration) error
}

func NewReconciler(holds HoldStore, logger observability.Logger, ttl time.Duration) *Reconciler {
	return &Reconciler{holds: holds, logger: logger, ttl: ttl}
}

func (r *Reconciler) WithSeatLockMover(m SeatLockMover) *Reconciler {
	r.rehome = m
	return r
}

func (r *Reconciler) WithInvalidator(cache Invalidator) *Reconciler {
	r.cache = cache
	return r
}

// Reconcile computes the seats to commit at checkout:
//
//  1. Every cart seat whose original session still has a live hold is
//     preserved, even if absent from the new request, and its hold is
//     re-homed to the current session.
//  2. Requested seats must be covered by the current session's own holds;
//     anything unheld is rejected.
//  3. The committed set is the union of both. An empty result is a
//     conflict: nothing is actually held.
func (r *Reconciler) Reconcile(ctx context.Context, eventID uuid.UUID, requested []string, currentSession string, cart []CartItem) ([]string, error) {
	if currentSession == "" {
		return nil, fmt.Errorf("missing session id: %w", domain.ErrInvalidInput)
	}
	if len(requested) > 0 {
		if err := domain.ValidateSeatIDs(requested); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	expiresAt := now.Add(r.ttl)

	preserved := make(map[string]struct{})
	for _, item := range cart {
		if item.SeatID == "" {
			continue
		}
		if item.SessionID == currentSession {
			// Already homed; preserved if the hold is still live, which
			// is checked against the current session's holds below.
			continue
		}
		moved, err := r.holds.RehomeHold(ctx, eventID, item.SeatID, item.SessionID, currentSession, expiresAt, now)
		if err != nil {
			return nil, err
		}
		if !moved {
			// The original hold lapsed; the cart line is stale.
			continue
		}
		preserved[item.SeatID] = struct{}{}
		observability.ReconcileRehomed.Inc()
		if r.rehome != nil {
			if err := r.rehome.MoveSeatLock(ctx, eventID.String(), item.SeatID, currentSession, r.ttl); err != nil {
				r.logger.Warn("failed to move seat lock: ", err)
			}
		}
	}

	held, err := r.holds.ActiveHoldSeats(ctx, eventID, currentSession, now)
	if err != nil {
		return nil, err
	}
	heldSet := make(map[string]struct{}, len(held))
	for _, s := range held {
		heldSet[s] = struct{}{}
	}

	// Cart lines already under the current session count as preserved when
	// their hold is still live: cart seats survive even when the shopper's
	// new request no longer names them.
	for _, item := range cart {
		if item.SessionID != currentSession {
			continue
		}
		if _, ok := heldSet[item.SeatID]; ok {
			preserved[item.SeatID] = struct{}{}
		}
	}

	var committed []string
	seen := make(map[string]struct{})
	for _, seat := range requested {
		if _, ok := heldSet[seat]; !ok {
			continue
		}
		if _, dup := seen[seat]; dup {
			continue
		}
		seen[seat] = struct{}{}
		committed = append(committed, seat)
	}
	for _, item := range cart {
		if _, ok := preserved[item.SeatID]; !ok {
			continue
		}
		if _, dup := seen[item.SeatID]; dup {
			continue
		}
		seen[item.SeatID] = struct{}{}
		committed = append(committed, item.SeatID)
	}

	if len(committed) == 0 {
		return nil, fmt.Errorf("no seats are currently held: %w", domain.ErrConflict)
	}

	if r.cache != nil {
		if err := r.cache.InvalidateAvailability(ctx, eventID.String()); err != nil {
			r.logger.Warn("availability cache invalidation failed: ", err)
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"event_id":  eventID.String(),
		"session":   domain.RedactSession(currentSession),
		"committed": len(committed),
		"preserved": len(preserved),
	}).Info("cart reconciled")

	return committed, nil
}
