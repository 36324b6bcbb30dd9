package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stagedoor/seat-inventory/internal/adapters/crdb"
	"github.com/stagedoor/seat-inventory/internal/domain"
	"github.com/stagedoor/seat-inventory/internal/observability"
)

// LedgerStore is the durable booking state. Implementations must guarantee
// at most one pending/confirmed booking per (event, seat) and must make
// each multi-row operation atomic.
type LedgerStore interface {
	CommitBookings(ctx context.Context, p crdb.CommitParams) ([]domain.Booking, error)
	MarkOrderReleased(ctx context.Context, orderID int64, status domain.BookingStatus, reason string, now time.Time) ([]domain.Booking, bool, error)
	SelectiveRefund(ctx context.Context, p crdb.SelectiveRefundParams) ([]domain.Booking, error)
	ReassignSeat(ctx context.Context, orderID int64, oldSeat, newSeat string, itemID int64, now time.Time) (domain.Booking, error)
}

// Auditor records admin-side mutations, best effort, after commit.
type Auditor interface {
	LogEvent(ctx context.Context, action, actor string, data map[string]interface{})
}

type Ledger struct {
	store  LedgerStore
	locks  SeatLocker
	audit  Auditor
	cache  Invalidator
	logger observability.Logger
}

func NewLedger(store LedgerStore, logger observability.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// WithSeatLocker attaches the redis fast path so converted seats drop
// their hold locks.
func (l *Ledger) WithSeatLocker(locks SeatLocker) *Ledger {
	l.locks = locks
	return l
}

func (l *Ledger) WithAuditor(a Auditor) *Ledger {
	l.audit = a
	return l
}

func (l *Ledger) WithInvalidator(cache Invalidator) *Ledger {
	l.cache = cache
	return l
}

// CommitBooking converts the session's holds on the named seats into
// confirmed bookings for the order. All-or-nothing: losing the race on any
// seat fails the whole commit with Conflict and leaves the holds intact.
func (l *Ledger) CommitBooking(ctx context.Context, eventID uuid.UUID, seatIDs []string, sessionID string, orderID int64, itemIDs map[string]int64, email string) ([]domain.Booking, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("missing session id: %w", domain.ErrInvalidInput)
	}
	if orderID <= 0 {
		return nil, fmt.Errorf("missing order id: %w", domain.ErrInvalidInput)
	}
	if err := domain.ValidateSeatIDs(seatIDs); err != nil {
		return nil, err
	}

	bookings, err := l.store.CommitBookings(ctx, crdb.CommitParams{
		EventID:       eventID,
		SeatIDs:       seatIDs,
		SessionID:     sessionID,
		OrderID:       orderID,
		OrderItemIDs:  itemIDs,
		CustomerEmail: email,
		Now:           time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	// The booking row guards the seat from here on; a fast-path lock left
	// behind would shadow the seat until its TTL lapses.
	if l.locks != nil {
		for _, b := range bookings {
			if err := l.locks.UnlockSeat(ctx, eventID.String(), b.SeatID); err != nil {
				l.logger.Warn("failed to release seat lock: ", err)
			}
		}
	}

	l.invalidate(ctx, eventID)
	l.logger.WithFields(map[string]interface{}{
		"order_id": orderID,
		"event_id": eventID.String(),
		"seats":    len(bookings),
	}).Info("booking committed")
	return bookings, nil
}

// FullRefundRelease releases every confirmed booking of an order after a
// full-amount refund, cancellation or payment failure.
//
// The guards are load-bearing and ordered before any write:
//   - zero-total orders are comps and never auto-release;
//   - a refunded amount below the order total is a partial-amount refund
//     and must leave seats untouched;
//   - a repeat invocation for an already-processed order is a no-op.
func (l *Ledger) FullRefundRelease(ctx context.Context, orderID int64, orderTotal, refundedTotal float64, reason string) ([]domain.Booking, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("missing order id: %w", domain.ErrInvalidInput)
	}
	status, ok := domain.TerminalStatusForReason(reason)
	if !ok {
		return nil, fmt.Errorf("unknown release reason %q: %w", reason, domain.ErrInvalidInput)
	}
	if orderTotal == 0 {
		l.logger.WithField("order_id", orderID).Info("zero-total order, seats kept")
		return nil, nil
	}
	if refundedTotal < orderTotal {
		l.logger.WithFields(map[string]interface{}{
			"order_id": orderID,
			"refunded": refundedTotal,
			"total":    orderTotal,
		}).Info("partial-amount refund, seats kept")
		return nil, nil
	}

	released, already, err := l.store.MarkOrderReleased(ctx, orderID, status, reason, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if already {
		l.logger.WithField("order_id", orderID).Info("order release already processed")
		return nil, nil
	}

	observability.RefundsProcessed.WithLabelValues("full").Inc()
	for _, b := range released {
		l.invalidate(ctx, b.EventID)
	}
	if l.audit != nil {
		seats := make([]string, len(released))
		for i, b := range released {
			seats[i] = b.SeatID
		}
		l.audit.LogEvent(ctx, "order.released", "system", map[string]interface{}{
			"order_id": orderID,
			"reason":   reason,
			"seats":    seats,
		})
	}
	return released, nil
}

// SelectiveRefund refunds only the named seats of an order. The per-seat
// amount is the order total split evenly across all of the order's seats;
// keepHeld routes the seats to guest_list so a comped booking stays
// reserved instead of returning to sale.
func (l *Ledger) SelectiveRefund(ctx context.Context, orderID int64, seatIDs []string, keepHeld bool, refundID string, orderTotal float64, totalSeats int, reason, actor string) ([]domain.Booking, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("missing order id: %w", domain.ErrInvalidInput)
	}
	if err := domain.ValidateSeatIDs(seatIDs); err != nil {
		return nil, err
	}
	if totalSeats < len(seatIDs) {
		return nil, fmt.Errorf("seat count exceeds order seats: %w", domain.ErrInvalidInput)
	}

	status := domain.BookingPartiallyRefunded
	if keepHeld {
		status = domain.BookingGuestList
	}

	updated, err := l.store.SelectiveRefund(ctx, crdb.SelectiveRefundParams{
		OrderID:  orderID,
		SeatIDs:  seatIDs,
		Status:   status,
		RefundID: refundID,
		Amount:   domain.PerSeatRefundAmount(orderTotal, totalSeats),
		Reason:   reason,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	observability.RefundsProcessed.WithLabelValues("selective").Inc()
	for _, b := range updated {
		l.invalidate(ctx, b.EventID)
	}
	if l.audit != nil {
		l.audit.LogEvent(ctx, "booking.refunded.selective", actor, map[string]interface{}{
			"order_id":  orderID,
			"refund_id": refundID,
			"seats":     seatIDs,
			"status":    string(status),
		})
	}
	return updated, nil
}

// Reassign moves a booking to a new seat without touching its status or
// order linkage. Fails cleanly when the target seat carries an active
// booking for the same event.
func (l *Ledger) Reassign(ctx context.Context, orderID int64, oldSeat, newSeat string, itemID int64, actor string) (domain.Booking, error) {
	if orderID <= 0 {
		return domain.Booking{}, fmt.Errorf("missing order id: %w", domain.ErrInvalidInput)
	}
	if _, err := domain.ParseSeatID(oldSeat); err != nil {
		return domain.Booking{}, err
	}
	if _, err := domain.ParseSeatID(newSeat); err != nil {
		return domain.Booking{}, err
	}
	if oldSeat == newSeat {
		return domain.Booking{}, fmt.Errorf("seat unchanged: %w", domain.ErrInvalidInput)
	}

	booking, err := l.store.ReassignSeat(ctx, orderID, oldSeat, newSeat, itemID, time.Now().UTC())
	if err != nil {
		return domain.Booking{}, err
	}

	l.invalidate(ctx, booking.EventID)
	if l.audit != nil {
		l.audit.LogEvent(ctx, "booking.reassigned", actor, map[string]interface{}{
			"order_id": orderID,
			"old_seat": oldSeat,
			"new_seat": newSeat,
		})
	}
	return booking, nil
}

func (l *Ledger) invalidate(ctx context.Context, eventID uuid.UUID) {
	if l.cache == nil {
		return
	}
	if err := l.cache.InvalidateAvailability(ctx, eventID.String()); err != nil {
		l.logger.Warn("availability cache invalidation failed: ", err)
	}
}
