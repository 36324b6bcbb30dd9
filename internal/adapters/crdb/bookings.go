package crdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stagedoor/seat-inventory/internal/domain"
)

// CommitParams carries everything needed to convert a session's holds into
// confirmed bookings for a real order.
type CommitParams struct {
	EventID       uuid.UUID
	SeatIDs       []string
	SessionID     string
	OrderID       int64
	OrderItemIDs  map[string]int64
	CustomerEmail string
	Now           time.Time
}

// CommitBookings converts the session's live holds on the named seats into
// confirmed bookings. The hold rows flip to CONVERTED in the same
// transaction as the booking insert, so the expiry sweep can never race a
// conversion into deleting a hold that is being purchased. A pre-existing
// pending or confirmed booking on any seat fails the whole call with
// Conflict: the seat race was lost and nothing is overwritten.
func (r *Repository) CommitBookings(ctx context.Context, p CommitParams) ([]domain.Booking, error) {
	var bookings []domain.Booking

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		held, err := activeHoldSeatsTx(ctx, tx, p.EventID, p.SessionID, p.Now)
		if err != nil {
			return err
		}
		heldSet := make(map[string]struct{}, len(held))
		for _, s := range held {
			heldSet[s] = struct{}{}
		}
		for _, seat := range p.SeatIDs {
			if _, ok := heldSet[seat]; !ok {
				return fmt.Errorf("seat %s is not held by this session: %w", seat, domain.ErrConflict)
			}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE holds SET status = 'CONVERTED'
			WHERE event_id = $1 AND session_id = $2 AND status = 'ACTIVE' AND seat_id = ANY($3)
		`, p.EventID, p.SessionID, p.SeatIDs)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != int64(len(p.SeatIDs)) {
			return fmt.Errorf("hold set changed during commit: %w", domain.ErrConflict)
		}

		bookings = bookings[:0]
		for _, seat := range p.SeatIDs {
			b := domain.Booking{
				ID:            uuid.New(),
				OrderID:       p.OrderID,
				OrderItemID:   p.OrderItemIDs[seat],
				EventID:       p.EventID,
				SeatID:        seat,
				CustomerEmail: p.CustomerEmail,
				Status:        domain.BookingConfirmed,
				CreatedAt:     p.Now,
				UpdatedAt:     p.Now,
			}
			tag, err := tx.Exec(ctx, `
				INSERT INTO bookings (id, order_id, order_item_id, event_id, seat_id, session_id, customer_email, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, 'confirmed', $8, $8)
				ON CONFLICT (event_id, seat_id) WHERE status IN ('pending', 'confirmed') DO NOTHING
			`, b.ID, b.OrderID, b.OrderItemID, b.EventID, b.SeatID, p.SessionID, b.CustomerEmail, p.Now)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("seat %s already booked: %w", seat, domain.ErrConflict)
			}
			bookings = append(bookings, b)
		}

		return r.insertEventOutbox(ctx, tx, "booking", fmt.Sprintf("%d", p.OrderID), "booking.confirmed", map[string]interface{}{
			"order_id": p.OrderID,
			"event_id": p.EventID,
			"seats":    p.SeatIDs,
		})
	})
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// MarkOrderReleased moves every confirmed booking of the order to the given
// terminal status. The refund_markers insert makes the operation idempotent
// across retries and duplicate webhook deliveries: the second invocation
// sees the marker and does nothing. Returns the released bookings and
// whether the order had already been processed.
func (r *Repository) MarkOrderReleased(ctx context.Context, orderID int64, status domain.BookingStatus, reason string, now time.Time) ([]domain.Booking, bool, error) {
	var released []domain.Booking
	already := false

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO refund_markers (order_id, processed_at) VALUES ($1, $2)
			ON CONFLICT (order_id) DO NOTHING
		`, orderID, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			already = true
			return nil
		}

		rows, err := tx.Query(ctx, `
			UPDATE bookings
			SET status = $2, refund_reason = $3, refund_date = $4, updated_at = $4
			WHERE order_id = $1 AND status = 'confirmed'
			RETURNING id, event_id, seat_id, customer_email
		`, orderID, status, reason, now)
		if err != nil {
			return err
		}
		for rows.Next() {
			b := domain.Booking{OrderID: orderID, Status: status, RefundReason: reason}
			if err := rows.Scan(&b.ID, &b.EventID, &b.SeatID, &b.CustomerEmail); err != nil {
				rows.Close()
				return err
			}
			released = append(released, b)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if len(released) == 0 {
			return nil
		}
		seats := make([]string, len(released))
		for i, b := range released {
			seats[i] = b.SeatID
		}
		return r.insertEventOutbox(ctx, tx, "booking", fmt.Sprintf("%d", orderID), "booking.released", map[string]interface{}{
			"order_id": orderID,
			"status":   status,
			"seats":    seats,
		})
	})
	if err != nil {
		return nil, false, err
	}
	return released, already, nil
}

// SelectiveRefundParams names the seats of one order being refunded and the
// metadata recorded against each of them.
type SelectiveRefundParams struct {
	OrderID  int64
	SeatIDs  []string
	Status   domain.BookingStatus // partially_refunded, or guest_list when kept held
	RefundID string
	Amount   float64 // per seat
	Reason   string
	Now      time.Time
}

// SelectiveRefund transitions only the named seats of an order and appends
// one audit row covering the whole refund transaction. Validation is
// all-or-nothing ahead of any mutation: every named seat must exist on the
// order and be in a refundable status, otherwise nothing changes.
func (r *Repository) SelectiveRefund(ctx context.Context, p SelectiveRefundParams) ([]domain.Booking, error) {
	var updated []domain.Booking

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, event_id, seat_id, status FROM bookings WHERE order_id = $1
		`, p.OrderID)
		if err != nil {
			return err
		}
		bySeat := make(map[string]domain.Booking)
		for rows.Next() {
			var b domain.Booking
			if err := rows.Scan(&b.ID, &b.EventID, &b.SeatID, &b.Status); err != nil {
				rows.Close()
				return err
			}
			b.OrderID = p.OrderID
			bySeat[b.SeatID] = b
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(bySeat) == 0 {
			return fmt.Errorf("order %d: %w", p.OrderID, domain.ErrNotFound)
		}

		for _, seat := range p.SeatIDs {
			b, ok := bySeat[seat]
			if !ok {
				return fmt.Errorf("seat %s not on order %d: %w", seat, p.OrderID, domain.ErrNotFound)
			}
			if !b.Status.Refundable() {
				return fmt.Errorf("seat %s in status %s: %w", seat, b.Status, domain.ErrStateConflict)
			}
		}

		for _, seat := range p.SeatIDs {
			b := bySeat[seat]
			_, err := tx.Exec(ctx, `
				UPDATE bookings
				SET status = $2, refund_id = $3, refunded_amount = $4, refund_reason = $5, refund_date = $6, updated_at = $6
				WHERE id = $1
			`, b.ID, p.Status, p.RefundID, p.Amount, p.Reason, p.Now)
			if err != nil {
				return err
			}
			b.Status = p.Status
			b.RefundID = p.RefundID
			b.RefundedAmount = p.Amount
			b.RefundReason = p.Reason
			updated = append(updated, b)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO refund_audit (id, order_id, refund_id, seat_ids, amount, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New(), p.OrderID, p.RefundID, p.SeatIDs, p.Amount*float64(len(p.SeatIDs)), p.Reason, p.Now)
		if err != nil {
			return err
		}

		return r.insertEventOutbox(ctx, tx, "booking", fmt.Sprintf("%d", p.OrderID), "booking.refunded.selective", map[string]interface{}{
			"order_id":  p.OrderID,
			"refund_id": p.RefundID,
			"seats":     p.SeatIDs,
			"status":    p.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ReassignSeat moves an existing active booking to a new seat in place,
// leaving status and order linkage untouched. The conflict check and the
// update are one conditional statement, so the check-then-act window of a
// separate SELECT is gone; zero rows affected is then classified inside the
// same transaction.
func (r *Repository) ReassignSeat(ctx context.Context, orderID int64, oldSeat, newSeat string, itemID int64, now time.Time) (domain.Booking, error) {
	var booking domain.Booking

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE bookings SET seat_id = $3, updated_at = $5
			WHERE order_id = $1 AND seat_id = $2 AND order_item_id = $4
				AND status IN ('pending', 'confirmed')
				AND NOT EXISTS (
					SELECT 1 FROM bookings b2
					WHERE b2.event_id = bookings.event_id
						AND b2.seat_id = $3
						AND b2.status IN ('pending', 'confirmed')
				)
			RETURNING id, event_id, status, customer_email
		`, orderID, oldSeat, newSeat, itemID, now)

		err := row.Scan(&booking.ID, &booking.EventID, &booking.Status, &booking.CustomerEmail)
		if err == nil {
			booking.OrderID = orderID
			booking.OrderItemID = itemID
			booking.SeatID = newSeat
			return r.insertEventOutbox(ctx, tx, "booking", fmt.Sprintf("%d", orderID), "booking.reassigned", map[string]interface{}{
				"order_id": orderID,
				"old_seat": oldSeat,
				"new_seat": newSeat,
			})
		}
		if err != pgx.ErrNoRows {
			return err
		}

		// The conditional update matched nothing; figure out why.
		var status domain.BookingStatus
		lookupErr := tx.QueryRow(ctx, `
			SELECT status FROM bookings
			WHERE order_id = $1 AND seat_id = $2 AND order_item_id = $3
		`, orderID, oldSeat, itemID).Scan(&status)
		if lookupErr == pgx.ErrNoRows {
			return fmt.Errorf("booking for order %d seat %s: %w", orderID, oldSeat, domain.ErrNotFound)
		}
		if lookupErr != nil {
			return lookupErr
		}
		if !status.Active() {
			return fmt.Errorf("booking in status %s cannot be reassigned: %w", status, domain.ErrStateConflict)
		}
		return fmt.Errorf("seat %s already booked: %w", newSeat, domain.ErrConflict)
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return booking, nil
}

func (r *Repository) insertEventOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType string, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.InsertOutbox(ctx, tx, OutboxRecord{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
		DedupeKey:     uuid.New().String(),
	})
}

func activeHoldSeatsTx(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, sessionID string, now time.Time) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT seat_id FROM holds
		WHERE event_id = $1 AND session_id = $2 AND status = 'ACTIVE' AND expires_at > $3
	`, eventID, sessionID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}
