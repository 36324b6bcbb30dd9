package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stagedoor/seat-inventory/internal/domain"
)

// CreateHolds attempts to hold every requested seat for the session and
// reports per-seat outcomes. A seat is unavailable when it carries an active
// booking, sits inside an active block window, or is held by a different
// session. A live hold from the same session is refreshed instead of
// duplicated: the upsert's WHERE clause makes the re-issue path and the
// conflict path a single conditional write, so two sessions racing for one
// seat are decided by the uq_holds_active index, not by a read-then-write.
func (r *Repository) CreateHolds(ctx context.Context, eventID uuid.UUID, seatIDs []string, sessionID string, expiresAt time.Time, now time.Time) (domain.HoldResult, error) {
	res := domain.HoldResult{ExpiresAt: expiresAt}

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		blocked, err := blockedSeatsTx(ctx, tx, eventID, now)
		if err != nil {
			return err
		}

		for _, seatID := range seatIDs {
			// Lazily expire a lapsed hold on this seat so the partial
			// unique index does not count it against the new writer.
			_, err := tx.Exec(ctx, `
				UPDATE holds SET status = 'EXPIRED'
				WHERE event_id = $1 AND seat_id = $2 AND status = 'ACTIVE' AND expires_at <= $3
			`, eventID, seatID, now)
			if err != nil {
				return err
			}

			if _, isBlocked := blocked[seatID]; isBlocked {
				res.Unavailable = append(res.Unavailable, seatID)
				continue
			}

			var booked bool
			err = tx.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM bookings
					WHERE event_id = $1 AND seat_id = $2 AND status IN ('pending', 'confirmed')
				)
			`, eventID, seatID).Scan(&booked)
			if err != nil {
				return err
			}
			if booked {
				res.Unavailable = append(res.Unavailable, seatID)
				continue
			}

			tag, err := tx.Exec(ctx, `
				INSERT INTO holds (id, event_id, seat_id, session_id, status, expires_at, created_at)
				VALUES ($1, $2, $3, $4, 'ACTIVE', $5, $6)
				ON CONFLICT (event_id, seat_id) WHERE status = 'ACTIVE'
				DO UPDATE SET expires_at = excluded.expires_at
				WHERE holds.session_id = excluded.session_id
			`, uuid.New(), eventID, seatID, sessionID, expiresAt, now)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				res.Unavailable = append(res.Unavailable, seatID)
				continue
			}
			res.Held = append(res.Held, seatID)
		}
		return nil
	})
	if err != nil {
		return domain.HoldResult{}, err
	}
	return res, nil
}

// ReleaseHolds drops the session's active holds for an event. A nil or
// empty seat list releases everything the session holds on the event.
// Pending cart-placeholder bookings (order_id = 0) in scope are deleted as
// well. This service writes bookings only at commit, so placeholder rows
// can only come from data migrated in from the predecessor data model.
func (r *Repository) ReleaseHolds(ctx context.Context, eventID uuid.UUID, sessionID string, seatIDs []string) (int64, error) {
	var released int64
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		if len(seatIDs) == 0 {
			t, execErr := tx.Exec(ctx, `
				UPDATE holds SET status = 'RELEASED'
				WHERE event_id = $1 AND session_id = $2 AND status = 'ACTIVE'
			`, eventID, sessionID)
			if execErr != nil {
				return execErr
			}
			released = t.RowsAffected()

			_, execErr = tx.Exec(ctx, `
				DELETE FROM bookings
				WHERE event_id = $1 AND session_id = $2 AND order_id = 0 AND status = 'pending'
			`, eventID, sessionID)
			return execErr
		}

		t, execErr := tx.Exec(ctx, `
			UPDATE holds SET status = 'RELEASED'
			WHERE event_id = $1 AND session_id = $2 AND status = 'ACTIVE' AND seat_id = ANY($3)
		`, eventID, sessionID, seatIDs)
		if execErr != nil {
			return execErr
		}
		released = t.RowsAffected()

		_, execErr = tx.Exec(ctx, `
			DELETE FROM bookings
			WHERE event_id = $1 AND session_id = $2 AND order_id = 0 AND status = 'pending' AND seat_id = ANY($3)
		`, eventID, sessionID, seatIDs)
		return execErr
	})
	return released, err
}

// ExtendHolds pushes the expiry of every live hold the session has on the
// event. Called right before a checkout redirect so the hold cannot lapse
// mid-hop. Already-expired holds are left for the sweep.
func (r *Repository) ExtendHolds(ctx context.Context, eventID uuid.UUID, sessionID string, expiresAt time.Time, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE holds SET expires_at = $3
		WHERE event_id = $1 AND session_id = $2 AND status = 'ACTIVE' AND expires_at > $4
	`, eventID, sessionID, expiresAt, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ActiveHoldSeats lists the seats the session currently holds, unexpired.
func (r *Repository) ActiveHoldSeats(ctx context.Context, eventID uuid.UUID, sessionID string, now time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
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

// RehomeHold transfers ownership of one seat's live hold from one session
// to another as a delete-then-insert inside a single transaction. There is
// no window where both sessions own the seat, and no window where nobody
// does. Returns false when the old session had no live hold to transfer.
func (r *Repository) RehomeHold(ctx context.Context, eventID uuid.UUID, seatID, fromSession, toSession string, expiresAt time.Time, now time.Time) (bool, error) {
	moved := false
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM holds
			WHERE event_id = $1 AND seat_id = $2 AND session_id = $3 AND status = 'ACTIVE' AND expires_at > $4
		`, eventID, seatID, fromSession, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO holds (id, event_id, seat_id, session_id, status, expires_at, created_at)
			VALUES ($1, $2, $3, $4, 'ACTIVE', $5, $6)
		`, uuid.New(), eventID, seatID, toSession, expiresAt, now)
		if err != nil {
			return err
		}
		moved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return moved, nil
}

// SweepExpired flips every lapsed active hold to EXPIRED and returns the
// affected holds so the caller can clear fast-path locks and publish
// notifications. Safe to run concurrently with itself and with hold
// creation: it only ever touches rows already past their contract.
func (r *Repository) SweepExpired(ctx context.Context, now time.Time) ([]domain.Hold, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE holds SET status = 'EXPIRED'
		WHERE status = 'ACTIVE' AND expires_at <= $1
		RETURNING id, event_id, seat_id, session_id, expires_at, created_at
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []domain.Hold
	for rows.Next() {
		h := domain.Hold{Status: domain.HoldExpired}
		if err := rows.Scan(&h.ID, &h.EventID, &h.SeatID, &h.SessionID, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}
