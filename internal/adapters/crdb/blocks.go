package crdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stagedoor/seat-inventory/internal/domain"
)

// CreateBlock inserts an administrative block after checking that none of
// the seats is already blocked or actively booked. The check and the insert
// share one serializable transaction; contention on admin blocks is low
// enough that retry-on-serialization-failure is the whole strategy here.
func (r *Repository) CreateBlock(ctx context.Context, block domain.SeatBlock) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		now := block.CreatedAt
		blocked, err := blockedSeatsTx(ctx, tx, block.EventID, now)
		if err != nil {
			return err
		}
		for _, seat := range block.SeatIDs {
			if _, ok := blocked[seat]; ok {
				return fmt.Errorf("seat %s already blocked: %w", seat, domain.ErrConflict)
			}
		}

		rows, err := tx.Query(ctx, `
			SELECT seat_id FROM bookings
			WHERE event_id = $1 AND seat_id = ANY($2) AND status IN ('pending', 'confirmed')
		`, block.EventID, block.SeatIDs)
		if err != nil {
			return err
		}
		var bookedSeat string
		for rows.Next() {
			if err := rows.Scan(&bookedSeat); err != nil {
				rows.Close()
				return err
			}
			break
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if bookedSeat != "" {
			return fmt.Errorf("seat %s already booked: %w", bookedSeat, domain.ErrConflict)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO seat_blocks (id, event_id, seat_ids, block_type, reason, blocked_by, is_active, valid_from, valid_until, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, true, $7, $8, $9)
		`, block.ID, block.EventID, block.SeatIDs, block.Type, block.Reason, block.BlockedBy, block.ValidFrom, block.ValidUntil, block.CreatedAt)
		return err
	})
}

// DeactivateBlock soft-removes a block and returns its event id. Rows are
// never deleted; the audit trail keeps every block ever created.
// Deactivating an already-inactive block is a no-op.
func (r *Repository) DeactivateBlock(ctx context.Context, blockID uuid.UUID) (uuid.UUID, error) {
	var eventID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		UPDATE seat_blocks SET is_active = false WHERE id = $1 AND is_active
		RETURNING event_id
	`, blockID).Scan(&eventID)
	if err == nil {
		return eventID, nil
	}
	if err != pgx.ErrNoRows {
		return uuid.Nil, err
	}
	lookupErr := r.pool.QueryRow(ctx, `
		SELECT event_id FROM seat_blocks WHERE id = $1
	`, blockID).Scan(&eventID)
	if lookupErr == pgx.ErrNoRows {
		return uuid.Nil, fmt.Errorf("block %s: %w", blockID, domain.ErrNotFound)
	}
	if lookupErr != nil {
		return uuid.Nil, lookupErr
	}
	return eventID, nil
}

// ListBlocks returns every block for the event, active or not, newest first.
func (r *Repository) ListBlocks(ctx context.Context, eventID uuid.UUID) ([]domain.SeatBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, seat_ids, block_type, reason, blocked_by, is_active, valid_from, valid_until, created_at
		FROM seat_blocks WHERE event_id = $1 ORDER BY created_at DESC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []domain.SeatBlock
	for rows.Next() {
		var b domain.SeatBlock
		if err := rows.Scan(&b.ID, &b.EventID, &b.SeatIDs, &b.Type, &b.Reason, &b.BlockedBy, &b.Active, &b.ValidFrom, &b.ValidUntil, &b.CreatedAt); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// blockedSeatsTx flattens the active, in-window blocks for an event into a
// seat membership set.
func blockedSeatsTx(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, now time.Time) (map[string]struct{}, error) {
	rows, err := tx.Query(ctx, `
		SELECT seat_ids FROM seat_blocks
		WHERE event_id = $1 AND is_active
			AND (valid_from IS NULL OR valid_from <= $2)
			AND (valid_until IS NULL OR valid_until > $2)
	`, eventID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blocked := make(map[string]struct{})
	for rows.Next() {
		var seats []string
		if err := rows.Scan(&seats); err != nil {
			return nil, err
		}
		for _, s := range seats {
			blocked[s] = struct{}{}
		}
	}
	return blocked, rows.Err()
}
