package crdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stagedoor/seat-inventory/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Availability recomputes the three unavailability sets for an event from
// their tables on every call. Holds owned by viewerSession are excluded
// from held_by_others so a shopper's own selection never reads as taken.
// The three reads are independent and run concurrently on the pool.
func (r *Repository) Availability(ctx context.Context, eventID uuid.UUID, viewerSession string, now time.Time) (domain.Availability, error) {
	var av domain.Availability

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `
			SELECT DISTINCT seat_id FROM bookings
			WHERE event_id = $1 AND status IN ('pending', 'confirmed')
		`, eventID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s string
			if err := rows.Scan(&s); err != nil {
				return err
			}
			av.Booked = append(av.Booked, s)
		}
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `
			SELECT seat_id FROM holds
			WHERE event_id = $1 AND status = 'ACTIVE' AND expires_at > $2 AND session_id != $3
		`, eventID, now, viewerSession)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s string
			if err := rows.Scan(&s); err != nil {
				return err
			}
			av.HeldByOthers = append(av.HeldByOthers, s)
		}
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `
			SELECT seat_ids FROM seat_blocks
			WHERE event_id = $1 AND is_active
				AND (valid_from IS NULL OR valid_from <= $2)
				AND (valid_until IS NULL OR valid_until > $2)
		`, eventID, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		seen := make(map[string]struct{})
		for rows.Next() {
			var seats []string
			if err := rows.Scan(&seats); err != nil {
				return err
			}
			for _, s := range seats {
				if _, dup := seen[s]; !dup {
					seen[s] = struct{}{}
					av.Blocked = append(av.Blocked, s)
				}
			}
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return domain.Availability{}, err
	}

	sort.Strings(av.Booked)
	sort.Strings(av.HeldByOthers)
	sort.Strings(av.Blocked)
	return av, nil
}
