// Package inventory holds the seat-inventory core: hold lifecycle,
// cart reconciliation, the booking ledger and its status machine, blocks,
// and the availability read path. Managers validate and orchestrate; the
// atomicity of each multi-step write lives in the store implementation.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stagedoor/seat-inventory/internal/domain"
	"github.com/stagedoor/seat-inventory/internal/observability"
)

// HoldStore is the durable hold state. Implementations must guarantee at
// most one active hold per (event, seat) across concurrent writers.
type HoldStore interface {
	CreateHolds(ctx context.Context, eventID uuid.UUID, seatIDs []string, sessionID string, expiresAt, now time.Time) (domain.HoldResult, error)
	ReleaseHolds(ctx context.Context, eventID uuid.UUID, sessionID string, seatIDs []string) (int64, error)
	ExtendHolds(ctx context.Context, eventID uuid.UUID, sessionID string, expiresAt, now time.Time) (int64, error)
	ActiveHoldSeats(ctx context.Context, eventID uuid.UUID, sessionID string, now time.Time) ([]string, error)
	RehomeHold(ctx context.Context, eventID uuid.UUID, seatID, fromSession, toSession string, expiresAt, now time.Time) (bool, error)
}

// SeatLocker is the optional redis fast path in front of the store.
type SeatLocker interface {
	TryLockSeat(ctx context.Context, eventID, seatID, sessionID string, ttl time.Duration) (bool, error)
	UnlockSeat(ctx context.Context, eventID, seatID string) error
}

// Catalog answers whether events and seats exist at all.
type Catalog interface {
	SeatIDs(ctx context.Context, eventID uuid.UUID) (map[string]struct{}, error)
}

// Invalidator drops cached availability snapshots after writes.
type Invalidator interface {
	InvalidateAvailability(ctx context.Context, eventID string) error
}

type HoldManager struct {
	store    HoldStore
	locks    SeatLocker
	catalog  Catalog
	cache    Invalidator
	logger   observability.Logger
	ttl      time.Duration
	maxSeats int
}

func NewHoldManager(store HoldStore, logger observability.Logger, ttl time.Duration, maxSeats int) *HoldManager {
	return &HoldManager{
		store:    store,
		logger:   logger,
		ttl:      ttl,
		maxSeats: maxSeats,
	}
}

// WithSeatLocker attaches the redis fast-path guard.
func (m *HoldManager) WithSeatLocker(locks SeatLocker) *HoldManager {
	m.locks = locks
	return m
}

// WithCatalog attaches the seat catalog for existence checks.
func (m *HoldManager) WithCatalog(catalog Catalog) *HoldManager {
	m.catalog = catalog
	return m
}

// WithInvalidator attaches the availability cache invalidation hook.
func (m *HoldManager) WithInvalidator(cache Invalidator) *HoldManager {
	m.cache = cache
	return m
}

func (m *HoldManager) TTL() time.Duration {
	return m.ttl
}

// CreateHold places time-limited holds on the requested seats. Partial
// success is normal: held and unavailable seats are reported separately and
// only a fully empty result is worth treating as failure by callers.
func (m *HoldManager) CreateHold(ctx context.Context, eventID uuid.UUID, seatIDs []string, sessionID string) (domain.HoldResult, error) {
	if sessionID == "" {
		return domain.HoldResult{}, fmt.Errorf("missing session id: %w", domain.ErrInvalidInput)
	}
	if err := domain.ValidateSeatIDs(seatIDs); err != nil {
		return domain.HoldResult{}, err
	}
	if len(seatIDs) > m.maxSeats {
		return domain.HoldResult{}, fmt.Errorf("at most %d seats per request: %w", m.maxSeats, domain.ErrInvalidInput)
	}

	if m.catalog != nil {
		known, err := m.catalog.SeatIDs(ctx, eventID)
		if err != nil {
			return domain.HoldResult{}, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
		}
		for _, seat := range seatIDs {
			if _, ok := known[seat]; !ok {
				return domain.HoldResult{}, fmt.Errorf("seat %s not in event layout: %w", seat, domain.ErrInvalidInput)
			}
		}
	}

	now := time.Now().UTC()
	expiresAt := now.Add(m.ttl)

	// Fast-path pre-check. A redis miss is not a grant and a hit is not a
	// denial of record; the store's unique index is the actual arbiter.
	candidates := seatIDs
	var fastRejected []string
	if m.locks != nil {
		candidates = make([]string, 0, len(seatIDs))
		for _, seat := range seatIDs {
			ok, err := m.locks.TryLockSeat(ctx, eventID.String(), seat, sessionID, m.ttl)
			if err != nil {
				// Redis being down must not block sales.
				m.logger.Warn("seat lock fast path unavailable: ", err)
				candidates = append(candidates, seat)
				continue
			}
			if !ok {
				fastRejected = append(fastRejected, seat)
				continue
			}
			candidates = append(candidates, seat)
		}
	}

	var res domain.HoldResult
	if len(candidates) > 0 {
		var err error
		res, err = m.store.CreateHolds(ctx, eventID, candidates, sessionID, expiresAt, now)
		if err != nil {
			return domain.HoldResult{}, err
		}
	} else {
		res.ExpiresAt = expiresAt
	}
	res.Unavailable = append(res.Unavailable, fastRejected...)

	if m.locks != nil {
		// Give back fast-path locks for seats the store refused.
		for _, seat := range res.Unavailable {
			if containsSeat(fastRejected, seat) {
				continue
			}
			if err := m.locks.UnlockSeat(ctx, eventID.String(), seat); err != nil {
				m.logger.Warn("failed to release seat lock: ", err)
			}
		}
	}

	observability.HoldsCreated.Add(float64(len(res.Held)))
	observability.HoldConflicts.Add(float64(len(res.Unavailable)))
	m.invalidate(ctx, eventID)

	m.logger.WithFields(map[string]interface{}{
		"event_id":    eventID.String(),
		"session":     domain.RedactSession(sessionID),
		"held":        len(res.Held),
		"unavailable": len(res.Unavailable),
	}).Info("hold request processed")

	return res, nil
}

// ReleaseHolds frees the session's holds on an event. An empty seat list
// releases every hold the session has there.
func (m *HoldManager) ReleaseHolds(ctx context.Context, eventID uuid.UUID, sessionID string, seatIDs []string) (int64, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("missing session id: %w", domain.ErrInvalidInput)
	}
	if len(seatIDs) > 0 {
		if err := domain.ValidateSeatIDs(seatIDs); err != nil {
			return 0, err
		}
	}

	count, err := m.store.ReleaseHolds(ctx, eventID, sessionID, seatIDs)
	if err != nil {
		return 0, err
	}

	if m.locks != nil {
		released := seatIDs
		if len(released) == 0 {
			// Unscoped release: locks self-expire; nothing to enumerate.
			released = nil
		}
		for _, seat := range released {
			if err := m.locks.UnlockSeat(ctx, eventID.String(), seat); err != nil {
				m.logger.Warn("failed to release seat lock: ", err)
			}
		}
	}

	m.invalidate(ctx, eventID)
	return count, nil
}

// ExtendHold refreshes the expiry of all of the session's live holds on the
// event. Callers invoke this synchronously before any redirect that could
// outlast the remaining window.
func (m *HoldManager) ExtendHold(ctx context.Context, eventID uuid.UUID, sessionID string, duration time.Duration) (time.Time, error) {
	if sessionID == "" {
		return time.Time{}, fmt.Errorf("missing session id: %w", domain.ErrInvalidInput)
	}
	if duration <= 0 {
		duration = m.ttl
	}

	now := time.Now().UTC()
	expiresAt := now.Add(duration)
	count, err := m.store.ExtendHolds(ctx, eventID, sessionID, expiresAt, now)
	if err != nil {
		return time.Time{}, err
	}
	if count == 0 {
		return time.Time{}, fmt.Errorf("no live holds to extend: %w", domain.ErrNotFound)
	}
	return expiresAt, nil
}

func (m *HoldManager) invalidate(ctx context.Context, eventID uuid.UUID) {
	if m.cache == nil {
		return
	}
	if err := m.cache.InvalidateAvailability(ctx, eventID.String()); err != nil {
		m.logger.Warn("availability cache invalidation failed: ", err)
	}
}

func containsSeat(seats []string, seat string) bool {
	for _, s := range seats {
		if s == seat {
			return true
		}
	}
	return false
}
