package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stagedoor/seat-inventory/internal/adapters/crdb"
	"github.com/stagedoor/seat-inventory/internal/domain"
)

// fakeHoldStore mirrors the store's contract in memory: at most one active
// hold per (event, seat), same-session rewrites refresh the expiry.
type fakeHoldStore struct {
	holds map[string]*fakeHold // key: eventID + "/" + seatID
}

type fakeHold struct {
	sessionID string
	expiresAt time.Time
	status    domain.HoldStatus
}

func newFakeHoldStore() *fakeHoldStore {
	return &fakeHoldStore{holds: make(map[string]*fakeHold)}
}

func holdKey(eventID uuid.UUID, seatID string) string {
	return eventID.String() + "/" + seatID
}

func (s *fakeHoldStore) CreateHolds(ctx context.Context, eventID uuid.UUID, seatIDs []string, sessionID string, expiresAt, now time.Time) (domain.HoldResult, error) {
	res := domain.HoldResult{ExpiresAt: expiresAt}
	for _, seat := range seatIDs {
		k := holdKey(eventID, seat)
		existing, ok := s.holds[k]
		if ok && existing.status == domain.HoldActive && existing.expiresAt.After(now) {
			if existing.sessionID == sessionID {
				existing.expiresAt = expiresAt
				res.Held = append(res.Held, seat)
				continue
			}
			res.Unavailable = append(res.Unavailable, seat)
			continue
		}
		s.holds[k] = &fakeHold{sessionID: sessionID, expiresAt: expiresAt, status: domain.HoldActive}
		res.Held = append(res.Held, seat)
	}
	return res, nil
}

func (s *fakeHoldStore) ReleaseHolds(ctx context.Context, eventID uuid.UUID, sessionID string, seatIDs []string) (int64, error) {
	var count int64
	match := func(seat string) bool {
		if len(seatIDs) == 0 {
			return true
		}
		for _, id := range seatIDs {
			if id == seat {
				return true
			}
		}
		return false
	}
	for k, h := range s.holds {
		if h.sessionID != sessionID || h.status != domain.HoldActive {
			continue
		}
		seat := k[len(eventID.String())+1:]
		if k[:len(eventID.String())] == eventID.String() && match(seat) {
			h.status = domain.HoldReleased
			count++
		}
	}
	return count, nil
}

func (s *fakeHoldStore) ExtendHolds(ctx context.Context, eventID uuid.UUID, sessionID string, expiresAt, now time.Time) (int64, error) {
	var count int64
	for k, h := range s.holds {
		if k[:len(eventID.String())] != eventID.String() {
			continue
		}
		if h.sessionID == sessionID && h.status == domain.HoldActive && h.expiresAt.After(now) {
			h.expiresAt = expiresAt
			count++
		}
	}
	return count, nil
}

func (s *fakeHoldStore) ActiveHoldSeats(ctx context.Context, eventID uuid.UUID, sessionID string, now time.Time) ([]string, error) {
	var seats []string
	for k, h := range s.holds {
		if k[:len(eventID.String())] != eventID.String() {
			continue
		}
		if h.sessionID == sessionID && h.status == domain.HoldActive && h.expiresAt.After(now) {
			seats = append(seats, k[len(eventID.String())+1:])
		}
	}
	return seats, nil
}

func (s *fakeHoldStore) RehomeHold(ctx context.Context, eventID uuid.UUID, seatID, fromSession, toSession string, expiresAt, now time.Time) (bool, error) {
	k := holdKey(eventID, seatID)
	h, ok := s.holds[k]
	if !ok || h.sessionID != fromSession || h.status != domain.HoldActive || !h.expiresAt.After(now) {
		return false, nil
	}
	h.sessionID = toSession
	h.expiresAt = expiresAt
	return true, nil
}

// fakeLedgerStore records calls and simulates idempotency markers.
type fakeLedgerStore struct {
	commits   []crdb.CommitParams
	released  map[int64]bool
	selective []crdb.SelectiveRefundParams
	bookings  []domain.Booking
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{released: make(map[int64]bool)}
}

func (s *fakeLedgerStore) CommitBookings(ctx context.Context, p crdb.CommitParams) ([]domain.Booking, error) {
	s.commits = append(s.commits, p)
	out := make([]domain.Booking, len(p.SeatIDs))
	for i, seat := range p.SeatIDs {
		out[i] = domain.Booking{
			ID:      uuid.New(),
			OrderID: p.OrderID,
			EventID: p.EventID,
			SeatID:  seat,
			Status:  domain.BookingConfirmed,
		}
	}
	s.bookings = append(s.bookings, out...)
	return out, nil
}

func (s *fakeLedgerStore) MarkOrderReleased(ctx context.Context, orderID int64, status domain.BookingStatus, reason string, now time.Time) ([]domain.Booking, bool, error) {
	if s.released[orderID] {
		return nil, true, nil
	}
	s.released[orderID] = true
	var out []domain.Booking
	for i := range s.bookings {
		if s.bookings[i].OrderID == orderID && s.bookings[i].Status == domain.BookingConfirmed {
			s.bookings[i].Status = status
			out = append(out, s.bookings[i])
		}
	}
	return out, false, nil
}

func (s *fakeLedgerStore) SelectiveRefund(ctx context.Context, p crdb.SelectiveRefundParams) ([]domain.Booking, error) {
	s.selective = append(s.selective, p)
	var out []domain.Booking
	for i := range s.bookings {
		if s.bookings[i].OrderID != p.OrderID {
			continue
		}
		for _, seat := range p.SeatIDs {
			if s.bookings[i].SeatID == seat {
				s.bookings[i].Status = p.Status
				out = append(out, s.bookings[i])
			}
		}
	}
	return out, nil
}

func (s *fakeLedgerStore) ReassignSeat(ctx context.Context, orderID int64, oldSeat, newSeat string, itemID int64, now time.Time) (domain.Booking, error) {
	for i := range s.bookings {
		if s.bookings[i].OrderID == orderID && s.bookings[i].SeatID == oldSeat && s.bookings[i].Status.Active() {
			s.bookings[i].SeatID = newSeat
			return s.bookings[i], nil
		}
	}
	return domain.Booking{}, fmt.Errorf("booking not found: %w", domain.ErrNotFound)
}

// fakeLocker rejects seats preloaded as locked by another session.
type fakeLocker struct {
	locked   map[string]string // eventID/seatID -> session
	unlocked []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locked: make(map[string]string)}
}

func (l *fakeLocker) TryLockSeat(ctx context.Context, eventID, seatID, sessionID string, ttl time.Duration) (bool, error) {
	k := eventID + "/" + seatID
	if owner, ok := l.locked[k]; ok && owner != sessionID {
		return false, nil
	}
	l.locked[k] = sessionID
	return true, nil
}

func (l *fakeLocker) UnlockSeat(ctx context.Context, eventID, seatID string) error {
	k := eventID + "/" + seatID
	delete(l.locked, k)
	l.unlocked = append(l.unlocked, seatID)
	return nil
}

func (l *fakeLocker) MoveSeatLock(ctx context.Context, eventID, seatID, toSession string, ttl time.Duration) error {
	l.locked[eventID+"/"+seatID] = toSession
	return nil
}

type fakeCatalog struct {
	seats map[string]struct{}
	err   error
}

func (c *fakeCatalog) SeatIDs(ctx context.Context, eventID uuid.UUID) (map[string]struct{}, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.seats, nil
}

type fakeInvalidator struct {
	calls int
}

func (i *fakeInvalidator) InvalidateAvailability(ctx context.Context, eventID string) error {
	i.calls++
	return nil
}

type fakeAuditor struct {
	actions []string
}

func (a *fakeAuditor) LogEvent(ctx context.Context, action, actor string, data map[string]interface{}) {
	a.actions = append(a.actions, action)
}
