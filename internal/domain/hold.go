package domain

import (
	"time"

	"github.com/google/uuid"
)

type HoldStatus string

const (
	HoldActive    HoldStatus = "ACTIVE"
	HoldExpired   HoldStatus = "EXPIRED"
	HoldReleased  HoldStatus = "RELEASED"
	HoldConverted HoldStatus = "CONVERTED"
)

// Hold is a time-limited soft reservation of one seat for one session.
// The session token is the only thing that authorizes touching the hold.
type Hold struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	SeatID    string
	SessionID string
	Status    HoldStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

func NewHold(eventID uuid.UUID, seatID, sessionID string, ttl time.Duration) Hold {
	now := time.Now().UTC()
	return Hold{
		ID:        uuid.New(),
		EventID:   eventID,
		SeatID:    seatID,
		SessionID: sessionID,
		Status:    HoldActive,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Expired reports whether the hold has lapsed at the given instant.
// All expiry comparisons use UTC; callers must pass time.Now().UTC().
func (h Hold) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}

// HoldResult is the outcome of a batch hold request. Partial success is
// first class: callers must branch on Unavailable, not assume all-or-nothing.
type HoldResult struct {
	Held        []string
	Unavailable []string
	ExpiresAt   time.Time
}
