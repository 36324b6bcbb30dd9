package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BlockType string

const (
	BlockMaintenance BlockType = "maintenance"
	BlockEquipment   BlockType = "equipment"
	BlockVIP         BlockType = "vip"
)

func ParseBlockType(s string) (BlockType, error) {
	switch BlockType(s) {
	case BlockMaintenance, BlockEquipment, BlockVIP:
		return BlockType(s), nil
	}
	return "", fmt.Errorf("unknown block type %q: %w", s, ErrInvalidInput)
}

// SeatBlock is an administrative exclusion of seats, indefinite or
// time-boxed, independent of any customer session. Blocks are soft-removed
// only; rows stay around for audit.
type SeatBlock struct {
	ID         uuid.UUID
	EventID    uuid.UUID
	SeatIDs    []string
	Type       BlockType
	Reason     string
	BlockedBy  string
	Active     bool
	ValidFrom  *time.Time
	ValidUntil *time.Time
	CreatedAt  time.Time
}

// InWindow reports whether the block applies at the given instant. A nil
// bound means unbounded on that side.
func (b SeatBlock) InWindow(now time.Time) bool {
	if !b.Active {
		return false
	}
	if b.ValidFrom != nil && now.Before(*b.ValidFrom) {
		return false
	}
	if b.ValidUntil != nil && !now.Before(*b.ValidUntil) {
		return false
	}
	return true
}
