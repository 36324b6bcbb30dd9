package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stagedoor/seat-inventory/internal/domain"
	"github.com/stagedoor/seat-inventory/internal/observability"
)

type BlockStore interface {
	CreateBlock(ctx context.Context, block domain.SeatBlock) error
	DeactivateBlock(ctx context.Context, blockID uuid.UUID) (uuid.UUID, error)
	ListBlocks(ctx context.Context, eventID uuid.UUID) ([]domain.SeatBlock, error)
}

// BlockManager covers administrative seat exclusions. These are rare admin
// actions; the duplicate-block and already-booked checks are best effort
// by design and documented as such, unlike the customer hold path.
type BlockManager struct {
	store  BlockStore
	audit  Auditor
	cache  Invalidator
	logger observability.Logger
}

func NewBlockManager(store BlockStore, logger observability.Logger) *BlockManager {
	return &BlockManager{store: store, logger: logger}
}

func (m *BlockManager) WithAuditor(a Auditor) *BlockManager {
	m.audit = a
	return m
}

func (m *BlockManager) WithInvalidator(cache Invalidator) *BlockManager {
	m.cache = cache
	return m
}

// CreateBlock excludes seats for an event, indefinitely or inside a time
// window. Rejects seats that are already blocked or actively booked.
func (m *BlockManager) CreateBlock(ctx context.Context, eventID uuid.UUID, seatIDs []string, blockType, reason, blockedBy string, validFrom, validUntil *time.Time) (uuid.UUID, error) {
	if err := domain.ValidateSeatIDs(seatIDs); err != nil {
		return uuid.Nil, err
	}
	bt, err := domain.ParseBlockType(blockType)
	if err != nil {
		return uuid.Nil, err
	}
	if validFrom != nil && validUntil != nil && !validUntil.After(*validFrom) {
		return uuid.Nil, fmt.Errorf("empty validity window: %w", domain.ErrInvalidInput)
	}

	block := domain.SeatBlock{
		ID:         uuid.New(),
		EventID:    eventID,
		SeatIDs:    seatIDs,
		Type:       bt,
		Reason:     reason,
		BlockedBy:  blockedBy,
		Active:     true,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.store.CreateBlock(ctx, block); err != nil {
		return uuid.Nil, err
	}

	m.invalidate(ctx, eventID)
	if m.audit != nil {
		m.audit.LogEvent(ctx, "block.created", blockedBy, map[string]interface{}{
			"block_id": block.ID.String(),
			"event_id": eventID.String(),
			"type":     string(bt),
			"seats":    seatIDs,
		})
	}
	return block.ID, nil
}

// RemoveBlock soft-deactivates a block; the row survives for audit.
func (m *BlockManager) RemoveBlock(ctx context.Context, blockID uuid.UUID, actor string) error {
	eventID, err := m.store.DeactivateBlock(ctx, blockID)
	if err != nil {
		return err
	}
	m.invalidate(ctx, eventID)
	if m.audit != nil {
		m.audit.LogEvent(ctx, "block.removed", actor, map[string]interface{}{
			"block_id": blockID.String(),
			"event_id": eventID.String(),
		})
	}
	return nil
}

func (m *BlockManager) ListBlocks(ctx context.Context, eventID uuid.UUID) ([]domain.SeatBlock, error) {
	return m.store.ListBlocks(ctx, eventID)
}

func (m *BlockManager) invalidate(ctx context.Context, eventID uuid.UUID) {
	if m.cache == nil {
		return
	}
	if err := m.cache.InvalidateAvailability(ctx, eventID.String()); err != nil {
		m.logger.Warn("availability cache invalidation failed: ", err)
	}
}
