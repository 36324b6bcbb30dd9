package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stagedoor/seat-inventory/internal/domain"
	"github.com/stagedoor/seat-inventory/internal/observability"
)

type AvailabilityStore interface {
	Availability(ctx context.Context, eventID uuid.UUID, viewerSession string, now time.Time) (domain.Availability, error)
}

// AvailabilityCache is the optional short-TTL snapshot store. Snapshots
// are only served for anonymous reads; a session-scoped view always
// recomputes so a shopper's own holds are excluded correctly.
type AvailabilityCache interface {
	GetAvailability(ctx context.Context, eventID string) (*domain.Availability, error)
	SetAvailability(ctx context.Context, eventID string, av domain.Availability) error
}

// Index is the single read path for "is this seat free". Every hold,
// booking and block decision goes through the same aggregation instead of
// each flow querying tables on its own.
type Index struct {
	store  AvailabilityStore
	cache  AvailabilityCache
	logger observability.Logger
}

func NewIndex(store AvailabilityStore, logger observability.Logger) *Index {
	return &Index{store: store, logger: logger}
}

func (i *Index) WithCache(cache AvailabilityCache) *Index {
	i.cache = cache
	return i
}

// Unavailable reports the booked, held-by-others and blocked seat sets for
// an event at this instant.
func (i *Index) Unavailable(ctx context.Context, eventID uuid.UUID, viewerSession string) (domain.Availability, error) {
	if i.cache != nil && viewerSession == "" {
		cached, err := i.cache.GetAvailability(ctx, eventID.String())
		if err != nil {
			i.logger.Warn("availability cache read failed: ", err)
		} else if cached != nil {
			return *cached, nil
		}
	}

	av, err := i.store.Availability(ctx, eventID, viewerSession, time.Now().UTC())
	if err != nil {
		return domain.Availability{}, err
	}

	if i.cache != nil && viewerSession == "" {
		if err := i.cache.SetAvailability(ctx, eventID.String(), av); err != nil {
			i.logger.Warn("availability cache write failed: ", err)
		}
	}
	return av, nil
}
