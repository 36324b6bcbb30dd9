package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stagedoor/seat-inventory/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CatalogRepository reads the static seat catalog. Seats are immutable once
// the venue layout is populated; the service only consults the catalog to
// reject unknown events and seat ids on the hold path.
type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("events"),
		logger: logger,
	}
}

type EventDoc struct {
	ID        uuid.UUID `bson:"_id"`
	Name      string    `bson:"name"`
	Venue     string    `bson:"venue"`
	Date      time.Time `bson:"date"`
	Seats     []SeatDoc `bson:"seats"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type SeatDoc struct {
	ID         string `bson:"seat_id"` // section+row-number, e.g. A1-5
	Section    string `bson:"section"`
	Row        int    `bson:"row"`
	Number     int    `bson:"number"`
	Tier       string `bson:"tier"`
	Accessible bool   `bson:"accessible"`
}

func (c *CatalogRepository) GetEvent(ctx context.Context, id uuid.UUID) (*EventDoc, error) {
	var event EventDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// SeatIDs returns the membership set of the event's seats.
func (c *CatalogRepository) SeatIDs(ctx context.Context, id uuid.UUID) (map[string]struct{}, error) {
	event, err := c.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(event.Seats))
	for _, s := range event.Seats {
		set[s.ID] = struct{}{}
	}
	return set, nil
}

func (c *CatalogRepository) CreateEvent(ctx context.Context, event EventDoc) error {
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	_, err := c.coll.InsertOne(ctx, event)
	if err != nil {
		c.logger.Error("failed to create event", err)
		return err
	}
	return nil
}
