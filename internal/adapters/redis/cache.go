package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stagedoor/seat-inventory/internal/domain"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// TryLockSeat is the fast-path guard in front of the database constraint.
// It is advisory only: a missing or expired redis key never grants a seat,
// and a set key only short-circuits the obvious loser early.
func (c *Cache) TryLockSeat(ctx context.Context, eventID, seatID, sessionID string, ttl time.Duration) (bool, error) {
	key := "hold:" + eventID + ":" + seatID
	ok, err := c.client.SetNX(ctx, key, sessionID, ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	// Same session re-issuing its own hold passes the fast path.
	owner, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return owner == sessionID, nil
}

func (c *Cache) UnlockSeat(ctx context.Context, eventID, seatID string) error {
	return c.client.Del(ctx, "hold:"+eventID+":"+seatID).Err()
}

// MoveSeatLock re-points the fast-path lock at a new session during hold
// re-homing. Best effort; the database hold row is the source of truth.
func (c *Cache) MoveSeatLock(ctx context.Context, eventID, seatID, toSession string, ttl time.Duration) error {
	return c.client.Set(ctx, "hold:"+eventID+":"+seatID, toSession, ttl).Err()
}

const availabilityTTL = 5 * time.Second

// GetAvailability returns a cached availability snapshot, or nil on miss.
func (c *Cache) GetAvailability(ctx context.Context, eventID string) (*domain.Availability, error) {
	val, err := c.client.Get(ctx, "avail:"+eventID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var av domain.Availability
	if err := json.Unmarshal(val, &av); err != nil {
		return nil, err
	}
	return &av, nil
}

func (c *Cache) SetAvailability(ctx context.Context, eventID string, av domain.Availability) error {
	data, err := json.Marshal(av)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "avail:"+eventID, data, availabilityTTL).Err()
}

// InvalidateAvailability is called by every hold, booking and block write
// path so reads never serve a snapshot older than the last mutation.
func (c *Cache) InvalidateAvailability(ctx context.Context, eventID string) error {
	return c.client.Del(ctx, "avail:"+eventID).Err()
}
