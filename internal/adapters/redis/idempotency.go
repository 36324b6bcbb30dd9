package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempPrefix = "idemp:"

// Idempotency stores the first response produced under an Idempotency-Key so
// a retried hold, booking or refund request replays it instead of mutating
// seat state twice.
type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

// IdempResponse is the replayable part of a handled request. StoredAt marks
// when the original request was served, which tells a replayed 201 apart
// from a fresh one when inspecting the store.
type IdempResponse struct {
	Status   int       `json:"status"`
	Result   []byte    `json:"result"`
	StoredAt time.Time `json:"stored_at"`
}

func (i *Idempotency) Get(ctx context.Context, key string) (*IdempResponse, error) {
	val, err := i.client.Get(ctx, idempPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp IdempResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp IdempResponse, ttl time.Duration) error {
	if resp.StoredAt.IsZero() {
		resp.StoredAt = time.Now().UTC()
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return i.client.Set(ctx, idempPrefix+key, data, ttl).Err()
}
