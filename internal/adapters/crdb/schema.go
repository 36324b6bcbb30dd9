package crdb

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the full DDL for the service. The partial unique indexes on
// holds and bookings are the seat-uniqueness guarantee: two concurrent
// writers racing for one seat are serialized by the index, not by
// application-level checks.
const Schema = `
CREATE TABLE IF NOT EXISTS holds (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL,
	seat_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('ACTIVE', 'EXPIRED', 'RELEASED', 'CONVERTED')),
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_holds_active
	ON holds (event_id, seat_id) WHERE status = 'ACTIVE';
CREATE INDEX IF NOT EXISTS idx_holds_session
	ON holds (session_id, event_id) WHERE status = 'ACTIVE';
CREATE INDEX IF NOT EXISTS idx_holds_expiry
	ON holds (expires_at) WHERE status = 'ACTIVE';

CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	order_id BIGINT NOT NULL DEFAULT 0,
	order_item_id BIGINT NOT NULL DEFAULT 0,
	event_id UUID NOT NULL,
	seat_id TEXT NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	customer_email TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL CHECK (status IN
		('pending', 'confirmed', 'refunded', 'partially_refunded', 'guest_list', 'cancelled', 'failed')),
	refund_id TEXT NOT NULL DEFAULT '',
	refunded_amount NUMERIC NOT NULL DEFAULT 0,
	refund_reason TEXT NOT NULL DEFAULT '',
	refund_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_bookings_active
	ON bookings (event_id, seat_id) WHERE status IN ('pending', 'confirmed');
CREATE INDEX IF NOT EXISTS idx_bookings_order ON bookings (order_id);

CREATE TABLE IF NOT EXISTS seat_blocks (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL,
	seat_ids TEXT[] NOT NULL,
	block_type TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	blocked_by TEXT NOT NULL DEFAULT '',
	is_active BOOL NOT NULL DEFAULT true,
	valid_from TIMESTAMPTZ,
	valid_until TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_blocks_event ON seat_blocks (event_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS refund_audit (
	id UUID PRIMARY KEY,
	order_id BIGINT NOT NULL,
	refund_id TEXT NOT NULL,
	seat_ids TEXT[] NOT NULL,
	amount NUMERIC NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS refund_markers (
	order_id BIGINT PRIMARY KEY,
	processed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload_json BYTEA NOT NULL,
	status TEXT NOT NULL DEFAULT 'NEW',
	dedupe_key TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ
);
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
