package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/admission-go/internal/analytics"
)

// Schema creates the throttle_events table.
const Schema = `
	CREATE TABLE IF NOT EXISTS throttle_events (
		id                  UUID PRIMARY KEY,
		endpoint            TEXT        NOT NULL,
		path                TEXT        NOT NULL,
		rate_key            TEXT        NOT NULL,
		client_ip           TEXT        NOT NULL,
		max_requests        BIGINT      NOT NULL,
		window_millis       BIGINT      NOT NULL,
		retry_after_seconds BIGINT      NOT NULL,
		occurred_at         TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS throttle_events_client_ip_idx ON throttle_events (client_ip, occurred_at);
`

// Postgres is a PostgreSQL implementation of analytics.Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a new PostgreSQL-backed throttle event store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the table and index if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, Schema)

	return err
}

// SaveThrottled stores an event. Redelivered events are ignored.
func (p *Postgres) SaveThrottled(ctx context.Context, event *analytics.ThrottledEvent) error {
	query := `
		INSERT INTO throttle_events
			(id, endpoint, path, rate_key, client_ip, max_requests, window_millis, retry_after_seconds, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := p.pool.Exec(ctx, query,
		event.ID,
		event.Endpoint,
		event.Path,
		event.Key,
		event.ClientIP,
		event.Limit,
		event.WindowMillis,
		event.RetryAfterSeconds,
		event.OccurredAt,
	)

	return err
}

// CountByClientIP returns how many throttle events a client produced since the given time.
func (p *Postgres) CountByClientIP(ctx context.Context, clientIP string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM throttle_events
		WHERE client_ip = $1 AND occurred_at >= $2
	`

	var count int64
	if err := p.pool.QueryRow(ctx, query, clientIP, since).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// Recent returns the newest events, most recent first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]analytics.ThrottledEvent, error) {
	query := `
		SELECT id, endpoint, path, rate_key, client_ip, max_requests, window_millis, retry_after_seconds, occurred_at
		FROM throttle_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.ThrottledEvent, error) {
		var e analytics.ThrottledEvent

		err := row.Scan(
			&e.ID,
			&e.Endpoint,
			&e.Path,
			&e.Key,
			&e.ClientIP,
			&e.Limit,
			&e.WindowMillis,
			&e.RetryAfterSeconds,
			&e.OccurredAt,
		)

		return e, err
	})
}

// Compile-time checks.
var (
	_ analytics.Store = (*Postgres)(nil)
	_ analytics.Query = (*Postgres)(nil)
)
