// Package postgres provides a PostgreSQL-backed durable mirror for the symbol
// cache, for deployments where board sessions move between engine instances
// and a per-session file is not enough.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxboard/voxboard/pkg/symbolcache"
)

// Compile-time interface assertion.
var _ symbolcache.Mirror = (*Mirror)(nil)

// schema holds the symbol_cache table. image_url is empty-string for negative
// entries, matching the in-memory representation.
const schema = `
CREATE TABLE IF NOT EXISTS symbol_cache (
	session_id text   NOT NULL,
	cache_key  text   NOT NULL,
	image_url  text   NOT NULL,
	fetched_at bigint NOT NULL,
	PRIMARY KEY (session_id, cache_key)
)`

// Mirror stores one session's cache rows in PostgreSQL.
// All methods are safe for concurrent use.
type Mirror struct {
	pool      *pgxpool.Pool
	sessionID string
}

// New connects to the database at dsn and ensures the schema exists. The
// returned Mirror scopes all reads and writes to sessionID.
func New(ctx context.Context, dsn, sessionID string) (*Mirror, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("symbolcache postgres: sessionID must not be empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("symbolcache postgres: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("symbolcache postgres: ensure schema: %w", err)
	}
	return &Mirror{pool: pool, sessionID: sessionID}, nil
}

// Load implements [symbolcache.Mirror].
func (m *Mirror) Load(ctx context.Context) (map[string]symbolcache.Entry, error) {
	const q = `
		SELECT cache_key, image_url, fetched_at
		FROM   symbol_cache
		WHERE  session_id = $1`

	rows, err := m.pool.Query(ctx, q, m.sessionID)
	if err != nil {
		return nil, fmt.Errorf("symbolcache postgres: load: %w", err)
	}
	defer rows.Close()

	entries := map[string]symbolcache.Entry{}
	for rows.Next() {
		var (
			key string
			e   symbolcache.Entry
		)
		if err := rows.Scan(&key, &e.ImageURL, &e.FetchedAt); err != nil {
			return nil, fmt.Errorf("symbolcache postgres: scan: %w", err)
		}
		entries[key] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("symbolcache postgres: load: %w", err)
	}
	return entries, nil
}

// Store implements [symbolcache.Mirror]. Rows are upserted in one batch;
// stale rows from earlier snapshots age out via the resolver's TTL on load.
func (m *Mirror) Store(ctx context.Context, entries map[string]symbolcache.Entry) error {
	const q = `
		INSERT INTO symbol_cache (session_id, cache_key, image_url, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, cache_key)
		DO UPDATE SET image_url = EXCLUDED.image_url, fetched_at = EXCLUDED.fetched_at`

	batch := &pgx.Batch{}
	for key, e := range entries {
		batch.Queue(q, m.sessionID, key, e.ImageURL, e.FetchedAt)
	}
	if err := m.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("symbolcache postgres: store: %w", err)
	}
	return nil
}

// Ping verifies database connectivity, for readiness checks.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

// Close releases the connection pool.
func (m *Mirror) Close() {
	m.pool.Close()
}
