package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atomlessAK/shuma-gorath/internal/logging"
)

// schemaSQL is the production KV schema: a single table keyed by site+key,
// with an explicit expires_at column readers treat as authoritative, exec'd
// directly against the pool on startup.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv_entries (
	site_id    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ,
	PRIMARY KEY (site_id, key)
);
CREATE INDEX IF NOT EXISTS kv_entries_prefix_idx ON kv_entries (site_id, key text_pattern_ops);
`

// Postgres is the production Store: pgxpool.New + Ping + InitSchema,
// parameterized exec throughout so no column name ever gets interpolated
// directly into a query string.
type Postgres struct {
	pool   *pgxpool.Pool
	siteID string
}

// Connect opens a pool and verifies it with a Ping before returning.
func Connect(ctx context.Context, connStr, siteID string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("kvstore: unable to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("kvstore: ping failed: %w", err)
	}
	logging.Line("kvstore", "connected to postgres for site=%s", siteID)
	return &Postgres{pool: pool, siteID: siteID}, nil
}

// InitSchema creates the kv_entries table if absent. The schema is small
// enough to keep inline as a constant string rather than a separate file.
func (p *Postgres) InitSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("kvstore: failed to init schema: %w", err)
	}
	logging.Line("kvstore", "schema initialized")
	return nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	row := p.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE site_id = $1 AND key = $2 AND (expires_at IS NULL OR expires_at > now())`,
		p.siteID, key)
	if err := row.Scan(&value); err != nil {
		if err.Error() == "no rows in result set" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires any
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO kv_entries (site_id, key, value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (site_id, key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, p.siteID, key, value, expires)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE site_id = $1 AND key = $2`, p.siteID, key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT key FROM kv_entries
		WHERE site_id = $1 AND key LIKE $2 AND (expires_at IS NULL OR expires_at > now())
	`, p.siteID, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IncrementAndGet performs a read-modify-write counter increment. No
// transaction is used; concurrent increments may lose an update, which is
// an acceptable tradeoff for a best-effort rate counter.
func (p *Postgres) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	cur, err := p.CurrentUsage(ctx, key)
	if err != nil {
		return 0, err
	}
	next := cur + 1
	if err := p.Set(ctx, key, []byte(fmt.Sprintf("%d", next)), ttl); err != nil {
		return 0, err
	}
	return next, nil
}

func (p *Postgres) CurrentUsage(ctx context.Context, key string) (int64, error) {
	v, err := p.Get(ctx, key)
	if err != nil {
		if err == ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	var n int64
	_, _ = fmt.Sscanf(string(v), "%d", &n)
	return n, nil
}
