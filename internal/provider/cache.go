package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// MemoryCache is the fast first tier: a process-local map with per-entry
// expiry. Safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	res     RouteResult
	expires time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(key string) (RouteResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expires) {
		return RouteResult{}, false
	}
	return e.res, true
}

func (c *MemoryCache) Put(key string, res RouteResult) {
	c.mu.Lock()
	c.entries[key] = memoryEntry{res: res, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// PostgresStore is the slower persistent tier. Entries older than the TTL
// are ignored by reads; the table keeps one row per (origin, destination,
// mode) key, refreshed on conflict.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
}

func OpenPostgres(dsn string, ttl time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore{db: db, ttl: ttl}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// InitSchema creates the cache table if it does not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS directions_cache (
    cache_key        TEXT PRIMARY KEY,
    points           JSONB NOT NULL,
    distance_meters  DOUBLE PRECISION NOT NULL,
    duration_seconds DOUBLE PRECISION NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("init directions_cache schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (RouteResult, bool, error) {
	q := `
SELECT points, distance_meters, duration_seconds
FROM directions_cache
WHERE cache_key = $1 AND created_at > now() - ($2 * interval '1 second')`

	var pointsJSON []byte
	var res RouteResult
	err := s.db.QueryRowContext(ctx, q, key, s.ttl.Seconds()).
		Scan(&pointsJSON, &res.DistanceMeters, &res.DurationSeconds)
	if err == sql.ErrNoRows {
		return RouteResult{}, false, nil
	}
	if err != nil {
		return RouteResult{}, false, fmt.Errorf("query directions_cache: %w", err)
	}
	if err := json.Unmarshal(pointsJSON, &res.Points); err != nil {
		return RouteResult{}, false, fmt.Errorf("decode cached points: %w", err)
	}
	return res, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, res RouteResult) error {
	pointsJSON, err := json.Marshal(res.Points)
	if err != nil {
		return fmt.Errorf("encode points: %w", err)
	}
	q := `
INSERT INTO directions_cache (cache_key, points, distance_meters, duration_seconds, created_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (cache_key) DO UPDATE
SET points = EXCLUDED.points,
    distance_meters = EXCLUDED.distance_meters,
    duration_seconds = EXCLUDED.duration_seconds,
    created_at = EXCLUDED.created_at`
	if _, err := s.db.ExecContext(ctx, q, key, pointsJSON, res.DistanceMeters, res.DurationSeconds); err != nil {
		return fmt.Errorf("upsert directions_cache: %w", err)
	}
	return nil
}
