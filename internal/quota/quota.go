// Package quota enforces the daily animation-start allowance behind the
// rate-limit predicate that Play awaits. The counter lives in Redis so the
// allowance survives restarts and is shared across replicas.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"route-animator/internal/anim"
)

const keyPrefix = "anim:starts:"

// Limiter counts animation starts per caller per UTC day. A nil Limiter
// allows everything, which keeps the predicate optional in deployments
// without Redis.
type Limiter struct {
	rdb    *redis.Client
	limit  int64
	logger *slog.Logger
	now    func() time.Time
}

func New(addr, password string, db int, limit int64, logger *slog.Logger) (*Limiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Limiter{
		rdb:    client,
		limit:  limit,
		logger: logger.With("component", "quota"),
		now:    time.Now,
	}, nil
}

func (l *Limiter) Close() error {
	if l == nil {
		return nil
	}
	return l.rdb.Close()
}

// Allow consumes one animation start for the caller. The per-day key expires
// on its own, so stale counters never accumulate.
func (l *Limiter) Allow(ctx context.Context, caller string) (bool, error) {
	if l == nil || l.limit <= 0 {
		return true, nil
	}
	key := fmt.Sprintf("%s%s:%s", keyPrefix, caller, l.now().UTC().Format("2006-01-02"))

	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("quota incr: %w", err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, key, 24*time.Hour).Err(); err != nil {
			l.logger.Warn("quota key expire failed", "key", key, "error", err)
		}
	}
	if n > l.limit {
		l.logger.Info("animation start denied", "caller", caller, "count", n, "limit", l.limit)
		return false, nil
	}
	return true, nil
}

// Predicate adapts the limiter to the start-check contract the animation
// loop awaits before playing.
func (l *Limiter) Predicate(caller string) anim.StartCheck {
	return func(ctx context.Context) (bool, error) {
		return l.Allow(ctx, caller)
	}
}

type callerKey struct{}

// WithCaller tags a context with the caller identity consumed by Check.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the tagged caller identity, or "anonymous".
func CallerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(callerKey{}).(string); ok && v != "" {
		return v
	}
	return "anonymous"
}

// Check is the start predicate wired into the animation manager. The caller
// identity travels in the context so one predicate serves every session.
func (l *Limiter) Check(ctx context.Context) (bool, error) {
	return l.Allow(ctx, CallerFromContext(ctx))
}
