/*
Package cache keeps recently computed report series in Redis.

PURPOSE:
  Dashboards poll the same monthly and daily series over and over. The
  cache serves them from Redis for a short TTL instead of re-reading the
  ledger each time.

KEYS:
  report:monthly:{n}          monthly series for n months
  report:daily:{from}:{to}    daily series for a normalized range
  report:generation           bumped on every purchase creation

FRESHNESS:
  Every cached series records the generation it was computed under. A read
  whose stored generation differs from the current one is a miss, so a
  series cached before a write is never served after that write returns.

FAILURE MODE:
  Redis errors are logged and the series is computed from the ledger.
  A nil *Reports is a valid, disabled cache.
*/
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/backoffice/generic"
	"github.com/warp/backoffice/ledger"
	"github.com/warp/backoffice/logging"
)

const (
	KeyMonthly    = "report:monthly:%d"
	KeyDaily      = "report:daily:%s:%s"
	KeyGeneration = "report:generation"

	DefaultTTL = 30 * time.Second
)

// Reports caches report series.
type Reports struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewClient opens a Redis client for addr.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// New wraps rdb. ttl <= 0 means DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration, logger *logging.Logger) *Reports {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reports{rdb: rdb, ttl: ttl, logger: logger}
}

type entry[T any] struct {
	Generation int64 `json:"generation"`
	Rows       []T   `json:"rows"`
}

// Monthly returns the cached monthly series for n months, or computes it
// with load and caches the result. n must already be clamped.
func (r *Reports) Monthly(ctx context.Context, n int, load func() ([]ledger.MonthlyTotal, error)) ([]ledger.MonthlyTotal, error) {
	if r == nil {
		return load()
	}
	return getOrLoad(ctx, r, fmt.Sprintf(KeyMonthly, n), load)
}

// Daily is Monthly for the daily series over a normalized period.
func (r *Reports) Daily(ctx context.Context, period generic.Period, load func() ([]ledger.DailyTotal, error)) ([]ledger.DailyTotal, error) {
	if r == nil {
		return load()
	}
	return getOrLoad(ctx, r, fmt.Sprintf(KeyDaily, period.Start, period.End), load)
}

// Invalidate makes every cached series stale.
func (r *Reports) Invalidate(ctx context.Context) {
	if r == nil {
		return
	}
	if err := r.rdb.Incr(ctx, KeyGeneration).Err(); err != nil {
		r.logger.WarnContext(ctx, "report cache invalidation failed", logging.FieldError, err)
	}
}

// Ping checks Redis is reachable.
func (r *Reports) Ping(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.rdb.Ping(ctx).Err()
}

func (r *Reports) generation(ctx context.Context) (int64, error) {
	gen, err := r.rdb.Get(ctx, KeyGeneration).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func getOrLoad[T any](ctx context.Context, r *Reports, key string, load func() ([]T, error)) ([]T, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "report cache unavailable", "key", key, logging.FieldError, err)
		return load()
	}

	raw, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var e entry[T]
		if jsonErr := json.Unmarshal(raw, &e); jsonErr == nil && e.Generation == gen {
			return e.Rows, nil
		}
	case !errors.Is(err, redis.Nil):
		r.logger.WarnContext(ctx, "report cache read failed", "key", key, logging.FieldError, err)
	}

	rows, err := load()
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(entry[T]{Generation: gen, Rows: rows})
	if err == nil {
		err = r.rdb.Set(ctx, key, b, r.ttl).Err()
	}
	if err != nil {
		r.logger.WarnContext(ctx, "report cache write failed", "key", key, logging.FieldError, err)
	}
	return rows, nil
}
