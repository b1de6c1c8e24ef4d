package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

// Cache is a write-through, read-through decorator over a durable
// availability store: reads consult Redis first, falling back to the
// underlying store (and populating the cache) on a miss; writes go to both.
type Cache struct {
	domain.Store
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache wraps inner's availability methods with a Redis read-through
// cache. All other domain.Store methods are forwarded to inner unchanged.
func NewCache(inner domain.Store, client *Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{Store: inner, rdb: client.Underlying(), ttl: ttl, logger: logger}
}

func cacheKey(figi domain.Figi, day time.Time) string {
	return "candlerunner:avail:" + string(figi) + ":" + day.UTC().Format(time.RFC3339)
}

func (c *Cache) WriteCandleDataAvailability(ctx context.Context, figi domain.Figi, day time.Time, avail domain.DataAvailability) error {
	if err := c.Store.WriteCandleDataAvailability(ctx, figi, day, avail); err != nil {
		return err
	}

	payload, err := json.Marshal(avail)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, cacheKey(figi, day), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("availability cache write failed", "figi", figi, "day", day, "error", err)
	}
	return nil
}

func (c *Cache) ReadCandleDataAvailability(ctx context.Context, figi domain.Figi, day time.Time) (domain.DataAvailability, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(figi, day)).Bytes()
	if err == nil {
		var avail domain.DataAvailability
		if jsonErr := json.Unmarshal(raw, &avail); jsonErr == nil {
			return avail, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("availability cache read failed", "figi", figi, "day", day, "error", err)
	}

	avail, err := c.Store.ReadCandleDataAvailability(ctx, figi, day)
	if err != nil {
		return domain.DataAvailability{}, err
	}

	if payload, marshalErr := json.Marshal(avail); marshalErr == nil {
		if setErr := c.rdb.Set(ctx, cacheKey(figi, day), payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("availability cache populate failed", "figi", figi, "day", day, "error", setErr)
		}
	}

	return avail, nil
}
