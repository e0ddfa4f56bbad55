package datafeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fazecat/triggerdesk/Internal/types"
	"github.com/fazecat/triggerdesk/Internal/utils/config"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
)

// HistorySource provides bar history and live prices.
type HistorySource interface {
	History(ctx context.Context, ticker string, start, end time.Time) ([]types.Bar, error)
	LatestPrice(ctx context.Context, ticker string) float64
}

// BarCache keeps history responses in Redis. Live prices are never cached.
// Redis failures are logged and the request falls through to the source.
type BarCache struct {
	next      HistorySource
	client    *redis.Client
	ttl       time.Duration
	prefix    string
	timeframe string
	log       *logger.Logger
}

func NewBarCache(ctx context.Context, cfg config.RedisConfig, timeframe string, next HistorySource, log *logger.Logger) (*BarCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newBarCache(client, cfg.TTL, cfg.Prefix, timeframe, next, log), nil
}

func newBarCache(client *redis.Client, ttl time.Duration, prefix, timeframe string, next HistorySource, log *logger.Logger) *BarCache {
	return &BarCache{
		next:      next,
		client:    client,
		ttl:       ttl,
		prefix:    prefix,
		timeframe: timeframe,
		log:       log.With(logger.String("component", "bar_cache")),
	}
}

// key buckets start and end to the bar size so requests made within the same
// bar share an entry. Staleness is bounded by the TTL.
func (c *BarCache) key(ticker string, start, end time.Time) string {
	bucket := barBucket(c.timeframe)
	return fmt.Sprintf("%s:bars:%s:%s:%s:%s", c.prefix, strings.ToUpper(ticker), c.timeframe,
		start.UTC().Truncate(bucket).Format("20060102T1504"), end.UTC().Truncate(bucket).Format("20060102T1504"))
}

func barBucket(timeframe string) time.Duration {
	switch timeframe {
	case "1Min":
		return time.Minute
	case "5Min":
		return 5 * time.Minute
	case "15Min":
		return 15 * time.Minute
	case "1Hour":
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

func (c *BarCache) History(ctx context.Context, ticker string, start, end time.Time) ([]types.Bar, error) {
	key := c.key(ticker, start, end)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var bars []types.Bar
		if err := json.Unmarshal(data, &bars); err == nil {
			return bars, nil
		}
		c.log.Warn("dropping unreadable cache entry", logger.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("cache read failed", logger.String("key", key), logger.Error(err))
	}

	bars, err := c.next.History(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(bars); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Warn("cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return bars, nil
}

func (c *BarCache) LatestPrice(ctx context.Context, ticker string) float64 {
	return c.next.LatestPrice(ctx, ticker)
}

func (c *BarCache) Close() error {
	return c.client.Close()
}
