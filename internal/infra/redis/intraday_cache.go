package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"market-chat-gateway/internal/domain/model"
	"market-chat-gateway/internal/infra/metrics"
	"market-chat-gateway/internal/realtime"
)

var _ realtime.Cache = (*IntradayCache)(nil)

// IntradayCache keeps the latest intraday snapshot per ticker for a TTL
// shorter than the polling interval, so reconnecting clients and
// multiple sessions watching the same instrument share one upstream
// fetch per cycle. Conversation history is never cached here.
type IntradayCache struct {
	client RedisClient
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewIntradayCache(client RedisClient, ttl time.Duration, logger *zerolog.Logger) *IntradayCache {
	l := logger.With().Str("component", "IntradayCache").Logger()
	return &IntradayCache{client: client, ttl: ttl, log: &l}
}

func key(ticker string) string { return "intraday:" + ticker }

// Get returns a cached snapshot and whether one was present. Cache
// failures degrade to a miss; the caller falls through to the upstream.
func (c *IntradayCache) Get(ctx context.Context, ticker string) (*model.IntradaySeries, bool) {
	data, err := c.client.Get(ctx, key(ticker))
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			metrics.CacheError("intraday")
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("cache get failed")
		} else {
			metrics.CacheMiss("intraday")
		}
		return nil, false
	}

	var s model.IntradaySeries
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		metrics.CacheError("intraday")
		return nil, false
	}
	metrics.CacheHit("intraday")
	return &s, true
}

// Store writes a snapshot with the configured TTL. Failures are logged
// and swallowed: the cache is an optimization, not a source of truth.
func (c *IntradayCache) Store(ctx context.Context, ticker string, s *model.IntradaySeries) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(ticker), data, c.ttl); err != nil {
		metrics.CacheError("intraday")
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("cache store failed")
	}
}
