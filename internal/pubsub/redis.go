// Package pubsub publishes PriceTick updates to the "prices" channel and
// maintains a per-listing price_history sorted set, backed by Redis.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

const (
	pricesChannel    = "prices"
	historyKeyPrefix = "price_history:"
	historyRetention = 24 * time.Hour
)

// Publisher publishes price ticks and appends history entries.
type Publisher struct {
	client  *redis.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewPublisher creates a publisher. limiterPerSecond bounds the publish
// rate so a pathological cycle (thousands of changed listings) cannot
// flood subscribers; callers should size it generously above expected
// steady-state throughput and treat throttling as a back-pressure
// signal, not a correctness mechanism.
func NewPublisher(client *redis.Client, limiterPerSecond float64, logger zerolog.Logger) *Publisher {
	return &Publisher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(limiterPerSecond), int(limiterPerSecond)+1),
		log:     logger.With().Str("component", "pubsub").Logger(),
	}
}

// PublishTick publishes a PriceTick to the "prices" channel. History
// persistence (appendHistory) has different failure semantics per
// spec.md section 4.4 step 5: it is non-critical, so a history-append
// failure is logged and swallowed here rather than returned, and never
// masks or is masked by a publish failure.
func (p *Publisher) PublishTick(ctx context.Context, tick types.PriceTick, historyEntry types.HistoryEntry) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("publish rate limiter: %w", err)
	}

	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to marshal price tick: %w", err)
	}

	if err := p.client.Publish(ctx, pricesChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish price tick: %w", err)
	}

	if err := p.appendHistory(ctx, tick.Slug, historyEntry); err != nil {
		p.log.Warn().Err(err).Str("slug", tick.Slug).Msg("failed to append price history, continuing")
	}

	return nil
}

// appendHistory adds historyEntry to the listing's sorted set, scored by
// millisecond timestamp, and trims entries older than historyRetention.
func (p *Publisher) appendHistory(ctx context.Context, slug string, entry types.HistoryEntry) error {
	key := historyKeyPrefix + slug

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(entry.Timestamp), Member: payload})
	cutoff := float64(time.Now().Add(-historyRetention).UnixMilli())
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%f", cutoff))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

// History returns the stored history entries for a listing, oldest
// first.
func (p *Publisher) History(ctx context.Context, slug string) ([]types.HistoryEntry, error) {
	key := historyKeyPrefix + slug
	raw, err := p.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load price history: %w", err)
	}

	entries := make([]types.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry types.HistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
