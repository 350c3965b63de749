// Package cache provides a read-through Redis cache for composed day
// views. The cache is strictly an accelerator: every failure degrades
// to a direct read and is logged, never surfaced.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/models"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/logging"
)

const defaultTTL = 5 * time.Minute

// DayViewCache caches one serialized day view per day key.
type DayViewCache struct {
	client *goredis.Client
	logger logging.Logger
	ttl    time.Duration
}

// NewDayViewCache creates a cache over the given client. A nil client
// yields a disabled cache that misses on every read.
func NewDayViewCache(client *goredis.Client, logger logging.Logger) *DayViewCache {
	return &DayViewCache{client: client, logger: logger, ttl: defaultTTL}
}

func dayViewKey(dayKey string) string {
	return fmt.Sprintf("almanac:dayview:%s", dayKey)
}

// Get returns the cached view for a day, or nil on miss.
func (c *DayViewCache) Get(ctx context.Context, dayKey string) *models.DayView {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, dayViewKey(dayKey)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		c.logger.WithError(err).WithField("day_key", dayKey).Warn("Day view cache read failed")
		return nil
	}
	var view models.DayView
	if err := json.Unmarshal(raw, &view); err != nil {
		c.logger.WithError(err).WithField("day_key", dayKey).Warn("Day view cache entry corrupt; dropping")
		c.Invalidate(ctx, dayKey)
		return nil
	}
	return &view
}

// Set stores the composed view for a day.
func (c *DayViewCache) Set(ctx context.Context, dayKey string, view *models.DayView) {
	if c == nil || c.client == nil || view == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		c.logger.WithError(err).WithField("day_key", dayKey).Warn("Day view cache encode failed")
		return
	}
	if err := c.client.Set(ctx, dayViewKey(dayKey), raw, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("day_key", dayKey).Warn("Day view cache write failed")
	}
}

// Invalidate drops the cached view for a day. Called after any upsert
// touches the day.
func (c *DayViewCache) Invalidate(ctx context.Context, dayKey string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, dayViewKey(dayKey)).Err(); err != nil {
		c.logger.WithError(err).WithField("day_key", dayKey).Warn("Day view cache invalidation failed")
	}
}
