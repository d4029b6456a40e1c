package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper is a Redis SetNX once-guard. The dispatch pipeline uses it to drop
// an overlapping cron tick before it even reaches the claim.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}
}

// AcquireOnce returns true the first time (scope, key) is seen within the TTL
// and false for duplicates. Fails open when Redis is unavailable: the atomic
// claim downstream still prevents double processing.
func (d *Deduper) AcquireOnce(ctx context.Context, scope, key string) bool {
	redisKey := fmt.Sprintf("dedup:%s:%s", scope, key)

	ok, err := d.rdb.SetNX(ctx, redisKey, 1, d.ttl).Result()
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("Redis dedup check failed, allowing processing",
				zap.String("scope", scope),
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && d.logger != nil {
		d.logger.Info("Skipped duplicate invocation",
			zap.String("scope", scope),
			zap.String("key", key),
		)
	}
	return ok
}
