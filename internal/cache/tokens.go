// Package cache keeps issued join tokens so a participant who asks again
// while the previous token is still valid gets the same credential.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"telehealth-server/pkg/logging"
)

var tracer = otel.Tracer("telehealth-server/internal/cache")

// TokenCache stores one join token per (appointment, participant).
type TokenCache interface {
	Get(ctx context.Context, appointmentID, userID string) (string, bool)
	Put(ctx context.Context, appointmentID, userID, token string, ttl time.Duration)
}

// RedisTokenCache is a TokenCache on Redis. Redis failures are logged and
// treated as a miss; token issuance never depends on the cache.
type RedisTokenCache struct {
	redis  *redis.Client
	logger *logging.Logger
	prefix string
}

// NewRedisTokenCache creates a Redis-backed token cache.
func NewRedisTokenCache(client *redis.Client, logger *logging.Logger) *RedisTokenCache {
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisTokenCache{redis: client, logger: logger, prefix: "video:token"}
}

func (c *RedisTokenCache) key(appointmentID, userID string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, appointmentID, userID)
}

func (c *RedisTokenCache) Get(ctx context.Context, appointmentID, userID string) (string, bool) {
	ctx, span := tracer.Start(ctx, "token_cache.get")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", appointmentID))

	token, err := c.redis.Get(ctx, c.key(appointmentID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.logger.Error("token cache read failed", "error", err, "appointment_id", appointmentID)
		return "", false
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return token, true
}

func (c *RedisTokenCache) Put(ctx context.Context, appointmentID, userID, token string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ctx, span := tracer.Start(ctx, "token_cache.put")
	defer span.End()

	if err := c.redis.Set(ctx, c.key(appointmentID, userID), token, ttl).Err(); err != nil {
		c.logger.Error("token cache write failed", "error", err, "appointment_id", appointmentID)
	}
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string, string) (string, bool)         { return "", false }
func (Noop) Put(context.Context, string, string, string, time.Duration) {}

var (
	_ TokenCache = (*RedisTokenCache)(nil)
	_ TokenCache = Noop{}
)
