package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClaimer реализует Claimer используя Redis SETNX с TTL.
// В отличие от MemoryClaimer переживает рестарт процесса и работает
// при нескольких инстансах сервиса
type RedisClaimer struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRedisClaimer создаёт новый Redis claimer с указанным TTL
func NewRedisClaimer(client *redis.Client, logger *zap.Logger, ttl time.Duration) *RedisClaimer {
	return &RedisClaimer{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func claimKey(key string) string {
	return fmt.Sprintf("webhook:claim:%s", key)
}

// Claim захватывает ключ атомарно через SETNX. TTL снимает захват сам,
// ленивой очистки не требуется
func (c *RedisClaimer) Claim(ctx context.Context, key string) (bool, error) {
	claimed, err := c.client.SetNX(ctx, claimKey(key), time.Now().UTC().Format(time.RFC3339), c.ttl).Result()
	if err != nil {
		c.logger.Error("failed to claim webhook key in redis",
			zap.Error(err),
			zap.String("key", key),
		)
		return false, fmt.Errorf("failed to claim webhook key: %w", err)
	}

	return claimed, nil
}

// Release снимает захват ключа
func (c *RedisClaimer) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, claimKey(key)).Err(); err != nil {
		c.logger.Error("failed to release webhook key in redis",
			zap.Error(err),
			zap.String("key", key),
		)
		return fmt.Errorf("failed to release webhook key: %w", err)
	}

	return nil
}
