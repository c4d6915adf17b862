package blocklist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dpavlenko/stayhub/internal/logging"
)

const blockedUserPrefix = "blocked:user:"

// RedisBlocklist stores blocked user ids as TTL-bound redis keys.
type RedisBlocklist struct {
	client *redis.Client
	logger logging.Logger
}

// NewRedisBlocklist connects to redis and verifies the connection.
func NewRedisBlocklist(addr, password string, db int, l logging.Logger) (*RedisBlocklist, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBlocklist{client: client, logger: l.With("module", "blocklist")}, nil
}

func (b *RedisBlocklist) MarkBlocked(ctx context.Context, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := blockedUserPrefix + userID
	if err := b.client.Set(ctx, key, "blocked", ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark user blocked: %w", err)
	}
	b.logger.Info(ctx, "user marked blocked", "user_id", userID, "ttl", ttl.String())
	return nil
}

func (b *RedisBlocklist) IsBlocked(ctx context.Context, userID string) (bool, error) {
	n, err := b.client.Exists(ctx, blockedUserPrefix+userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blocklist: %w", err)
	}
	return n > 0, nil
}

// Close releases the underlying redis connection.
func (b *RedisBlocklist) Close() error {
	return b.client.Close()
}
