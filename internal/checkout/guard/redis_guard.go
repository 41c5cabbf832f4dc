package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the caller's
// token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares the in-flight lock between service instances.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func lockKey(cartID string) string {
	return "checkout:lock:" + cartID
}

func (g *RedisGuard) Acquire(ctx context.Context, cartID string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, lockKey(cartID), token, g.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis acquire checkout lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (g *RedisGuard) IsCurrent(ctx context.Context, cartID, token string) (bool, error) {
	current, err := g.client.Get(ctx, lockKey(cartID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis read checkout lock: %w", err)
	}
	return current == token, nil
}

func (g *RedisGuard) Release(ctx context.Context, cartID, token string) error {
	if err := releaseScript.Run(ctx, g.client, []string{lockKey(cartID)}, token).Err(); err != nil {
		return fmt.Errorf("redis release checkout lock: %w", err)
	}
	return nil
}

func (g *RedisGuard) Invalidate(ctx context.Context, cartID string) error {
	if err := g.client.Del(ctx, lockKey(cartID)).Err(); err != nil {
		return fmt.Errorf("redis invalidate checkout lock: %w", err)
	}
	return nil
}
