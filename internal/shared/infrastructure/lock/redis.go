// Package lock provides short-lived exclusive leases keyed by string.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every lease key in Redis.
const KeyPrefix = "subpro:lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lease taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker takes leases with SET NX PX.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a new RedisLocker.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// TryLock acquires key for ttl without blocking. ok is false when another
// holder has it.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	fullKey := KeyPrefix + key
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("release lease %s: %w", key, err)
		}
		return nil
	}
	return unlock, true, nil
}
