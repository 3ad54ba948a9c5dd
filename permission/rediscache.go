package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheUnavailable wraps Redis transport failures so callers can
// distinguish backend outage from a decision.
var ErrCacheUnavailable = errors.New("permission cache unavailable")

// Invalidation deletes the per-pair registry set and every decision key it
// tracks in one atomic step, so a concurrent Check cannot observe a
// half-cleared pair.
const invalidateScript = `
local members = redis.call("SMEMBERS", KEYS[1])
redis.call("DEL", KEYS[1])
local removed = 0
for i = 1, #members do
  removed = removed + redis.call("DEL", members[i])
end
return removed
`

var invalidateLua = redis.NewScript(invalidateScript)

// RedisCache is a Cache backed by Redis. Each decision lives under its own
// key perm:{user}:{org}:{code} with a TTL, and a per-pair set
// permidx:{user}:{org} tracks the decision keys so invalidation is exact.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache returns a RedisCache over the given client.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func decisionKey(userID, orgID, code string) string {
	return "perm:" + userID + ":" + orgID + ":" + code
}

func registryKey(userID, orgID string) string {
	return "permidx:" + userID + ":" + orgID
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, userID, orgID, code string) (bool, bool, error) {
	val, err := c.client.Get(ctx, decisionKey(userID, orgID, code)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return val == "1", true, nil
}

// Set implements Cache. The registry entry carries a slightly longer TTL than
// the decision key so it never expires first and orphans a live decision.
func (c *RedisCache) Set(ctx context.Context, userID, orgID, code string, decision bool, ttl time.Duration) error {
	key := decisionKey(userID, orgID, code)
	registry := registryKey(userID, orgID)

	val := "0"
	if decision {
		val = "1"
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, val, ttl)
	pipe.SAdd(ctx, registry, key)
	pipe.Expire(ctx, registry, ttl+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Invalidate implements Cache.
func (c *RedisCache) Invalidate(ctx context.Context, userID, orgID string) error {
	err := invalidateLua.Run(ctx, c.client, []string{registryKey(userID, orgID)}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
