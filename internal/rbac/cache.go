package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "rbac:perm:version"
	// BumpChannel carries the new cache version after role permissions change.
	BumpChannel = "rbac.bump"
)

// Cache stores resolved role permission keys in Redis under a global version. Bumping the
// version invalidates every cached role at once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func roleKey(roleID string, version int64) string {
	return "rbac:role:" + roleID + ":perms:" + strconv.FormatInt(version, 10)
}

// Get returns cached permission keys for roleID and whether they were present.
func (c *Cache) Get(ctx context.Context, roleID string) ([]string, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return nil, false, err
	}
	payload, err := c.client.Get(ctx, roleKey(roleID, ver)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var keys []string
	if err := json.Unmarshal(payload, &keys); err != nil {
		return nil, false, err
	}
	return keys, true, nil
}

// Set stores permission keys for roleID under version, which must be read before the keys were
// loaded. Keys loaded across a Bump land under the old version and are never read.
func (c *Cache) Set(ctx context.Context, roleID string, version int64, keys []string) error {
	if !c.enabled() {
		return nil
	}
	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, roleKey(roleID, version), raw, c.ttl).Err()
}

// Bump invalidates every cached role by incrementing the version and publishing it.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// Subscribe calls fn with each published version until ctx is cancelled.
func (c *Cache) Subscribe(ctx context.Context, fn func(version int64)) error {
	if !c.enabled() {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, BumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
					fn(ver)
				}
			}
		}
	}()
	return nil
}
