package cache

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a rendered response lives in Redis
const DefaultTTL = 10 * time.Minute

const keyPrefix = "iplstats"

// RedisCache stores rendered query responses keyed by dataset fingerprint
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisCacheFromClient(client, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// TTL returns the expiry applied to stored responses
func (rc *RedisCache) TTL() time.Duration {
	return rc.ttl
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Get returns the cached body for key. A miss is reported as ok=false with a nil error.
func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// Set stores body under key with the cache TTL
func (rc *RedisCache) Set(ctx context.Context, key string, body []byte) error {
	return rc.client.Set(ctx, key, body, rc.ttl).Err()
}

// Delete removes keys
func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return rc.client.Del(ctx, keys...).Err()
}

// Key builds the cache key for a response. The dataset fingerprint is part of the
// key, so a reloaded dataset never hits an entry rendered from the old one.
// Query parameters are encoded in sorted order with surrounding space trimmed.
func Key(fingerprint, route string, query url.Values) string {
	canonical := make(url.Values, len(query))
	for name, values := range query {
		for _, v := range values {
			canonical.Add(name, strings.TrimSpace(v))
		}
	}
	return keyPrefix + ":" + fingerprint + ":" + route + ":" + canonical.Encode()
}
