package salesforce

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/surveyops/booking-sync/pkg/logging"
)

// A TokenCache lets sessions outlive a single invocation. Caching is an
// optimization only: an idempotent write tolerates redundant re-authentication,
// so every implementation is free to miss.
type TokenCache interface {
	Get(ctx context.Context) (accessToken, instanceURL string, ok bool)
	Put(ctx context.Context, accessToken, instanceURL string)
	Invalidate(ctx context.Context)
}

// MemoryTokenCache keeps the session in process memory with a TTL.
type MemoryTokenCache struct {
	mu          sync.Mutex
	ttl         time.Duration
	accessToken string
	instanceURL string
	expiresAt   time.Time
	now         func() time.Time
}

func NewMemoryTokenCache(ttl time.Duration) *MemoryTokenCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryTokenCache{ttl: ttl, now: time.Now}
}

func (c *MemoryTokenCache) Get(_ context.Context) (string, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken == "" || c.now().After(c.expiresAt) {
		return "", "", false
	}
	return c.accessToken, c.instanceURL, true
}

func (c *MemoryTokenCache) Put(_ context.Context, accessToken, instanceURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
	c.instanceURL = instanceURL
	c.expiresAt = c.now().Add(c.ttl)
}

func (c *MemoryTokenCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.instanceURL = ""
}

const redisSessionKey = "salesforce:session"

// RedisTokenCache shares the session across instances. Failures degrade to a
// cache miss.
type RedisTokenCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewRedisTokenCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisTokenCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisTokenCache{client: client, ttl: ttl, logger: logger}
}

type cachedSession struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
}

func (c *RedisTokenCache) Get(ctx context.Context) (string, string, bool) {
	raw, err := c.client.Get(ctx, redisSessionKey).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("salesforce session cache read failed", "error", err)
		}
		return "", "", false
	}
	var sess cachedSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.AccessToken == "" {
		return "", "", false
	}
	return sess.AccessToken, sess.InstanceURL, true
}

func (c *RedisTokenCache) Put(ctx context.Context, accessToken, instanceURL string) {
	raw, err := json.Marshal(cachedSession{AccessToken: accessToken, InstanceURL: instanceURL})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, redisSessionKey, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("salesforce session cache write failed", "error", err)
	}
}

func (c *RedisTokenCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, redisSessionKey).Err(); err != nil {
		c.logger.Warn("salesforce session cache delete failed", "error", err)
	}
}
