package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	publishedPostsKey = "scripta:published_posts"
	defaultListTTL    = 5 * time.Minute
)

// PostListCache keeps a short-lived serialized snapshot of the published-post
// listing in Redis. All failures degrade to cache misses.
type PostListCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewPostListCache connects to Redis and verifies the connection.
func NewPostListCache(ctx context.Context, addr, password string, logger *zap.Logger) (*PostListCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostListCache{client: client, ttl: defaultListTTL, logger: logger}, nil
}

// Get returns the cached listing payload, or a miss.
func (c *PostListCache) Get(ctx context.Context) ([]byte, bool) {
	payload, err := c.client.Get(ctx, publishedPostsKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("post list cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return payload, true
}

// Set stores the listing payload with the configured TTL.
func (c *PostListCache) Set(ctx context.Context, payload []byte) {
	if err := c.client.Set(ctx, publishedPostsKey, payload, c.ttl).Err(); err != nil {
		c.logger.Debug("post list cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached listing after any post mutation.
func (c *PostListCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, publishedPostsKey).Err(); err != nil {
		c.logger.Debug("post list cache invalidation failed", zap.Error(err))
	}
}

// Close releases the underlying Redis connection.
func (c *PostListCache) Close() error {
	return c.client.Close()
}
