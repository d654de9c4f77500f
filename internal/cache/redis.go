// Package cache holds session view caches. Both implementations invalidate by
// bumping a generation counter, so a single write drops every cached view.
package cache

import (
	"alcyxob/trainer-schedule/internal/config"
	"alcyxob/trainer-schedule/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	generationKey = "session_view:gen"
	viewKeyFormat = "session_view:%d:%s"

	dialTimeout = 5 * time.Second
	opTimeout   = 500 * time.Millisecond
)

// ErrCacheConnection is returned when Redis cannot be reached at startup.
var ErrCacheConnection = errors.New("cache: connection failed")

// RedisViewCache stores session views in Redis as JSON. Redis errors are
// logged and treated as misses; the cache never fails a request.
type RedisViewCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisViewCache connects to Redis and verifies the connection.
func NewRedisViewCache(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*RedisViewCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Connected to Redis", slog.String("addr", cfg.Addr), slog.Duration("ttl", cfg.TTL))
	return &RedisViewCache{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

func (c *RedisViewCache) key(generation int64, id string) string {
	return c.prefix + fmt.Sprintf(viewKeyFormat, generation, id)
}

func (c *RedisViewCache) generation(ctx context.Context) (int64, error) {
	raw, err := c.client.Get(ctx, c.prefix+generationKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (c *RedisViewCache) Get(ctx context.Context, id string) (*domain.SessionView, int64, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	generation, err := c.generation(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "view cache generation read failed", slog.Any("error", err))
		// -1 never matches a stored generation, so the rebuilt view is not cached.
		return nil, -1, false
	}

	data, err := c.client.Get(ctx, c.key(generation, id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "view cache read failed", slog.String("key", id), slog.Any("error", err))
		}
		return nil, generation, false
	}

	var view domain.SessionView
	if err := json.Unmarshal(data, &view); err != nil {
		c.logger.WarnContext(ctx, "view cache entry corrupt", slog.String("key", id), slog.Any("error", err))
		return nil, generation, false
	}
	return &view, generation, true
}

func (c *RedisViewCache) Set(ctx context.Context, id string, generation int64, view *domain.SessionView) {
	if view == nil || generation < 0 {
		return
	}
	data, err := json.Marshal(view)
	if err != nil {
		c.logger.WarnContext(ctx, "view cache encode failed", slog.String("key", id), slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.client.Set(ctx, c.key(generation, id), data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "view cache write failed", slog.String("key", id), slog.Any("error", err))
	}
}

// Invalidate bumps the generation. Entries of older generations expire on their TTL.
func (c *RedisViewCache) Invalidate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.client.Incr(ctx, c.prefix+generationKey).Err(); err != nil {
		// Stale views may be served until their TTL runs out.
		c.logger.ErrorContext(ctx, "view cache invalidation failed", slog.Any("error", err))
	}
}

func (c *RedisViewCache) Close() error {
	return c.client.Close()
}
