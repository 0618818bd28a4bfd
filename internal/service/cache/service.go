package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mirren/bunnymo-bridge-go/internal/domain"
	"github.com/mirren/bunnymo-bridge-go/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheService is a thin JSON-over-Redis cache. It holds only re-derivable
// data (the tag-library index); parsed characters are never written here.
type CacheService struct {
	client *redis.Client
	logger *zap.Logger
}

const tagIndexKeyPrefix = "bunnymo:taglib:"

type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func NewCacheService(cfg CacheConfig, logger *zap.Logger) (*CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.NewCacheError("failed to connect to Redis", "ping", "", err)
	}

	logger.Info("Redis connected",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.Int("db", cfg.DB),
	)

	return &CacheService{
		client: client,
		logger: logger,
	}, nil
}

func (c *CacheService) Get(ctx context.Context, key string, dest any) error {
	value, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // Key doesn't exist - not an error
	}
	if err != nil {
		c.logger.Error("Cache get failed", zap.String("key", key), zap.Error(err))
		return errors.NewCacheError("get failed", "get", key, err)
	}

	if dest != nil {
		if err := json.Unmarshal([]byte(value), dest); err != nil {
			c.logger.Error("Cache unmarshal failed", zap.String("key", key), zap.Error(err))
			return errors.NewCacheError("unmarshal failed", "get", key, err)
		}
	}

	return nil
}

func (c *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", key, err)
	}

	if err := c.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		c.logger.Error("Cache set failed", zap.String("key", key), zap.Error(err))
		return errors.NewCacheError("set failed", "set", key, err)
	}

	return nil
}

func (c *CacheService) Del(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Error("Cache delete failed", zap.String("key", key), zap.Error(err))
		return errors.NewCacheError("delete failed", "del", key, err)
	}
	return nil
}

func (c *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		c.logger.Error("Cache exists failed", zap.String("key", key), zap.Error(err))
		return false, errors.NewCacheError("exists failed", "exists", key, err)
	}
	return count > 0, nil
}

func (c *CacheService) Close() error {
	if err := c.client.Close(); err != nil {
		c.logger.Error("Failed to close Redis connection", zap.Error(err))
		return err
	}
	c.logger.Info("Redis disconnected")
	return nil
}

func (c *CacheService) IsConnected(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}

// GetTagIndex returns the cached tag-library index for one lorebook, or
// (nil, false) on miss. Misses and errors look the same to the caller; the
// scanner simply rebuilds.
func (c *CacheService) GetTagIndex(ctx context.Context, lorebook string) (map[string][]domain.TagDefinition, bool) {
	key := tagIndexKeyPrefix + lorebook

	var index map[string][]domain.TagDefinition
	if err := c.Get(ctx, key, &index); err != nil {
		c.logger.Debug("Tag index cache miss or error", zap.String("lorebook", lorebook))
		return nil, false
	}
	if index == nil {
		return nil, false
	}
	return index, true
}

// SetTagIndex caches the tag-library index for one lorebook.
func (c *CacheService) SetTagIndex(ctx context.Context, lorebook string, index map[string][]domain.TagDefinition, ttl time.Duration) {
	key := tagIndexKeyPrefix + lorebook
	if err := c.Set(ctx, key, index, ttl); err != nil {
		c.logger.Error("Failed to cache tag index", zap.String("lorebook", lorebook), zap.Error(err))
	}
}

// InvalidateTagIndex drops the cached index for one lorebook, forcing a
// rebuild on the next scan.
func (c *CacheService) InvalidateTagIndex(ctx context.Context, lorebook string) {
	if err := c.Del(ctx, tagIndexKeyPrefix+lorebook); err != nil {
		c.logger.Error("Failed to invalidate tag index", zap.String("lorebook", lorebook), zap.Error(err))
	}
}
