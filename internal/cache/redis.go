// Package cache keeps serialized match responses in Redis, keyed by the
// MD5 of the request that produced them.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/2chong/Change-Detection/internal/config"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{
		client: client,
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
		logger: logger,
	}
}

func (s *RedisCache) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get returns the cached payload. A miss is (nil, false, nil).
func (s *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *RedisCache) Set(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to cache result", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (s *RedisCache) Close() error {
	return s.client.Close()
}

// Key derives a cache key from a namespace and the raw request body.
func Key(namespace string, body []byte) string {
	sum := md5.Sum(body)
	return namespace + ":" + hex.EncodeToString(sum[:])
}
