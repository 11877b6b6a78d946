package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the vault in a Redis instance. Values never expire;
// the gateway owns eviction and cleanup policy.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

type RedisStoreConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis store: %w", err)
	}

	return &RedisStore{client: client, timeout: cfg.Timeout}, nil
}

func (s *RedisStore) Get(key string) (string, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	value, err := s.client.Get(ctx, key).Result()

	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}

	return value, nil
}

func (s *RedisStore) Set(key, value string) error {
	ctx, cancel := s.opContext()
	defer cancel()

	err := s.client.Set(ctx, key, value, 0).Err()

	// Redis reports maxmemory exhaustion as an OOM command rejection.
	if err != nil && strings.HasPrefix(err.Error(), "OOM") {
		return ErrQuotaExceeded
	}

	return err
}

func (s *RedisStore) Remove(key string) error {
	ctx, cancel := s.opContext()
	defer cancel()

	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Keys(prefix string) ([]string, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	keys := []string{}
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	return keys, iter.Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}
