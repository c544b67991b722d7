package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSubstrate stores each record as a plain redis string without expiry.
type RedisSubstrate struct {
	client *redis.Client
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisSubstrate(ctx context.Context, opts RedisOptions) (*RedisSubstrate, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisSubstrate{client: client}, nil
}

func (s *RedisSubstrate) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get record %q: %w", key, err)
	}
	return v, nil
}

func (s *RedisSubstrate) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set record %q: %w", key, err)
	}
	return nil
}

func (s *RedisSubstrate) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete record %q: %w", key, err)
	}
	return nil
}

func (s *RedisSubstrate) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSubstrate) Close() error {
	return s.client.Close()
}
