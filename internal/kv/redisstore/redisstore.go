// Package redisstore backs kv.Store with redis, matching how the original
// deployment keeps captcha and session state: SET with EX, INCR preserving
// the key's TTL, native expiry.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/14kear/voteGateBot/internal/kv"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	const op = "kv.redisstore.New"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	const op = "kv.redisstore.Set"

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	const op = "kv.redisstore.Get"

	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", kv.ErrNotFound
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	const op = "kv.redisstore.Incr"

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	const op = "kv.redisstore.Delete"

	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
