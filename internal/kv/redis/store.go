package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storesync/internal/kv"
)

const keyPrefix = "storesync:"

// Store backs the key space with Redis, for hosts that already run
// one and want the sidecar's state shared across restarts.
type Store struct {
	client *redis.Client
}

func NewStore(addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Get(key string) (string, error) {
	v, err := s.client.Get(context.Background(), keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", kv.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (s *Store) Set(key, value string) error {
	return s.client.Set(context.Background(), keyPrefix+key, value, 0).Err()
}

func (s *Store) Delete(key string) error {
	return s.client.Del(context.Background(), keyPrefix+key).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
