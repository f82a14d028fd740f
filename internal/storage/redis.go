package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps snapshots as Redis strings with a TTL. A set per product
// tracks which snapshot keys hold it.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStorage creates a Redis backed store. ttl <= 0 disables expiry.
func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStorage{client: client, ttl: ttl}
}

func productSetKey(productID string) string {
	return fmt.Sprintf("cart-products:%s", productID)
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	ids, _ := productIDs(value)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, value, s.ttl)
	for _, id := range ids {
		setKey := productSetKey(id)
		pipe.SAdd(ctx, setKey, key)
		if s.ttl > 0 {
			pipe.Expire(ctx, setKey, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// KeysWithProduct returns live snapshot keys indexed under the product.
// Members whose snapshot expired or no longer holds the product are pruned.
func (s *RedisStorage) KeysWithProduct(ctx context.Context, productID string) ([]string, error) {
	setKey := productSetKey(productID)
	members, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", setKey, err)
	}

	keys := make([]string, 0, len(members))
	for _, member := range members {
		data, err := s.Get(ctx, member)
		if errors.Is(err, ErrNotFound) {
			s.client.SRem(ctx, setKey, member)
			continue
		}
		if err != nil {
			return nil, err
		}
		ids, err := productIDs(data)
		if err != nil || !containsID(ids, productID) {
			s.client.SRem(ctx, setKey, member)
			continue
		}
		keys = append(keys, member)
	}
	return keys, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
