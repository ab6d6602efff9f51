package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisNamespace = "radar"

// RedisStorage implements BlobStore with Redis strings.
// Keys are namespaced: {namespace}:{key}
type RedisStorage struct {
	client    *redis.Client
	namespace string
}

// NewRedisStorage connects to Redis and verifies the connection
func NewRedisStorage(ctx context.Context, cfg *Config) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	return NewRedisStorageFromClient(client, cfg.RedisNamespace), nil
}

// NewRedisStorageFromClient wraps an existing client
func NewRedisStorageFromClient(client *redis.Client, namespace string) *RedisStorage {
	if namespace == "" {
		namespace = defaultRedisNamespace
	}
	return &RedisStorage{client: client, namespace: namespace}
}

func (s *RedisStorage) namespaceKey(key string) string {
	return fmt.Sprintf("%s:%s", s.namespace, key)
}

// Get retrieves a value by key.
func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.namespaceKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// Set stores a value without expiration.
func (s *RedisStorage) Set(ctx context.Context, key string, blob []byte) error {
	if err := s.client.Set(ctx, s.namespaceKey(key), blob, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Remove deletes a value by key.
func (s *RedisStorage) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.namespaceKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to remove key %s: %w", key, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
