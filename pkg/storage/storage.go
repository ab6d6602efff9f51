// Package storage provides key/value blob stores with local filesystem, SQLite,
// Redis and in-memory implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no blob is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// BlobStore defines the interface for blob persistence operations
type BlobStore interface {
	// Get returns the blob stored under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores blob under key, replacing any previous value
	Set(ctx context.Context, key string, blob []byte) error

	// Remove deletes key; removing an absent key is not an error
	Remove(ctx context.Context, key string) error

	// Close releases the backend's resources
	Close() error
}

// StorageType identifies the storage backend
type StorageType string

const (
	StorageTypeLocal  StorageType = "local"
	StorageTypeSQLite StorageType = "sqlite"
	StorageTypeRedis  StorageType = "redis"
	StorageTypeMemory StorageType = "memory"
)

// Config holds storage configuration
type Config struct {
	Type StorageType

	// Local storage config
	LocalPath string

	// SQLite storage config
	SQLitePath string

	// Redis storage config
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string
}

// New creates a new BlobStore implementation based on configuration
func New(ctx context.Context, cfg *Config) (BlobStore, error) {
	switch cfg.Type {
	case StorageTypeSQLite:
		return NewSQLiteStorage(ctx, cfg.SQLitePath)
	case StorageTypeRedis:
		return NewRedisStorage(ctx, cfg)
	case StorageTypeMemory:
		return NewMemoryStorage(), nil
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
