// Package storage provides the key-value backends that hold console state.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by Get when a key has no value
var ErrNotFound = errors.New("key not found")

// KV is the persistence interface injected into the history store and the API key cache
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendBadger   = "badger"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend
type Options struct {
	Backend     string
	Dir         string // file and badger backends
	Redis       RedisConfig
	DatabaseURL string
}

// Open creates the KV backend named by opts.Backend.
// An empty backend defaults to the file backend when Dir is set, else memory.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (KV, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendMemory
		if opts.Dir != "" {
			backend = BackendFile
		}
	}

	switch backend {
	case BackendMemory:
		return NewMemoryKV(), nil
	case BackendFile:
		if opts.Dir == "" {
			return nil, fmt.Errorf("file backend requires a directory")
		}
		return NewFileKV(opts.Dir)
	case BackendBadger:
		return OpenBadgerKV(opts.Dir)
	case BackendRedis:
		return NewRedisKV(ctx, opts.Redis, logger)
	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres backend requires a database URL")
		}
		return OpenPostgresKV(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, file, badger, redis, postgres)", backend)
	}
}
