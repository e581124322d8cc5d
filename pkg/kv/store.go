package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key or field is not found.
var ErrNotFound = errors.New("not found")

// ErrBackendUnavailable is returned when the backend storage is unreachable.
var ErrBackendUnavailable = errors.New("backend unavailable")

// Store defines the key-value operations the service relies on: string
// blobs with TTL, hashes, and lists. Implementations must treat an expired
// key exactly like a missing one.
type Store interface {
	// String operations
	Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	MGet(ctx context.Context, keys ...string) ([][]byte, error)

	// Key operations
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Hash operations
	HSet(ctx context.Context, key string, field string, value []byte) error
	HGet(ctx context.Context, key string, field string) ([]byte, error)
	HDel(ctx context.Context, key string, fields ...string) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// List operations
	LPush(ctx context.Context, key string, values ...[]byte) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	LRem(ctx context.Context, key string, count int64, value []byte) (int64, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	LLen(ctx context.Context, key string) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}

// LogFunc is a function type for structured logging inside this package.
type LogFunc func(msg string, fields ...any)

// NoTTL marks a key as persistent.
const NoTTL time.Duration = 0
