package redis

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/socialpulse/socialpulse-backend/pkg/kv"
)

// Store is a Redis-backed implementation of the kv.Store interface.
type Store struct {
	client *redis.Client
}

// New creates a Redis-backed store and verifies the connection. addr accepts
// either a redis:// URL or a plain host:port.
func New(addr string) (*Store, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		u, parseErr := url.Parse("redis://" + addr)
		if parseErr != nil {
			return nil, err
		}
		opt = &redis.Options{Addr: u.Host}
		if u.User != nil {
			if password, ok := u.User.Password(); ok {
				opt.Password = password
			}
		}
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &Store{client: client}, nil
}

// NewFromClient wraps an existing client, used by tests.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// IsConnectionError reports whether err is a network-level failure that
// should trigger failover. redis.Nil and caller cancellation are not.
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"connection closed",
		"i/o timeout",
		"eof",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func (s *Store) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return kv.ErrNotFound
	}
	if IsConnectionError(err) {
		return errors.Join(kv.ErrBackendUnavailable, err)
	}
	return err
}

// String operations

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	var expiration time.Duration
	if len(ttl) > 0 && ttl[0] > 0 {
		expiration = ttl[0]
	}
	return s.wrapErr(s.client.Set(ctx, key, value, expiration).Err())
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, s.wrapErr(err)
	}
	return value, nil
}

func (s *Store) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return [][]byte{}, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, s.wrapErr(err)
	}
	results := make([][]byte, len(values))
	for i, v := range values {
		if str, ok := v.(string); ok {
			results[i] = []byte(str)
		}
	}
	return results, nil
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := s.client.Del(ctx, keys...).Result()
	return n, s.wrapErr(err)
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	n, err := s.client.Exists(ctx, keys...).Result()
	return n, s.wrapErr(err)
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.Expire(ctx, key, ttl).Result()
	return ok, s.wrapErr(err)
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	return ttl, s.wrapErr(err)
}

// Hash operations

func (s *Store) HSet(ctx context.Context, key string, field string, value []byte) error {
	return s.wrapErr(s.client.HSet(ctx, key, field, value).Err())
}

func (s *Store) HGet(ctx context.Context, key string, field string) ([]byte, error) {
	value, err := s.client.HGet(ctx, key, field).Bytes()
	if err != nil {
		return nil, s.wrapErr(err)
	}
	return value, nil
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	n, err := s.client.HDel(ctx, key, fields...).Result()
	return n, s.wrapErr(err)
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, s.wrapErr(err)
	}
	result := make(map[string][]byte, len(values))
	for field, value := range values {
		result[field] = []byte(value)
	}
	return result, nil
}

// List operations

func (s *Store) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	n, err := s.client.LPush(ctx, key, args...).Result()
	return n, s.wrapErr(err)
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	values, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, s.wrapErr(err)
	}
	results := make([][]byte, len(values))
	for i, v := range values {
		results[i] = []byte(v)
	}
	return results, nil
}

func (s *Store) LRem(ctx context.Context, key string, count int64, value []byte) (int64, error) {
	n, err := s.client.LRem(ctx, key, count, value).Result()
	return n, s.wrapErr(err)
}

func (s *Store) LTrim(ctx context.Context, key string, start, stop int64) error {
	return s.wrapErr(s.client.LTrim(ctx, key, start, stop).Err())
}

func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	return n, s.wrapErr(err)
}

// Health check

func (s *Store) Ping(ctx context.Context) error {
	return s.wrapErr(s.client.Ping(ctx).Err())
}

func (s *Store) Close() error {
	return s.client.Close()
}
