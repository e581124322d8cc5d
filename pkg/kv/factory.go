package kv

import (
	"context"
	"fmt"
	"time"
)

// Backend identifies a storage backend.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Config holds settings for creating a Store.
type Config struct {
	Backend Backend

	// RedisAddr is the Redis connection string (URL or host:port). Required
	// when Backend is "redis".
	RedisAddr string

	// JanitorInterval controls how often the in-memory store evicts expired
	// keys. Default 30s.
	JanitorInterval time.Duration

	// FailoverEnabled wraps the Redis store with an in-memory fallback.
	FailoverEnabled bool

	// ProbeInterval controls how often a demoted failover store probes the
	// primary for recovery. Default 5s.
	ProbeInterval time.Duration

	// StartupProbeTimeout bounds the initial Redis health check. Default 1s.
	StartupProbeTimeout time.Duration

	// Logger receives failover events. Nil disables logging.
	Logger LogFunc
}

// Factory creates a Store from a Config.
type Factory func(cfg Config) (Store, error)

var factories = make(map[Backend]Factory)

// RegisterBackend registers a store factory. Called from backend package
// init functions, so importing a backend package makes it available here.
func RegisterBackend(backend Backend, factory Factory) {
	factories[backend] = factory
}

// NewStoreFromConfig creates a Store based on cfg, wiring up failover when
// requested.
func NewStoreFromConfig(cfg Config) (Store, error) {
	if cfg.JanitorInterval == 0 {
		cfg.JanitorInterval = 30 * time.Second
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 5 * time.Second
	}
	if cfg.StartupProbeTimeout == 0 {
		cfg.StartupProbeTimeout = time.Second
	}

	switch cfg.Backend {
	case BackendMemory:
		factory, ok := factories[BackendMemory]
		if !ok {
			return nil, fmt.Errorf("memory backend not registered")
		}
		return factory(cfg)

	case BackendRedis:
		return newRedisStore(cfg)

	default:
		return nil, fmt.Errorf("unsupported backend %q (supported: %s, %s)",
			cfg.Backend, BackendMemory, BackendRedis)
	}
}

func newRedisStore(cfg Config) (Store, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("redis address is required when backend is %q", BackendRedis)
	}
	redisFactory, ok := factories[BackendRedis]
	if !ok {
		return nil, fmt.Errorf("redis backend not registered")
	}
	memoryFactory, ok := factories[BackendMemory]
	if !ok {
		return nil, fmt.Errorf("memory backend not registered")
	}

	if !cfg.FailoverEnabled {
		return redisFactory(cfg)
	}

	fallback, err := memoryFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create fallback store: %w", err)
	}

	primary, err := redisFactory(cfg)
	if err != nil {
		// Redis is down at startup; serve from memory and let the caller
		// restart to pick up Redis. Without a primary there is nothing to
		// probe.
		if cfg.Logger != nil {
			cfg.Logger("Redis unavailable at startup; using in-memory store", "error", err.Error())
		}
		return fallback, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupProbeTimeout)
	defer cancel()
	if err := primary.Ping(ctx); err != nil {
		if cfg.Logger != nil {
			cfg.Logger("Redis unhealthy at startup; starting on in-memory store", "error", err.Error())
		}
		return NewFailoverStoreWithFallbackActive(primary, fallback, cfg.ProbeInterval, cfg.Logger), nil
	}

	return NewFailoverStore(primary, fallback, cfg.ProbeInterval, cfg.Logger), nil
}
