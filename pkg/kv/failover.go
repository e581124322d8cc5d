package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// FailoverStore wraps a primary and a fallback store. When the primary
// becomes unreachable it demotes to the fallback and probes the primary in
// the background, promoting back once it is healthy again. Data written to
// the fallback while demoted is not replayed to the primary; callers that
// need durability must treat a demotion window as a degraded mode.
type FailoverStore struct {
	primary       Store
	fallback      Store
	active        atomic.Value // storeBox
	probeInterval time.Duration
	logger        LogFunc

	mu        sync.Mutex
	probing   bool
	closed    chan struct{}
	closeOnce sync.Once
}

// storeBox gives atomic.Value a single concrete type to store, since the
// primary and fallback may have different underlying Store implementations.
type storeBox struct {
	s Store
}

// NewFailoverStore creates a failover store with the primary active.
func NewFailoverStore(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	fs := newFailoverStore(primary, fallback, probeInterval, logger)
	fs.active.Store(storeBox{primary})
	return fs
}

// NewFailoverStoreWithFallbackActive creates a failover store that starts on
// the fallback and probes the primary for recovery. Used when the primary is
// already down at startup.
func NewFailoverStoreWithFallbackActive(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	fs := newFailoverStore(primary, fallback, probeInterval, logger)
	fs.active.Store(storeBox{fallback})
	fs.startProbing()
	return fs
}

func newFailoverStore(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	if logger == nil {
		logger = func(msg string, fields ...any) {}
	}
	if probeInterval <= 0 {
		probeInterval = 5 * time.Second
	}
	return &FailoverStore{
		primary:       primary,
		fallback:      fallback,
		probeInterval: probeInterval,
		logger:        logger,
		closed:        make(chan struct{}),
	}
}

func (fs *FailoverStore) activeStore() Store {
	return fs.active.Load().(storeBox).s
}

// UsingFallback reports whether the fallback store is currently active.
func (fs *FailoverStore) UsingFallback() bool {
	return fs.activeStore() == fs.fallback
}

func (fs *FailoverStore) demote() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.activeStore() == fs.fallback {
		return
	}
	fs.active.Store(storeBox{fs.fallback})
	fs.logger("Failing over to fallback store", "reason", "primary_unavailable")
	fs.startProbingLocked()
}

func (fs *FailoverStore) promote() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.activeStore() == fs.primary {
		return
	}
	fs.active.Store(storeBox{fs.primary})
	fs.logger("Recovered to primary store", "reason", "primary_healthy")
}

func (fs *FailoverStore) startProbing() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.startProbingLocked()
}

func (fs *FailoverStore) startProbingLocked() {
	if fs.probing {
		return
	}
	fs.probing = true
	go fs.probeLoop()
}

func (fs *FailoverStore) probeLoop() {
	ticker := time.NewTicker(fs.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fs.closed:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err := fs.primary.Ping(ctx)
			cancel()
			if err == nil {
				fs.promote()
				fs.mu.Lock()
				fs.probing = false
				fs.mu.Unlock()
				return
			}
		}
	}
}

// run executes op against the active store. A connection failure on the
// primary demotes to the fallback and retries the operation there once.
func (fs *FailoverStore) run(op func(Store) error) error {
	store := fs.activeStore()
	err := op(store)
	if err != nil && errors.Is(err, ErrBackendUnavailable) && store == fs.primary {
		fs.demote()
		return op(fs.fallback)
	}
	return err
}

// String operations

func (fs *FailoverStore) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	return fs.run(func(s Store) error { return s.Set(ctx, key, value, ttl...) })
}

func (fs *FailoverStore) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte
	err := fs.run(func(s Store) error {
		var opErr error
		result, opErr = s.Get(ctx, key)
		return opErr
	})
	return result, err
}

func (fs *FailoverStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	var result [][]byte
	err := fs.run(func(s Store) error {
		var opErr error
		result, opErr = s.MGet(ctx, keys...)
		return opErr
	})
	return result, err
}

// Key operations

func (fs *FailoverStore) Del(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	err := fs.run(func(s Store) error {
		var opErr error
		n, opErr = s.Del(ctx, keys...)
		return opErr
	})
	return n, err
}

func (fs *FailoverStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	err := fs.run(func(s Store) error {
		var opErr error
		n, opErr = s.Exists(ctx, keys...)
		return opErr
	})
	return n, err
}

func (fs *FailoverStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var ok bool
	err := fs.run(func(s Store) error {
		var opErr error
		ok, opErr = s.Expire(ctx, key, ttl)
		return opErr
	})
	return ok, err
}

func (fs *FailoverStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	var ttl time.Duration
	err := fs.run(func(s Store) error {
		var opErr error
		ttl, opErr = s.TTL(ctx, key)
		return opErr
	})
	return ttl, err
}

// Hash operations

func (fs *FailoverStore) HSet(ctx context.Context, key string, field string, value []byte) error {
	return fs.run(func(s Store) error { return s.HSet(ctx, key, field, value) })
}

func (fs *FailoverStore) HGet(ctx context.Context, key string, field string) ([]byte, error) {
	var result []byte
	err := fs.run(func(s Store) error {
		var opErr error
		result, opErr = s.HGet(ctx, key, field)
		return opErr
	})
	return result, err
}

func (fs *FailoverStore) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	var n int64
	err := fs.run(func(s Store) error {
		var opErr error
		n, opErr = s.HDel(ctx, key, fields...)
		return opErr
	})
	return n, err
}

func (fs *FailoverStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	var result map[string][]byte
	err := fs.run(func(s Store) error {
		var opErr error
		result, opErr = s.HGetAll(ctx, key)
		return opErr
	})
	return result, err
}

// List operations

func (fs *FailoverStore) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	var n int64
	err := fs.run(func(s Store) error {
		var opErr error
		n, opErr = s.LPush(ctx, key, values...)
		return opErr
	})
	return n, err
}

func (fs *FailoverStore) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	var result [][]byte
	err := fs.run(func(s Store) error {
		var opErr error
		result, opErr = s.LRange(ctx, key, start, stop)
		return opErr
	})
	return result, err
}

func (fs *FailoverStore) LRem(ctx context.Context, key string, count int64, value []byte) (int64, error) {
	var n int64
	err := fs.run(func(s Store) error {
		var opErr error
		n, opErr = s.LRem(ctx, key, count, value)
		return opErr
	})
	return n, err
}

func (fs *FailoverStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	return fs.run(func(s Store) error { return s.LTrim(ctx, key, start, stop) })
}

func (fs *FailoverStore) LLen(ctx context.Context, key string) (int64, error) {
	var n int64
	err := fs.run(func(s Store) error {
		var opErr error
		n, opErr = s.LLen(ctx, key)
		return opErr
	})
	return n, err
}

// Health check reflects the active store.

func (fs *FailoverStore) Ping(ctx context.Context) error {
	return fs.activeStore().Ping(ctx)
}

// Close shuts down probing and both underlying stores.
func (fs *FailoverStore) Close() error {
	fs.closeOnce.Do(func() {
		close(fs.closed)
	})
	primaryErr := fs.primary.Close()
	fallbackErr := fs.fallback.Close()
	if primaryErr != nil {
		return primaryErr
	}
	return fallbackErr
}
