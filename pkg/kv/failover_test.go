package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/socialpulse/socialpulse-backend/pkg/kv"
	"github.com/socialpulse/socialpulse-backend/pkg/kv/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore wraps an in-memory store and can be switched into a failing
// state where every call reports ErrBackendUnavailable.
type flakyStore struct {
	kv.Store
	failing bool
}

func (f *flakyStore) err() error {
	if f.failing {
		return kv.ErrBackendUnavailable
	}
	return nil
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Store.Set(ctx, key, value, ttl...)
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyStore) Ping(ctx context.Context) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Store.Ping(ctx)
}

func TestFailoverDemotesOnConnectionError(t *testing.T) {
	primary := &flakyStore{Store: memory.New(0)}
	fallback := memory.New(0)
	fs := kv.NewFailoverStore(primary, fallback, 10*time.Millisecond, nil)
	defer fs.Close()

	ctx := context.Background()

	require.NoError(t, fs.Set(ctx, "key", []byte("before")))
	assert.False(t, fs.UsingFallback())

	primary.failing = true

	// The failed write retries against the fallback.
	require.NoError(t, fs.Set(ctx, "key", []byte("after")))
	assert.True(t, fs.UsingFallback())

	value, err := fs.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "after", string(value))
}

func TestFailoverPromotesWhenPrimaryRecovers(t *testing.T) {
	primary := &flakyStore{Store: memory.New(0), failing: true}
	fallback := memory.New(0)
	fs := kv.NewFailoverStoreWithFallbackActive(primary, fallback, 10*time.Millisecond, nil)
	defer fs.Close()

	require.True(t, fs.UsingFallback())

	primary.failing = false

	require.Eventually(t, func() bool {
		return !fs.UsingFallback()
	}, time.Second, 10*time.Millisecond, "expected promotion back to primary")
}

func TestFailoverPassesThroughNotFound(t *testing.T) {
	primary := &flakyStore{Store: memory.New(0)}
	fs := kv.NewFailoverStore(primary, memory.New(0), 10*time.Millisecond, nil)
	defer fs.Close()

	_, err := fs.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, kv.ErrNotFound))
	assert.False(t, fs.UsingFallback(), "ErrNotFound must not trigger failover")
}
