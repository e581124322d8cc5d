package memory

import (
	"context"
	"testing"
	"time"

	"github.com/socialpulse/socialpulse-backend/pkg/kv"
	"github.com/socialpulse/socialpulse-backend/pkg/kv/kvtest"
)

func TestMemoryStoreConformance(t *testing.T) {
	kvtest.RunConformanceTests(t, func(t *testing.T) kv.Store {
		return New(10 * time.Millisecond)
	})
}

func TestJanitorEvictsExpiredKeys(t *testing.T) {
	store := New(10 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "short", []byte("x"), 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	store.mu.RLock()
	_, present := store.strings["short"]
	store.mu.RUnlock()
	if present {
		t.Fatal("Expected janitor to physically remove the expired key")
	}
}
