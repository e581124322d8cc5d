package platform

import (
	"context"
	"sync"
	"time"

	"github.com/socialpulse/socialpulse-backend/internal/social"
)

// Adapter is the capability every platform integration provides: fetch the
// most recent posts for one connected account, normalized into the common
// Post shape. Implementations live outside this core; only the contract is
// defined here.
type Adapter interface {
	// FetchRecent returns up to limit posts for the account, newest first.
	FetchRecent(ctx context.Context, account social.AccountRef, limit int) ([]social.Post, error)

	// Platform returns the platform this adapter serves.
	Platform() social.Platform

	// Health returns the adapter's current health status.
	Health() Health
}

// Health describes an adapter's recent fetch history.
type Health struct {
	Healthy     bool      `json:"healthy"`
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success"`
	Failures    int       `json:"failures"`
}

// HealthTracker is an embeddable helper adapters use to record fetch
// outcomes behind a lock.
type HealthTracker struct {
	mu     sync.RWMutex
	health Health
}

// NewHealthTracker starts in a healthy state.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{health: Health{Healthy: true, LastSuccess: time.Now()}}
}

func (t *HealthTracker) Health() Health {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.health
}

// Record updates the health state after one fetch attempt.
func (t *HealthTracker) Record(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err == nil {
		t.health.Healthy = true
		t.health.LastSuccess = time.Now()
		t.health.LastError = ""
		return
	}
	t.health.Healthy = false
	t.health.LastError = err.Error()
	t.health.Failures++
}
