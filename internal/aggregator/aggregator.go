package aggregator

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/socialpulse/socialpulse-backend/internal/metrics"
	"github.com/socialpulse/socialpulse-backend/internal/platform"
	"github.com/socialpulse/socialpulse-backend/internal/social"
)

const DefaultAdapterTimeout = 10 * time.Second

// Aggregator fans out post collection across platform adapters. One slow or
// failing platform never blocks or fails the whole collection; callers get
// the union of whatever succeeded, newest first.
type Aggregator struct {
	registry       *platform.Registry
	adapterTimeout time.Duration
	logger         *zap.SugaredLogger
	metrics        *metrics.Metrics
}

func New(registry *platform.Registry, adapterTimeout time.Duration, logger *zap.SugaredLogger, m *metrics.Metrics) *Aggregator {
	if adapterTimeout <= 0 {
		adapterTimeout = DefaultAdapterTimeout
	}
	return &Aggregator{
		registry:       registry,
		adapterTimeout: adapterTimeout,
		logger:         logger,
		metrics:        m,
	}
}

// Collect fetches up to perAccountLimit posts from every active account
// concurrently and merges the results sorted by CreatedAt descending.
// Inactive accounts are skipped silently. A failed adapter contributes an
// empty result; Collect only errors when every participating adapter failed
// or the caller's context was cancelled.
func (a *Aggregator) Collect(ctx context.Context, accounts []social.AccountRef, perAccountLimit int) ([]social.Post, error) {
	active := make([]social.AccountRef, 0, len(accounts))
	for _, acct := range accounts {
		if acct.IsActive {
			active = append(active, acct)
		}
	}
	if len(active) == 0 {
		return []social.Post{}, nil
	}

	results := make([][]social.Post, len(active))
	failures := make([]error, len(active))

	g, ctx := errgroup.WithContext(ctx)
	for i, acct := range active {
		i, acct := i, acct
		g.Go(func() error {
			posts, err := a.fetchOne(ctx, acct, perAccountLimit)
			if err != nil {
				// Recovered locally: the account contributes nothing.
				failures[i] = &social.AdapterError{Platform: acct.Platform, AccountID: acct.AccountID, Err: err}
				a.logger.Warnw("Platform fetch failed",
					"platform", acct.Platform,
					"account_id", acct.AccountID,
					"error", err,
				)
				return nil
			}
			results[i] = posts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var degraded int
	merged := make([]social.Post, 0)
	for i := range active {
		if failures[i] != nil {
			degraded++
			continue
		}
		merged = append(merged, results[i]...)
	}
	if a.metrics != nil {
		a.metrics.RecordDegradedPlatforms(ctx, degraded)
	}

	if degraded == len(active) {
		// Cancellation shows up as every branch failing; report it as such.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, social.ErrAllPlatformsFailed
	}
	if degraded > 0 {
		a.logger.Infow("Collection degraded", "failed_accounts", degraded, "total_accounts", len(active))
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged, nil
}

// fetchOne runs a single adapter call under its own timeout so one stalled
// platform cannot hold up the rest of the fan-out.
func (a *Aggregator) fetchOne(ctx context.Context, acct social.AccountRef, limit int) ([]social.Post, error) {
	adapter, err := a.registry.Adapter(acct.Platform)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.adapterTimeout)
	defer cancel()

	posts, err := adapter.FetchRecent(ctx, acct, limit)
	if a.metrics != nil {
		a.metrics.RecordAdapterFetch(ctx, acct.Platform.String(), err)
	}
	return posts, err
}
