// Package service orchestrates the analytics pipeline: account lookup,
// aggregation, metric computation, insight generation and persistence.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/socialpulse/socialpulse-backend/internal/analytics"
	"github.com/socialpulse/socialpulse-backend/internal/insights"
	"github.com/socialpulse/socialpulse-backend/internal/metrics"
	"github.com/socialpulse/socialpulse-backend/internal/social"
	"github.com/socialpulse/socialpulse-backend/pkg/kv"
)

// AccountDirectory lists the platform accounts connected for a user.
type AccountDirectory interface {
	ListActiveAccounts(ctx context.Context, userID string) ([]social.AccountRef, error)
}

// PostStore persists normalized posts between passes.
type PostStore interface {
	UpsertPosts(ctx context.Context, userID string, posts []social.Post) error
	ListByUser(ctx context.Context, userID string, since time.Time, limit int) ([]social.Post, error)
	ApplyAnalysis(ctx context.Context, platform social.Platform, postID string, analysis social.Analysis) error
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Collector fetches recent posts across platforms.
type Collector interface {
	Collect(ctx context.Context, accounts []social.AccountRef, perAccountLimit int) ([]social.Post, error)
}

// InsightGenerator produces AI-backed insights from posts and metrics.
type InsightGenerator interface {
	GenerateTimingInsight(ctx context.Context, userID string, platform social.Platform, posts []social.Post) insights.Insight
	GenerateContentStrategyInsights(ctx context.Context, userID string, posts []social.Post, pm map[social.Platform]analytics.PlatformMetrics) []insights.Insight
	GenerateCrossPlatformStrategy(ctx context.Context, userID string, posts []social.Post) insights.Insight
	AnalyzePost(ctx context.Context, post social.Post) social.Analysis
}

// InsightStore persists generated insights.
type InsightStore interface {
	Save(ctx context.Context, userID string, in insights.Insight, validityDays int) (string, error)
	GetByUser(ctx context.Context, userID string, limit int) ([]insights.Insight, error)
	GetByUserAndType(ctx context.Context, userID string, t insights.Type, limit int) ([]insights.Insight, error)
	GetByUserAndPlatform(ctx context.Context, userID string, p social.Platform, limit int) ([]insights.Insight, error)
	GetActive(ctx context.Context, userID string) ([]insights.Insight, error)
	MarkUsed(ctx context.Context, userID, insightID string) error
	GetMetrics(ctx context.Context, userID string, days int) (insights.Metrics, error)
}

// Options tunes a Service.
type Options struct {
	FetchLimit      int           // posts fetched per account per pass
	DefaultDays     int           // analytics window when the caller passes <= 0
	ValidityDays    int           // insight validity window
	TopPostAnalyses int           // posts annotated per pass
	DashboardTTL    time.Duration // dashboard cache TTL
}

func (o *Options) fillDefaults() {
	if o.FetchLimit <= 0 {
		o.FetchLimit = 50
	}
	if o.DefaultDays <= 0 {
		o.DefaultDays = 30
	}
	if o.ValidityDays <= 0 {
		o.ValidityDays = insights.DefaultValidityDays
	}
	if o.TopPostAnalyses <= 0 {
		o.TopPostAnalyses = 3
	}
	if o.DashboardTTL <= 0 {
		o.DashboardTTL = time.Minute
	}
}

// Service is the application core behind the HTTP API and the scheduler.
type Service struct {
	accounts  AccountDirectory
	posts     PostStore
	collector Collector
	generator InsightGenerator
	insights  InsightStore
	cache     kv.Store
	logger    *zap.SugaredLogger
	metrics   *metrics.Metrics
	opts      Options

	dashboards singleflight.Group
	now        func() time.Time
}

func New(
	accounts AccountDirectory,
	posts PostStore,
	collector Collector,
	generator InsightGenerator,
	insightStore InsightStore,
	cache kv.Store,
	logger *zap.SugaredLogger,
	m *metrics.Metrics,
	opts Options,
) *Service {
	opts.fillDefaults()
	return &Service{
		accounts:  accounts,
		posts:     posts,
		collector: collector,
		generator: generator,
		insights:  insightStore,
		cache:     cache,
		logger:    logger,
		metrics:   m,
		opts:      opts,
		now:       time.Now,
	}
}

// PassResult is what one analytics pass produced for a user.
type PassResult struct {
	UserID       string                      `json:"user_id"`
	PostsFetched int                         `json:"posts_fetched"`
	Metrics      []analytics.PlatformMetrics `json:"metrics"`
	Insights     []insights.Insight          `json:"insights"`
	AnalyzedIDs  []string                    `json:"analyzed_post_ids,omitempty"`
	CompletedAt  time.Time                   `json:"completed_at"`
}

// RunAnalyticsPass runs the full pipeline for one user: fetch posts from
// every active account, persist them, compute metrics, generate and save
// insights, and annotate the top posts. Adapter and generation failures
// degrade the result; persistence failures abort it.
func (s *Service) RunAnalyticsPass(ctx context.Context, userID string, days int) (PassResult, error) {
	if err := social.RequireUserID(userID); err != nil {
		return PassResult{}, err
	}
	if days <= 0 {
		days = s.opts.DefaultDays
	}

	accounts, err := s.accounts.ListActiveAccounts(ctx, userID)
	if err != nil {
		return PassResult{}, fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return PassResult{}, fmt.Errorf("%w: user %s has no active accounts", social.ErrNotFound, userID)
	}

	posts, err := s.collector.Collect(ctx, accounts, s.opts.FetchLimit)
	if err != nil {
		if errors.Is(err, social.ErrAllPlatformsFailed) {
			// Continue on persisted data from previous passes.
			s.logger.Warnw("all platform fetches failed, running pass on stored posts",
				"user_id", userID)
		} else {
			return PassResult{}, fmt.Errorf("collect posts: %w", err)
		}
	}

	if len(posts) > 0 {
		if err := s.posts.UpsertPosts(ctx, userID, posts); err != nil {
			return PassResult{}, fmt.Errorf("persist posts: %w", err)
		}
	}

	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	stored, err := s.posts.ListByUser(ctx, userID, since, 0)
	if err != nil {
		return PassResult{}, fmt.Errorf("load stored posts: %w", err)
	}

	platformMetrics := analytics.ComputeMetrics(stored)
	generated := s.generateInsights(ctx, userID, stored, platformMetrics)

	saved := make([]insights.Insight, 0, len(generated))
	for _, in := range generated {
		id, err := s.insights.Save(ctx, userID, in, s.opts.ValidityDays)
		if err != nil {
			return PassResult{}, fmt.Errorf("save insight: %w", err)
		}
		in.InsightID = id
		saved = append(saved, in)
	}

	analyzedIDs, err := s.annotateTopPosts(ctx, stored)
	if err != nil {
		return PassResult{}, err
	}

	s.invalidateDashboard(ctx, userID)

	result := PassResult{
		UserID:       userID,
		PostsFetched: len(posts),
		Metrics:      platformMetrics,
		Insights:     saved,
		AnalyzedIDs:  analyzedIDs,
		CompletedAt:  s.now().UTC(),
	}
	s.logger.Infow("analytics pass completed",
		"user_id", userID,
		"posts_fetched", len(posts),
		"insights", len(saved),
		"posts_analyzed", len(analyzedIDs))
	return result, nil
}

// generateInsights fans the insight generators out concurrently: one timing
// insight per platform with posts, the per-platform content strategies, and
// one cross-platform comparison when more than one platform is present.
func (s *Service) generateInsights(ctx context.Context, userID string, posts []social.Post, platformMetrics []analytics.PlatformMetrics) []insights.Insight {
	if len(posts) == 0 {
		return nil
	}

	byPlatform := make(map[social.Platform][]social.Post)
	for _, p := range posts {
		byPlatform[p.Platform] = append(byPlatform[p.Platform], p)
	}
	metricsByPlatform := make(map[social.Platform]analytics.PlatformMetrics, len(platformMetrics))
	for _, pm := range platformMetrics {
		metricsByPlatform[pm.Platform] = pm
	}

	var (
		timing   = make([]insights.Insight, 0, len(byPlatform))
		strategy []insights.Insight
		cross    *insights.Insight
	)

	var g errgroup.Group
	timingSlots := make([]insights.Insight, len(social.AllPlatforms))
	timingUsed := make([]bool, len(social.AllPlatforms))
	for i, platform := range social.AllPlatforms {
		platformPosts := byPlatform[platform]
		if len(platformPosts) == 0 {
			continue
		}
		i, platform := i, platform
		timingUsed[i] = true
		g.Go(func() error {
			timingSlots[i] = s.generator.GenerateTimingInsight(ctx, userID, platform, platformPosts)
			return nil
		})
	}
	g.Go(func() error {
		strategy = s.generator.GenerateContentStrategyInsights(ctx, userID, posts, metricsByPlatform)
		return nil
	})
	if len(byPlatform) > 1 {
		g.Go(func() error {
			in := s.generator.GenerateCrossPlatformStrategy(ctx, userID, posts)
			cross = &in
			return nil
		})
	}
	_ = g.Wait()

	for i, used := range timingUsed {
		if used {
			timing = append(timing, timingSlots[i])
		}
	}
	out := append(timing, strategy...)
	if cross != nil {
		out = append(out, *cross)
	}
	return out
}

// annotateTopPosts analyzes the highest-engagement posts that have no
// analysis yet and persists the annotations.
func (s *Service) annotateTopPosts(ctx context.Context, posts []social.Post) ([]string, error) {
	candidates := make([]social.Post, 0, len(posts))
	for _, p := range posts {
		if p.Analysis == nil {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Engagement.Total() > candidates[j].Engagement.Total()
	})
	if len(candidates) > s.opts.TopPostAnalyses {
		candidates = candidates[:s.opts.TopPostAnalyses]
	}

	var analyzed []string
	for _, p := range candidates {
		analysis := s.generator.AnalyzePost(ctx, p)
		if err := s.posts.ApplyAnalysis(ctx, p.Platform, p.ID, analysis); err != nil {
			return nil, fmt.Errorf("persist analysis for post %s: %w", p.ID, err)
		}
		analyzed = append(analyzed, p.ID)
	}
	return analyzed, nil
}

func dashboardCacheKey(userID string, days int) string {
	return fmt.Sprintf("sp:dashboard:%s:%d", userID, days)
}

// GetDashboardAnalytics computes the dashboard snapshot from persisted posts.
// Results are cached briefly and concurrent computations for the same user
// collapse into one.
func (s *Service) GetDashboardAnalytics(ctx context.Context, userID string, days int) (analytics.DashboardAnalytics, error) {
	if err := social.RequireUserID(userID); err != nil {
		return analytics.DashboardAnalytics{}, err
	}
	if days <= 0 {
		days = s.opts.DefaultDays
	}

	key := dashboardCacheKey(userID, days)
	if blob, err := s.cache.Get(ctx, key); err == nil {
		var cached analytics.DashboardAnalytics
		if err := json.Unmarshal(blob, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheHit(ctx, "dashboard")
			}
			return cached, nil
		}
	}
	if s.metrics != nil {
		s.metrics.RecordCacheMiss(ctx, "dashboard")
	}

	v, err, _ := s.dashboards.Do(key, func() (any, error) {
		since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
		posts, err := s.posts.ListByUser(ctx, userID, since, 0)
		if err != nil {
			return nil, fmt.Errorf("load posts: %w", err)
		}
		dashboard := analytics.ComputeDashboardAnalytics(posts, days)

		if blob, err := json.Marshal(dashboard); err == nil {
			if err := s.cache.Set(ctx, key, blob, s.opts.DashboardTTL); err != nil {
				s.logger.Warnw("failed to cache dashboard", "user_id", userID, "error", err)
			}
		}
		return dashboard, nil
	})
	if err != nil {
		return analytics.DashboardAnalytics{}, err
	}
	return v.(analytics.DashboardAnalytics), nil
}

func (s *Service) invalidateDashboard(ctx context.Context, userID string) {
	// Days window varies per caller; drop the common default only. Other
	// windows age out via TTL.
	key := dashboardCacheKey(userID, s.opts.DefaultDays)
	if _, err := s.cache.Del(ctx, key); err != nil && !errors.Is(err, kv.ErrNotFound) {
		s.logger.Warnw("failed to invalidate dashboard cache", "user_id", userID, "error", err)
	}
}

// EngagementTrend compares the older and newer halves of a window.
type EngagementTrend struct {
	UserID           string  `json:"user_id"`
	Days             int     `json:"days"`
	Trend            string  `json:"trend"`
	ChangePercentage float64 `json:"change_percentage"`
	FirstHalfTotal   int64   `json:"first_half_total"`
	SecondHalfTotal  int64   `json:"second_half_total"`
}

// GetEngagementTrend splits the window into two halves by post timestamp and
// compares total engagement. Changes within 5% either way count as stable,
// and an empty older half always reads as stable.
func (s *Service) GetEngagementTrend(ctx context.Context, userID string, days int) (EngagementTrend, error) {
	if err := social.RequireUserID(userID); err != nil {
		return EngagementTrend{}, err
	}
	if days <= 0 {
		days = s.opts.DefaultDays
	}

	now := s.now().UTC()
	since := now.Add(-time.Duration(days) * 24 * time.Hour)
	posts, err := s.posts.ListByUser(ctx, userID, since, 0)
	if err != nil {
		return EngagementTrend{}, fmt.Errorf("load posts: %w", err)
	}

	midpoint := now.Add(-time.Duration(days) * 24 * time.Hour / 2)
	var firstHalf, secondHalf int64
	for _, p := range posts {
		if p.CreatedAt.Before(midpoint) {
			firstHalf += p.Engagement.Total()
		} else {
			secondHalf += p.Engagement.Total()
		}
	}

	trend := EngagementTrend{
		UserID:          userID,
		Days:            days,
		Trend:           analytics.TrendStable,
		FirstHalfTotal:  firstHalf,
		SecondHalfTotal: secondHalf,
	}
	if firstHalf == 0 {
		return trend, nil
	}

	change := decimal.NewFromInt(secondHalf - firstHalf).
		Div(decimal.NewFromInt(firstHalf)).
		Mul(decimal.NewFromInt(100))
	trend.ChangePercentage = change.Abs().Round(2).InexactFloat64()

	switch {
	case change.GreaterThan(decimal.NewFromInt(5)):
		trend.Trend = analytics.TrendIncreasing
	case change.LessThan(decimal.NewFromInt(-5)):
		trend.Trend = analytics.TrendDecreasing
	}
	return trend, nil
}

// ListInsights returns stored insights, optionally filtered by type or
// platform. Passing both filters is a validation error.
func (s *Service) ListInsights(ctx context.Context, userID string, insightType, platform string, limit int) ([]insights.Insight, error) {
	if err := social.RequireUserID(userID); err != nil {
		return nil, err
	}
	if insightType != "" && platform != "" {
		return nil, fmt.Errorf("%w: type and platform filters are mutually exclusive", social.ErrValidation)
	}

	switch {
	case insightType != "":
		t, err := insights.ParseType(insightType)
		if err != nil {
			return nil, err
		}
		return s.insights.GetByUserAndType(ctx, userID, t, limit)
	case platform != "":
		p, err := social.ParsePlatform(platform)
		if err != nil {
			return nil, err
		}
		return s.insights.GetByUserAndPlatform(ctx, userID, p, limit)
	default:
		return s.insights.GetByUser(ctx, userID, limit)
	}
}

// ListActiveInsights returns the insights still inside their validity window.
func (s *Service) ListActiveInsights(ctx context.Context, userID string) ([]insights.Insight, error) {
	if err := social.RequireUserID(userID); err != nil {
		return nil, err
	}
	return s.insights.GetActive(ctx, userID)
}

// MarkInsightUsed flags an insight as acted on.
func (s *Service) MarkInsightUsed(ctx context.Context, userID, insightID string) error {
	if err := social.RequireUserID(userID); err != nil {
		return err
	}
	if insightID == "" {
		return fmt.Errorf("%w: insight id is required", social.ErrValidation)
	}
	return s.insights.MarkUsed(ctx, userID, insightID)
}

// GetInsightMetrics summarizes insight generation and usage for a user.
func (s *Service) GetInsightMetrics(ctx context.Context, userID string, days int) (insights.Metrics, error) {
	if err := social.RequireUserID(userID); err != nil {
		return insights.Metrics{}, err
	}
	if days <= 0 {
		days = s.opts.DefaultDays
	}
	return s.insights.GetMetrics(ctx, userID, days)
}

// RunScheduledPasses runs an analytics pass for every known user. Failures
// are logged per user and never stop the sweep.
func (s *Service) RunScheduledPasses(ctx context.Context) {
	userIDs, err := s.posts.ListUserIDs(ctx)
	if err != nil {
		s.logger.Errorw("failed to list users for scheduled pass", "error", err)
		return
	}
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.RunAnalyticsPass(ctx, userID, s.opts.DefaultDays); err != nil {
			s.logger.Errorw("scheduled analytics pass failed",
				"user_id", userID, "error", err)
		}
	}
}
