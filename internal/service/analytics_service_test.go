package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/socialpulse/socialpulse-backend/internal/analytics"
	"github.com/socialpulse/socialpulse-backend/internal/insights"
	"github.com/socialpulse/socialpulse-backend/internal/log"
	"github.com/socialpulse/socialpulse-backend/internal/social"
	"github.com/socialpulse/socialpulse-backend/pkg/kv/memory"
)

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) ListActiveAccounts(ctx context.Context, userID string) ([]social.AccountRef, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]social.AccountRef), args.Error(1)
}

type MockPosts struct {
	mock.Mock
}

func (m *MockPosts) UpsertPosts(ctx context.Context, userID string, posts []social.Post) error {
	args := m.Called(ctx, userID, posts)
	return args.Error(0)
}

func (m *MockPosts) ListByUser(ctx context.Context, userID string, since time.Time, limit int) ([]social.Post, error) {
	args := m.Called(ctx, userID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]social.Post), args.Error(1)
}

func (m *MockPosts) ApplyAnalysis(ctx context.Context, platform social.Platform, postID string, analysis social.Analysis) error {
	args := m.Called(ctx, platform, postID, analysis)
	return args.Error(0)
}

func (m *MockPosts) ListUserIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

var _ AccountDirectory = (*MockAccounts)(nil)
var _ PostStore = (*MockPosts)(nil)

type fakeCollector struct {
	posts []social.Post
	err   error
}

func (f *fakeCollector) Collect(_ context.Context, _ []social.AccountRef, _ int) ([]social.Post, error) {
	return f.posts, f.err
}

// fakeGenerator returns canned insights without touching any completer.
type fakeGenerator struct {
	analyzed []string
}

func (f *fakeGenerator) GenerateTimingInsight(_ context.Context, userID string, platform social.Platform, _ []social.Post) insights.Insight {
	return insights.Insight{
		UserID: userID, Type: insights.TypeOptimalTiming, Platform: platform,
		Confidence: 80, Recommendation: "post earlier", Reasoning: "mornings win",
	}
}

func (f *fakeGenerator) GenerateContentStrategyInsights(_ context.Context, userID string, posts []social.Post, _ map[social.Platform]analytics.PlatformMetrics) []insights.Insight {
	seen := make(map[social.Platform]bool)
	var out []insights.Insight
	for _, p := range posts {
		if seen[p.Platform] {
			continue
		}
		seen[p.Platform] = true
		out = append(out, insights.Insight{
			UserID: userID, Type: insights.TypeContentStrategy, Platform: p.Platform,
			Confidence: 70, Recommendation: "more video", Reasoning: "video wins",
		})
	}
	return out
}

func (f *fakeGenerator) GenerateCrossPlatformStrategy(_ context.Context, userID string, _ []social.Post) insights.Insight {
	return insights.Insight{
		UserID: userID, Type: insights.TypeCrossPlatform,
		Confidence: 60, Recommendation: "focus tiktok", Reasoning: "it leads",
	}
}

func (f *fakeGenerator) AnalyzePost(_ context.Context, post social.Post) social.Analysis {
	f.analyzed = append(f.analyzed, post.ID)
	return social.Analysis{Sentiment: "neutral", Confidence: 75}
}

type serviceFixture struct {
	svc       *Service
	accounts  *MockAccounts
	posts     *MockPosts
	collector *fakeCollector
	generator *fakeGenerator
	insights  *insights.Store
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	cache := memory.New(0)
	insightKV := memory.New(0)
	t.Cleanup(func() {
		_ = cache.Close()
		_ = insightKV.Close()
	})

	f := &serviceFixture{
		accounts:  &MockAccounts{},
		posts:     &MockPosts{},
		collector: &fakeCollector{},
		generator: &fakeGenerator{},
		insights:  insights.NewStore(insightKV, log.NewNop()),
	}
	f.svc = New(f.accounts, f.posts, f.collector, f.generator, f.insights,
		cache, log.NewNop(), nil, Options{DefaultDays: 30, TopPostAnalyses: 3})
	return f
}

func testAccounts() []social.AccountRef {
	return []social.AccountRef{
		{Platform: social.PlatformTwitter, AccountID: "t1", IsActive: true},
		{Platform: social.PlatformTikTok, AccountID: "k1", IsActive: true},
	}
}

func postAt(id string, platform social.Platform, likes int64, at time.Time) social.Post {
	return social.Post{
		ID:         id,
		Platform:   platform,
		Content:    "content of " + id,
		CreatedAt:  at,
		Engagement: social.Engagement{Likes: likes},
	}
}

func TestRunAnalyticsPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	fetched := []social.Post{
		postAt("a", social.PlatformTwitter, 100, now.Add(-2*time.Hour)),
		postAt("b", social.PlatformTikTok, 50, now.Add(-3*time.Hour)),
	}
	f.collector.posts = fetched

	f.accounts.On("ListActiveAccounts", mock.Anything, "u1").Return(testAccounts(), nil)
	f.posts.On("UpsertPosts", mock.Anything, "u1", fetched).Return(nil)
	f.posts.On("ListByUser", mock.Anything, "u1", mock.Anything, 0).Return(fetched, nil)
	f.posts.On("ApplyAnalysis", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.RunAnalyticsPass(ctx, "u1", 30)
	require.NoError(t, err)

	assert.Equal(t, "u1", result.UserID)
	assert.Equal(t, 2, result.PostsFetched)
	assert.Len(t, result.Metrics, 2)
	assert.Equal(t, now, result.CompletedAt)

	// Two timing + two content strategy + one cross-platform.
	require.Len(t, result.Insights, 5)
	counts := make(map[insights.Type]int)
	for _, in := range result.Insights {
		assert.NotEmpty(t, in.InsightID)
		counts[in.Type]++
	}
	assert.Equal(t, 2, counts[insights.TypeOptimalTiming])
	assert.Equal(t, 2, counts[insights.TypeContentStrategy])
	assert.Equal(t, 1, counts[insights.TypeCrossPlatform])

	// Both posts lacked analyses, so both get annotated, best first.
	assert.Equal(t, []string{"a", "b"}, result.AnalyzedIDs)

	// The insights were actually persisted.
	stored, err := f.insights.GetByUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, stored, 5)

	f.accounts.AssertExpectations(t)
	f.posts.AssertExpectations(t)
}

func TestRunAnalyticsPassValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RunAnalyticsPass(context.Background(), "", 30)
	assert.ErrorIs(t, err, social.ErrValidation)
}

func TestRunAnalyticsPassNoAccounts(t *testing.T) {
	f := newFixture(t)
	f.accounts.On("ListActiveAccounts", mock.Anything, "u1").Return([]social.AccountRef{}, nil)

	_, err := f.svc.RunAnalyticsPass(context.Background(), "u1", 30)
	assert.ErrorIs(t, err, social.ErrNotFound)
}

func TestRunAnalyticsPassAllPlatformsFailed(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }
	f.collector.err = social.ErrAllPlatformsFailed

	stored := []social.Post{postAt("old", social.PlatformTwitter, 10, now.Add(-24*time.Hour))}
	f.accounts.On("ListActiveAccounts", mock.Anything, "u1").Return(testAccounts(), nil)
	f.posts.On("ListByUser", mock.Anything, "u1", mock.Anything, 0).Return(stored, nil)
	f.posts.On("ApplyAnalysis", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.RunAnalyticsPass(context.Background(), "u1", 30)
	require.NoError(t, err)

	assert.Zero(t, result.PostsFetched)
	assert.NotEmpty(t, result.Insights)
	f.posts.AssertNotCalled(t, "UpsertPosts", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunAnalyticsPassPersistFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.collector.posts = []social.Post{postAt("a", social.PlatformTwitter, 1, time.Now())}

	f.accounts.On("ListActiveAccounts", mock.Anything, "u1").Return(testAccounts(), nil)
	f.posts.On("UpsertPosts", mock.Anything, "u1", mock.Anything).Return(errors.New("db down"))

	_, err := f.svc.RunAnalyticsPass(context.Background(), "u1", 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist posts")
}

func TestAnnotateTopPostsSkipsAnalyzedAndLimits(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	already := postAt("done", social.PlatformTwitter, 500, now.Add(-time.Hour))
	already.Analysis = &social.Analysis{Sentiment: "positive"}
	stored := []social.Post{
		already,
		postAt("p1", social.PlatformTwitter, 40, now.Add(-2*time.Hour)),
		postAt("p2", social.PlatformTwitter, 30, now.Add(-3*time.Hour)),
		postAt("p3", social.PlatformTwitter, 20, now.Add(-4*time.Hour)),
		postAt("p4", social.PlatformTwitter, 10, now.Add(-5*time.Hour)),
	}
	f.collector.posts = stored[1:2]

	f.accounts.On("ListActiveAccounts", mock.Anything, "u1").Return(testAccounts(), nil)
	f.posts.On("UpsertPosts", mock.Anything, "u1", mock.Anything).Return(nil)
	f.posts.On("ListByUser", mock.Anything, "u1", mock.Anything, 0).Return(stored, nil)
	f.posts.On("ApplyAnalysis", mock.Anything, social.PlatformTwitter, mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.RunAnalyticsPass(context.Background(), "u1", 30)
	require.NoError(t, err)

	// The already-analyzed post is skipped; the top three others win.
	assert.Equal(t, []string{"p1", "p2", "p3"}, result.AnalyzedIDs)
}

func TestGetDashboardAnalyticsCaches(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	posts := []social.Post{postAt("a", social.PlatformTwitter, 10, now.Add(-time.Hour))}
	f.posts.On("ListByUser", mock.Anything, "u1", mock.Anything, 0).Return(posts, nil).Once()

	first, err := f.svc.GetDashboardAnalytics(context.Background(), "u1", 30)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalPosts)

	// Second read must come from cache; the mock allows only one DB hit.
	second, err := f.svc.GetDashboardAnalytics(context.Background(), "u1", 30)
	require.NoError(t, err)
	assert.Equal(t, first.TotalPosts, second.TotalPosts)
	assert.Equal(t, first.TotalEngagement, second.TotalEngagement)

	f.posts.AssertExpectations(t)
}

func TestGetDashboardAnalyticsEmpty(t *testing.T) {
	f := newFixture(t)
	f.posts.On("ListByUser", mock.Anything, "u1", mock.Anything, 0).Return([]social.Post{}, nil)

	d, err := f.svc.GetDashboardAnalytics(context.Background(), "u1", 30)
	require.NoError(t, err)
	assert.Zero(t, d.TotalPosts)
	assert.Equal(t, analytics.NoBestTime, d.BestPostingTime)
}

func TestGetEngagementTrend(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		firstHalf  int64
		secondHalf int64
		wantTrend  string
		wantChange float64
	}{
		{"decreasing", 100, 80, analytics.TrendDecreasing, 20.0},
		{"increasing", 100, 150, analytics.TrendIncreasing, 50.0},
		{"stable within band", 100, 104, analytics.TrendStable, 4.0},
		{"stable at lower band", 100, 95, analytics.TrendStable, 5.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.svc.now = func() time.Time { return now }

			var posts []social.Post
			if tc.firstHalf > 0 {
				posts = append(posts, postAt("old", social.PlatformTwitter, tc.firstHalf, now.Add(-20*24*time.Hour)))
			}
			if tc.secondHalf > 0 {
				posts = append(posts, postAt("new", social.PlatformTwitter, tc.secondHalf, now.Add(-2*24*time.Hour)))
			}
			f.posts.On("ListByUser", mock.Anything, "u1", mock.Anything, 0).Return(posts, nil)

			trend, err := f.svc.GetEngagementTrend(context.Background(), "u1", 30)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTrend, trend.Trend)
			assert.InDelta(t, tc.wantChange, trend.ChangePercentage, 0.001)
			assert.Equal(t, tc.firstHalf, trend.FirstHalfTotal)
			assert.Equal(t, tc.secondHalf, trend.SecondHalfTotal)
		})
	}
}

func TestGetEngagementTrendEmptyOlderHalf(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	posts := []social.Post{postAt("new", social.PlatformTwitter, 500, now.Add(-time.Hour))}
	f.posts.On("ListByUser", mock.Anything, "u1", mock.Anything, 0).Return(posts, nil)

	trend, err := f.svc.GetEngagementTrend(context.Background(), "u1", 30)
	require.NoError(t, err)
	assert.Equal(t, analytics.TrendStable, trend.Trend)
	assert.Zero(t, trend.ChangePercentage)
}

func TestListInsightsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.insights.Save(ctx, "u1", insights.Insight{
		Type: insights.TypeOptimalTiming, Platform: social.PlatformTwitter, Confidence: 80,
	}, 7)
	require.NoError(t, err)
	_, err = f.insights.Save(ctx, "u1", insights.Insight{
		Type: insights.TypeContentStrategy, Platform: social.PlatformTikTok, Confidence: 70,
	}, 7)
	require.NoError(t, err)

	all, err := f.svc.ListInsights(ctx, "u1", "", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byType, err := f.svc.ListInsights(ctx, "u1", "optimal_timing", "", 0)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, insights.TypeOptimalTiming, byType[0].Type)

	byPlatform, err := f.svc.ListInsights(ctx, "u1", "", "tiktok", 0)
	require.NoError(t, err)
	require.Len(t, byPlatform, 1)
	assert.Equal(t, social.PlatformTikTok, byPlatform[0].Platform)

	_, err = f.svc.ListInsights(ctx, "u1", "optimal_timing", "tiktok", 0)
	assert.ErrorIs(t, err, social.ErrValidation)

	_, err = f.svc.ListInsights(ctx, "u1", "bogus", "", 0)
	assert.ErrorIs(t, err, social.ErrValidation)
}

func TestMarkInsightUsedValidation(t *testing.T) {
	f := newFixture(t)

	err := f.svc.MarkInsightUsed(context.Background(), "u1", "")
	assert.ErrorIs(t, err, social.ErrValidation)

	err = f.svc.MarkInsightUsed(context.Background(), "u1", "ins_1_abc")
	assert.ErrorIs(t, err, social.ErrNotFound)
}

func TestRunScheduledPassesContinuesOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.posts.On("ListUserIDs", mock.Anything).Return([]string{"bad", "good"}, nil)
	// "bad" has no accounts and fails; "good" runs a full pass.
	f.accounts.On("ListActiveAccounts", mock.Anything, "bad").Return([]social.AccountRef{}, nil)
	f.accounts.On("ListActiveAccounts", mock.Anything, "good").Return(testAccounts(), nil)
	f.posts.On("ListByUser", mock.Anything, "good", mock.Anything, 0).Return([]social.Post{}, nil)

	f.collector.posts = nil
	f.svc.RunScheduledPasses(ctx)

	f.accounts.AssertCalled(t, "ListActiveAccounts", mock.Anything, "good")
}
