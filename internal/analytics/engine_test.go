package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialpulse/socialpulse-backend/internal/social"
)

func post(p social.Platform, at time.Time, likes, shares, comments int64, hashtags ...string) social.Post {
	return social.Post{
		ID:         at.Format(time.RFC3339Nano),
		Platform:   p,
		CreatedAt:  at,
		Engagement: social.Engagement{Likes: likes, Shares: shares, Comments: comments},
		Hashtags:   hashtags,
	}
}

func TestComputeMetricsEmpty(t *testing.T) {
	assert.Empty(t, ComputeMetrics(nil))
	assert.Empty(t, ComputeMetrics([]social.Post{}))
}

func TestComputeMetricsSinglePlatform(t *testing.T) {
	// Two twitter posts at hour 9: engagement (10,2,1) and (5,1,0).
	day := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)
	posts := []social.Post{
		post(social.PlatformTwitter, day, 10, 2, 1),
		post(social.PlatformTwitter, day.Add(15*time.Minute), 5, 1, 0),
	}

	metrics := ComputeMetrics(posts)
	require.Len(t, metrics, 1)

	m := metrics[0]
	assert.Equal(t, social.PlatformTwitter, m.Platform)
	assert.Equal(t, 2, m.TotalPosts)
	assert.Equal(t, int64(19), m.TotalEngagement)
	assert.Equal(t, "09:00", m.BestPostingTime)
	assert.InDelta(t, 9.5, m.AverageEngagementRate, 0.001)
	assert.Equal(t, TrendStable, m.EngagementTrend, "no history available, must not guess")
}

func TestComputeMetricsPartitionsByPlatform(t *testing.T) {
	now := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)
	posts := []social.Post{
		post(social.PlatformTwitter, now, 1, 0, 0),
		post(social.PlatformYouTube, now, 2, 0, 0),
		post(social.PlatformTwitter, now, 3, 0, 0),
	}

	metrics := ComputeMetrics(posts)
	require.Len(t, metrics, 2)

	byPlatform := map[social.Platform]PlatformMetrics{}
	for _, m := range metrics {
		byPlatform[m.Platform] = m
	}
	assert.Equal(t, int64(4), byPlatform[social.PlatformTwitter].TotalEngagement)
	assert.Equal(t, int64(2), byPlatform[social.PlatformYouTube].TotalEngagement)
}

func TestBestPostingHourWeightedByEngagement(t *testing.T) {
	day := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	posts := []social.Post{
		// Three posts at hour 8 with low engagement, one at hour 20 with more.
		post(social.PlatformTikTok, day.Add(8*time.Hour), 1, 0, 0),
		post(social.PlatformTikTok, day.Add(8*time.Hour), 1, 0, 0),
		post(social.PlatformTikTok, day.Add(8*time.Hour), 1, 0, 0),
		post(social.PlatformTikTok, day.Add(20*time.Hour), 100, 0, 0),
	}

	metrics := ComputeMetrics(posts)
	require.Len(t, metrics, 1)
	assert.Equal(t, "20:00", metrics[0].BestPostingTime)
}

func TestBestPostingHourTieBreaksToLowestHour(t *testing.T) {
	day := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	posts := []social.Post{
		post(social.PlatformTwitter, day.Add(22*time.Hour), 10, 0, 0),
		post(social.PlatformTwitter, day.Add(3*time.Hour), 10, 0, 0),
	}

	metrics := ComputeMetrics(posts)
	require.Len(t, metrics, 1)
	assert.Equal(t, "03:00", metrics[0].BestPostingTime)
}

func TestBestPostingDay(t *testing.T) {
	// 2025-02-02 is a Sunday.
	sunday := time.Date(2025, 2, 2, 10, 0, 0, 0, time.UTC)
	posts := []social.Post{
		post(social.PlatformTwitter, sunday, 5, 0, 0),
		post(social.PlatformTwitter, sunday.AddDate(0, 0, 3), 50, 0, 0), // Wednesday
	}

	metrics := ComputeMetrics(posts)
	require.Len(t, metrics, 1)
	assert.Equal(t, "Wednesday", metrics[0].BestPostingDay)
}

func TestTopHashtagsOrderAndTruncation(t *testing.T) {
	now := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)
	posts := []social.Post{
		post(social.PlatformTwitter, now, 0, 0, 0, "golang", "ai"),
		post(social.PlatformTwitter, now, 0, 0, 0, "ai", "cloud"),
		post(social.PlatformTwitter, now, 0, 0, 0, "ai", "golang"),
		post(social.PlatformTwitter, now, 0, 0, 0, "devops", "cloud", "k8s", "rust", "python"),
	}

	tags := topHashtags(posts, 5)
	require.NotEmpty(t, tags)
	assert.Equal(t, "ai", tags[0])
	// golang and cloud both have 2; golang was seen first.
	assert.Equal(t, []string{"ai", "golang", "cloud"}, tags[:3])
	assert.Len(t, tags, 5)
}

func TestTopHashtagsCaseInsensitive(t *testing.T) {
	now := time.Now()
	posts := []social.Post{
		post(social.PlatformTwitter, now, 0, 0, 0, "GoLang"),
		post(social.PlatformTwitter, now, 0, 0, 0, "golang"),
		post(social.PlatformTwitter, now, 0, 0, 0, "ai"),
	}

	tags := topHashtags(posts, 5)
	require.Len(t, tags, 2)
	assert.Equal(t, "GoLang", tags[0], "first-seen casing wins")
}

func TestComputeDashboardAnalyticsEmpty(t *testing.T) {
	d := ComputeDashboardAnalytics(nil, 7)

	assert.Zero(t, d.TotalPosts)
	assert.Zero(t, d.TotalEngagement)
	assert.Equal(t, NoBestTime, d.BestPostingTime)
	assert.Equal(t, NoBestTime, d.BestPostingDay)
	assert.Empty(t, d.TopHashtags)
	assert.Empty(t, d.Platforms)
	assert.Empty(t, d.DailyActivity)
}

func TestComputeDashboardAnalytics(t *testing.T) {
	base := time.Date(2025, 2, 5, 14, 0, 0, 0, time.UTC)
	posts := []social.Post{
		post(social.PlatformTwitter, base, 10, 0, 0, "ai"),
		post(social.PlatformRedNote, base.AddDate(0, 0, -1), 30, 0, 0, "ai", "fashion"),
		post(social.PlatformTwitter, base.AddDate(0, 0, -2), 10, 0, 0),
	}

	d := ComputeDashboardAnalytics(posts, 7)

	assert.Equal(t, 3, d.TotalPosts)
	assert.Equal(t, int64(50), d.TotalEngagement)
	assert.Equal(t, "ai", d.TopHashtags[0])
	assert.Equal(t, map[string]int{"global": 2, "china": 1}, d.RegionDistribution)

	require.Len(t, d.Platforms, 2)
	assert.Equal(t, social.PlatformTwitter, d.Platforms[0].Platform)
	assert.InDelta(t, 40.0, d.Platforms[0].EngagementShare, 0.001)

	require.Len(t, d.DailyActivity, 7)
	last := d.DailyActivity[6]
	assert.Equal(t, "2025-02-05", last.Date)
	assert.Equal(t, 1, last.Posts)
	assert.Equal(t, int64(10), last.Engagement)
	// Day with no posts renders as zeros, not a gap.
	assert.Equal(t, 0, d.DailyActivity[0].Posts)
}
