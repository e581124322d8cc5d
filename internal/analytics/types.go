package analytics

import (
	"github.com/socialpulse/socialpulse-backend/internal/social"
)

// NoBestTime is reported when a partition has no posts to derive a best
// posting time or day from.
const NoBestTime = "N/A"

// Trend labels for engagement over time.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// PlatformMetrics is derived per request from the posts in scope; it is
// never stored.
type PlatformMetrics struct {
	Platform              social.Platform `json:"platform"`
	TotalPosts            int             `json:"total_posts"`
	TotalEngagement       int64           `json:"total_engagement"`
	AverageEngagementRate float64         `json:"average_engagement_rate"`
	BestPostingTime       string          `json:"best_posting_time"`
	BestPostingDay        string          `json:"best_posting_day"`
	TopHashtags           []string        `json:"top_hashtags"`
	EngagementTrend       string          `json:"engagement_trend"`
}

// PlatformBreakdown is the per-platform slice of a dashboard snapshot.
type PlatformBreakdown struct {
	Platform        social.Platform `json:"platform"`
	Posts           int             `json:"posts"`
	Engagement      int64           `json:"engagement"`
	EngagementShare float64         `json:"engagement_share"`
}

// DailyActivity is one day in the dashboard activity series.
type DailyActivity struct {
	Date       string `json:"date"` // YYYY-MM-DD
	Posts      int    `json:"posts"`
	Engagement int64  `json:"engagement"`
}

// DashboardAnalytics is a read-model snapshot recomputed per request from
// the posts in range.
type DashboardAnalytics struct {
	TotalPosts         int                 `json:"total_posts"`
	TotalEngagement    int64               `json:"total_engagement"`
	TotalViews         int64               `json:"total_views"`
	TopHashtags        []string            `json:"top_hashtags"`
	BestPostingTime    string              `json:"best_posting_time"`
	BestPostingDay     string              `json:"best_posting_day"`
	RegionDistribution map[string]int      `json:"region_distribution"`
	Platforms          []PlatformBreakdown `json:"platforms"`
	DailyActivity      []DailyActivity     `json:"daily_activity"`
}
