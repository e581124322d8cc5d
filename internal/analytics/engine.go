// Package analytics derives engagement statistics from post collections.
// Everything here is pure computation: no I/O, no clock reads. Time-window
// filtering happens in the caller so the same post set always yields the
// same result.
package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/socialpulse/socialpulse-backend/internal/social"
)

const (
	metricsTopHashtags   = 5
	dashboardTopHashtags = 10
)

// platformRegions approximates where each platform's audience is
// concentrated. Post payloads carry no geo data, so the dashboard's region
// distribution is keyed off the platform's primary market.
var platformRegions = map[social.Platform]string{
	social.PlatformTwitter:  "global",
	social.PlatformFacebook: "global",
	social.PlatformYouTube:  "global",
	social.PlatformTikTok:   "global",
	social.PlatformRedNote:  "china",
}

// ComputeMetrics partitions posts by platform and derives per-platform
// statistics. Platforms appear in the stable social.AllPlatforms order;
// platforms with no posts in scope are omitted.
//
// The average engagement rate is a normalized proxy: mean engagement per
// post. Follower counts are not part of the collected post shape, so the
// follower-based rate is never used and the two are never mixed.
func ComputeMetrics(posts []social.Post) []PlatformMetrics {
	partitions := make(map[social.Platform][]social.Post)
	for _, p := range posts {
		partitions[p.Platform] = append(partitions[p.Platform], p)
	}

	result := make([]PlatformMetrics, 0, len(partitions))
	for _, platform := range social.AllPlatforms {
		partition, ok := partitions[platform]
		if !ok {
			continue
		}
		result = append(result, computePartition(platform, partition))
	}
	return result
}

func computePartition(platform social.Platform, posts []social.Post) PlatformMetrics {
	m := PlatformMetrics{
		Platform:        platform,
		TotalPosts:      len(posts),
		BestPostingTime: NoBestTime,
		BestPostingDay:  NoBestTime,
		TopHashtags:     []string{},
		// A single snapshot carries no history to classify a trend from.
		EngagementTrend: TrendStable,
	}
	if len(posts) == 0 {
		return m
	}

	for _, p := range posts {
		m.TotalEngagement += p.Engagement.Total()
	}
	m.AverageEngagementRate = float64(m.TotalEngagement) / float64(len(posts))
	m.BestPostingTime = bestPostingHour(posts)
	m.BestPostingDay = bestPostingDay(posts)
	m.TopHashtags = topHashtags(posts, metricsTopHashtags)
	return m
}

// ComputeDashboardAnalytics builds the dashboard read model from the posts
// in range. windowDays sizes the daily activity series; the series is
// anchored at the newest post so the computation stays clock-free.
func ComputeDashboardAnalytics(posts []social.Post, windowDays int) DashboardAnalytics {
	d := DashboardAnalytics{
		TopHashtags:        []string{},
		BestPostingTime:    NoBestTime,
		BestPostingDay:     NoBestTime,
		RegionDistribution: map[string]int{},
		Platforms:          []PlatformBreakdown{},
		DailyActivity:      []DailyActivity{},
	}
	if len(posts) == 0 {
		return d
	}

	d.TotalPosts = len(posts)
	for _, p := range posts {
		d.TotalEngagement += p.Engagement.Total()
		d.TotalViews += p.Engagement.Views
		d.RegionDistribution[regionOf(p.Platform)]++
	}
	d.TopHashtags = topHashtags(posts, dashboardTopHashtags)
	d.BestPostingTime = bestPostingHour(posts)
	d.BestPostingDay = bestPostingDay(posts)
	d.Platforms = platformBreakdown(posts, d.TotalEngagement)
	d.DailyActivity = dailyActivity(posts, windowDays)
	return d
}

func regionOf(p social.Platform) string {
	if region, ok := platformRegions[p]; ok {
		return region
	}
	return "unknown"
}

// bestPostingHour buckets posts into 24 hourly buckets weighted by
// engagement and returns the arg-max as "HH:00". Ties resolve to the lowest
// hour index.
func bestPostingHour(posts []social.Post) string {
	var buckets [24]int64
	for _, p := range posts {
		buckets[p.CreatedAt.Hour()] += p.Engagement.Total()
	}

	best := 0
	for hour := 1; hour < 24; hour++ {
		if buckets[hour] > buckets[best] {
			best = hour
		}
	}
	return fmt.Sprintf("%02d:00", best)
}

// bestPostingDay is the 7-bucket analogue; ties resolve to the earliest
// day-of-week index with Sunday first (matching time.Weekday).
func bestPostingDay(posts []social.Post) string {
	var buckets [7]int64
	for _, p := range posts {
		buckets[p.CreatedAt.Weekday()] += p.Engagement.Total()
	}

	best := 0
	for day := 1; day < 7; day++ {
		if buckets[day] > buckets[best] {
			best = day
		}
	}
	return time.Weekday(best).String()
}

// topHashtags returns the most frequent hashtags, ties broken by first-seen
// order, truncated to limit. Tags are compared case-insensitively.
func topHashtags(posts []social.Post, limit int) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	display := make(map[string]string)
	order := 0

	for _, p := range posts {
		for _, tag := range p.Hashtags {
			key := strings.ToLower(tag)
			if key == "" {
				continue
			}
			if _, seen := counts[key]; !seen {
				firstSeen[key] = order
				display[key] = tag
				order++
			}
			counts[key]++
		}
	}

	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return firstSeen[keys[i]] < firstSeen[keys[j]]
	})

	if len(keys) > limit {
		keys = keys[:limit]
	}
	result := make([]string, len(keys))
	for i, key := range keys {
		result[i] = display[key]
	}
	return result
}

func platformBreakdown(posts []social.Post, totalEngagement int64) []PlatformBreakdown {
	type agg struct {
		posts      int
		engagement int64
	}
	partitions := make(map[social.Platform]*agg)
	for _, p := range posts {
		a, ok := partitions[p.Platform]
		if !ok {
			a = &agg{}
			partitions[p.Platform] = a
		}
		a.posts++
		a.engagement += p.Engagement.Total()
	}

	result := make([]PlatformBreakdown, 0, len(partitions))
	for _, platform := range social.AllPlatforms {
		a, ok := partitions[platform]
		if !ok {
			continue
		}
		share := 0.0
		if totalEngagement > 0 {
			share = float64(a.engagement) / float64(totalEngagement) * 100
		}
		result = append(result, PlatformBreakdown{
			Platform:        platform,
			Posts:           a.posts,
			Engagement:      a.engagement,
			EngagementShare: share,
		})
	}
	return result
}

// dailyActivity produces one entry per day over windowDays, oldest first,
// anchored at the newest post's date. Days without posts appear with zeros
// so dashboards render a continuous series.
func dailyActivity(posts []social.Post, windowDays int) []DailyActivity {
	if windowDays <= 0 {
		windowDays = 7
	}

	newest := posts[0].CreatedAt
	for _, p := range posts[1:] {
		if p.CreatedAt.After(newest) {
			newest = p.CreatedAt
		}
	}
	anchor := newest.UTC().Truncate(24 * time.Hour)

	type agg struct {
		posts      int
		engagement int64
	}
	byDay := make(map[string]*agg)
	for _, p := range posts {
		day := p.CreatedAt.UTC().Format("2006-01-02")
		a, ok := byDay[day]
		if !ok {
			a = &agg{}
			byDay[day] = a
		}
		a.posts++
		a.engagement += p.Engagement.Total()
	}

	series := make([]DailyActivity, 0, windowDays)
	for i := windowDays - 1; i >= 0; i-- {
		day := anchor.AddDate(0, 0, -i).Format("2006-01-02")
		entry := DailyActivity{Date: day}
		if a, ok := byDay[day]; ok {
			entry.Posts = a.posts
			entry.Engagement = a.engagement
		}
		series = append(series, entry)
	}
	return series
}
