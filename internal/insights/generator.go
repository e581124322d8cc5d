package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/socialpulse/socialpulse-backend/internal/analytics"
	"github.com/socialpulse/socialpulse-backend/internal/metrics"
	"github.com/socialpulse/socialpulse-backend/internal/social"
)

// Completer is the external text-completion capability. Implementations may
// fail or return malformed output; the Generator absorbs both.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrCompleterDisabled is returned by the disabled Completer.
var ErrCompleterDisabled = errors.New("insights: completer not configured")

type disabledCompleter struct{}

func (disabledCompleter) Complete(context.Context, string) (string, error) {
	return "", ErrCompleterDisabled
}

// DisabledCompleter always fails, pushing every generation onto its
// fallback path. Used when no completion API key is configured.
func DisabledCompleter() Completer {
	return disabledCompleter{}
}

const (
	// promptContentLimit bounds how much of a post's content is embedded in
	// a prompt.
	promptContentLimit = 120
	// promptPostLimit bounds how many posts a single prompt embeds.
	promptPostLimit = 10

	// fallbackInsightConfidence is the fixed confidence stamped on fallback
	// insights.
	fallbackInsightConfidence = 40
	// fallbackAnalysisConfidence is the fixed confidence stamped on fallback
	// content analyses and engagement predictions.
	fallbackAnalysisConfidence = 50

	// analyzeConcurrency caps parallel completion calls during batch post
	// analysis.
	analyzeConcurrency = 4
)

// Generator turns posts and computed metrics into typed insights via a
// Completer. Every operation degrades to a documented fallback instead of
// returning the completion error to the caller.
type Generator struct {
	completer Completer
	logger    *zap.SugaredLogger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewGenerator(completer Completer, logger *zap.SugaredLogger, m *metrics.Metrics) *Generator {
	return &Generator{
		completer: completer,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// completeJSON runs one completion call and unmarshals the response into out.
// It is the single place where the call/parse failure policy lives: any error
// comes back to the caller, which substitutes its fallback.
func (g *Generator) completeJSON(ctx context.Context, prompt string, out any) error {
	raw, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("completion call: %w", err)
	}
	payload := extractJSON(raw)
	if payload == "" {
		return fmt.Errorf("completion response contains no JSON value")
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("parse completion response: %w", err)
	}
	return nil
}

// extractJSON pulls the first JSON object or array out of a completion
// response, tolerating markdown fences and prose around the payload.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	open := s[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func truncateContent(content string) string {
	content = strings.ReplaceAll(content, "\n", " ")
	if len(content) <= promptContentLimit {
		return content
	}
	return content[:promptContentLimit] + "..."
}

func formatPostsForPrompt(posts []social.Post) string {
	var b strings.Builder
	n := len(posts)
	if n > promptPostLimit {
		n = promptPostLimit
	}
	for i := 0; i < n; i++ {
		p := posts[i]
		fmt.Fprintf(&b, "- [%s, posted %s, likes=%d shares=%d comments=%d] %s\n",
			p.Platform, p.CreatedAt.UTC().Format(time.RFC3339),
			p.Engagement.Likes, p.Engagement.Shares, p.Engagement.Comments,
			truncateContent(p.Content))
	}
	return b.String()
}

// fallbackPostingTimes are the per-platform defaults used when generation
// fails. Hours are UTC.
var fallbackPostingTimes = map[social.Platform]string{
	social.PlatformTwitter:  "09:00",
	social.PlatformFacebook: "13:00",
	social.PlatformYouTube:  "15:00",
	social.PlatformTikTok:   "19:00",
	social.PlatformRedNote:  "20:00",
}

func fallbackPostingTime(p social.Platform) string {
	if t, ok := fallbackPostingTimes[p]; ok {
		return t
	}
	return "12:00"
}

func (g *Generator) newInsight(userID string, t Type, p social.Platform) Insight {
	return Insight{
		UserID:      userID,
		Type:        t,
		Platform:    p,
		GeneratedAt: g.now().UTC(),
		IsActive:    true,
	}
}

func (g *Generator) recordGeneration(ctx context.Context, kind string, fallback bool, err error) {
	if g.metrics != nil {
		g.metrics.RecordInsightGeneration(ctx, kind, fallback)
	}
	if fallback && g.logger != nil {
		g.logger.Warnw("insight generation fell back to defaults",
			"kind", kind, "error", err)
	}
}

type timingResponse struct {
	BestTime       string `json:"best_time"`
	BestDay        string `json:"best_day"`
	Confidence     int    `json:"confidence"`
	Recommendation string `json:"recommendation"`
	Reasoning      string `json:"reasoning"`
}

// GenerateTimingInsight produces an optimal-posting-time insight for one
// platform from the user's recent posts there.
func (g *Generator) GenerateTimingInsight(ctx context.Context, userID string, platform social.Platform, posts []social.Post) Insight {
	prompt := fmt.Sprintf(`You are a social media analytics assistant.
Given these recent %s posts with their engagement numbers, determine the best
time and day of week to post for maximum engagement.

%s
Respond with only a JSON object in this exact schema:
{"best_time": "HH:MM", "best_day": "<weekday>", "confidence": <0-100 integer>, "recommendation": "<one sentence>", "reasoning": "<one or two sentences>"}`,
		platform, formatPostsForPrompt(posts))

	in := g.newInsight(userID, TypeOptimalTiming, platform)

	var resp timingResponse
	if err := g.completeJSON(ctx, prompt, &resp); err != nil {
		g.recordGeneration(ctx, string(TypeOptimalTiming), true, err)
		return g.fallbackTimingInsight(in)
	}
	g.recordGeneration(ctx, string(TypeOptimalTiming), false, nil)

	in.Confidence = clampConfidence(resp.Confidence)
	in.Recommendation = resp.Recommendation
	in.Reasoning = resp.Reasoning
	in.Data = map[string]any{
		"best_time": resp.BestTime,
		"best_day":  resp.BestDay,
	}
	return in
}

func (g *Generator) fallbackTimingInsight(in Insight) Insight {
	t := fallbackPostingTime(in.Platform)
	in.Confidence = fallbackInsightConfidence
	in.Recommendation = fmt.Sprintf("Post on %s around %s UTC for better reach.", in.Platform, t)
	in.Reasoning = fmt.Sprintf("Fallback recommendation based on typical %s engagement patterns; AI generation was unavailable.", in.Platform)
	in.Data = map[string]any{"best_time": t, "best_day": "Wednesday"}
	return in
}

type strategyResponse struct {
	Recommendation string   `json:"recommendation"`
	Reasoning      string   `json:"reasoning"`
	Confidence     int      `json:"confidence"`
	Themes         []string `json:"themes"`
}

// GenerateContentStrategyInsights produces one content-strategy insight per
// platform that has both posts and computed metrics. Platforms are processed
// concurrently and a failure on one never affects the others; the returned
// list is non-empty whenever the input covers at least one platform.
func (g *Generator) GenerateContentStrategyInsights(ctx context.Context, userID string, posts []social.Post, platformMetrics map[social.Platform]analytics.PlatformMetrics) []Insight {
	byPlatform := make(map[social.Platform][]social.Post)
	for _, p := range posts {
		byPlatform[p.Platform] = append(byPlatform[p.Platform], p)
	}

	var platforms []social.Platform
	for _, p := range social.AllPlatforms {
		if len(byPlatform[p]) > 0 {
			platforms = append(platforms, p)
		}
	}

	results := make([]Insight, len(platforms))
	var wg errgroup.Group
	for i, platform := range platforms {
		i, platform := i, platform
		wg.Go(func() error {
			results[i] = g.contentStrategyForPlatform(ctx, userID, platform, byPlatform[platform], platformMetrics[platform])
			return nil
		})
	}
	_ = wg.Wait()
	return results
}

func (g *Generator) contentStrategyForPlatform(ctx context.Context, userID string, platform social.Platform, posts []social.Post, pm analytics.PlatformMetrics) Insight {
	prompt := fmt.Sprintf(`You are a social media analytics assistant.
Analyze this user's recent %s activity and recommend a content strategy.

Computed metrics: total_posts=%d total_engagement=%d avg_engagement_rate=%.2f best_posting_time=%s top_hashtags=%s

Recent posts:
%s
Respond with only a JSON object in this exact schema:
{"recommendation": "<one or two sentences>", "reasoning": "<one or two sentences>", "confidence": <0-100 integer>, "themes": ["<theme>", ...]}`,
		platform, pm.TotalPosts, pm.TotalEngagement, pm.AverageEngagementRate,
		pm.BestPostingTime, strings.Join(pm.TopHashtags, ","),
		formatPostsForPrompt(posts))

	in := g.newInsight(userID, TypeContentStrategy, platform)

	var resp strategyResponse
	if err := g.completeJSON(ctx, prompt, &resp); err != nil {
		g.recordGeneration(ctx, string(TypeContentStrategy), true, err)
		in.Confidence = fallbackInsightConfidence
		in.Recommendation = fmt.Sprintf("Keep a consistent posting cadence on %s and reuse the formats that earned the most engagement recently.", platform)
		in.Reasoning = "Fallback recommendation derived from computed metrics only; AI generation was unavailable."
		in.Data = map[string]any{"themes": []string{"consistency"}}
		return in
	}
	g.recordGeneration(ctx, string(TypeContentStrategy), false, nil)

	in.Confidence = clampConfidence(resp.Confidence)
	in.Recommendation = resp.Recommendation
	in.Reasoning = resp.Reasoning
	in.Data = map[string]any{"themes": resp.Themes}
	return in
}

type crossPlatformResponse struct {
	Recommendation string   `json:"recommendation"`
	Reasoning      string   `json:"reasoning"`
	Confidence     int      `json:"confidence"`
	Priorities     []string `json:"priorities"`
}

// GenerateCrossPlatformStrategy produces a single insight comparing the
// user's performance across every platform present in posts.
func (g *Generator) GenerateCrossPlatformStrategy(ctx context.Context, userID string, posts []social.Post) Insight {
	type platformSummary struct {
		platform   social.Platform
		posts      int
		engagement int64
	}
	byPlatform := make(map[social.Platform]*platformSummary)
	for _, p := range posts {
		s, ok := byPlatform[p.Platform]
		if !ok {
			s = &platformSummary{platform: p.Platform}
			byPlatform[p.Platform] = s
		}
		s.posts++
		s.engagement += p.Engagement.Total()
	}
	summaries := make([]*platformSummary, 0, len(byPlatform))
	for _, s := range byPlatform {
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].engagement > summaries[j].engagement
	})

	var b strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&b, "- %s: %d posts, %d total engagement\n", s.platform, s.posts, s.engagement)
	}

	prompt := fmt.Sprintf(`You are a social media analytics assistant.
Given this user's per-platform performance, recommend how to allocate effort
across platforms.

%s
Respond with only a JSON object in this exact schema:
{"recommendation": "<one or two sentences>", "reasoning": "<one or two sentences>", "confidence": <0-100 integer>, "priorities": ["<platform>", ...]}`,
		b.String())

	in := g.newInsight(userID, TypeCrossPlatform, "")

	var resp crossPlatformResponse
	if err := g.completeJSON(ctx, prompt, &resp); err != nil {
		g.recordGeneration(ctx, string(TypeCrossPlatform), true, err)
		in.Confidence = fallbackInsightConfidence
		in.Recommendation = "Focus on the platform with the highest recent engagement and repurpose its top posts elsewhere."
		in.Reasoning = "Fallback recommendation derived from engagement totals only; AI generation was unavailable."
		priorities := make([]string, 0, len(summaries))
		for _, s := range summaries {
			priorities = append(priorities, string(s.platform))
		}
		in.Data = map[string]any{"priorities": priorities}
		return in
	}
	g.recordGeneration(ctx, string(TypeCrossPlatform), false, nil)

	in.Confidence = clampConfidence(resp.Confidence)
	in.Recommendation = resp.Recommendation
	in.Reasoning = resp.Reasoning
	in.Data = map[string]any{"priorities": resp.Priorities}
	return in
}

type analysisResponse struct {
	Sentiment           string   `json:"sentiment"`
	Topics              []string `json:"topics"`
	PredictedEngagement int64    `json:"predicted_engagement"`
	Confidence          int      `json:"confidence"`
}

// AnalyzePost classifies a single post's sentiment and topics.
func (g *Generator) AnalyzePost(ctx context.Context, post social.Post) social.Analysis {
	prompt := fmt.Sprintf(`You are a social media analytics assistant.
Analyze this %s post.

Content: %s
Hashtags: %s
Engagement so far: likes=%d shares=%d comments=%d

Respond with only a JSON object in this exact schema:
{"sentiment": "positive|neutral|negative", "topics": ["<topic>", ...], "predicted_engagement": <integer>, "confidence": <0-100 integer>}`,
		post.Platform, truncateContent(post.Content), strings.Join(post.Hashtags, ","),
		post.Engagement.Likes, post.Engagement.Shares, post.Engagement.Comments)

	var resp analysisResponse
	if err := g.completeJSON(ctx, prompt, &resp); err != nil {
		g.recordGeneration(ctx, "content_analysis", true, err)
		return social.Analysis{
			Sentiment:           "neutral",
			Topics:              []string{"general"},
			PredictedEngagement: post.Engagement.Total(),
			Confidence:          fallbackAnalysisConfidence,
		}
	}
	g.recordGeneration(ctx, "content_analysis", false, nil)

	sentiment := strings.ToLower(strings.TrimSpace(resp.Sentiment))
	switch sentiment {
	case "positive", "neutral", "negative":
	default:
		sentiment = "neutral"
	}
	return social.Analysis{
		Sentiment:           sentiment,
		Topics:              resp.Topics,
		PredictedEngagement: resp.PredictedEngagement,
		Confidence:          clampConfidence(resp.Confidence),
	}
}

// AnalyzePosts annotates each post with an Analysis, fanning the completion
// calls out with bounded concurrency. Individual failures fall back per post.
func (g *Generator) AnalyzePosts(ctx context.Context, posts []social.Post) []social.Post {
	out := make([]social.Post, len(posts))
	copy(out, posts)

	var wg errgroup.Group
	wg.SetLimit(analyzeConcurrency)
	for i := range out {
		i := i
		wg.Go(func() error {
			a := g.AnalyzePost(ctx, out[i])
			out[i].Analysis = &a
			return nil
		})
	}
	_ = wg.Wait()
	return out
}

type predictionResponse struct {
	Likes      int64  `json:"likes"`
	Shares     int64  `json:"shares"`
	Comments   int64  `json:"comments"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// PredictEngagement estimates how a drafted post would perform if published
// on platform at scheduledTime.
func (g *Generator) PredictEngagement(ctx context.Context, content string, platform social.Platform, scheduledTime time.Time) EngagementPrediction {
	prompt := fmt.Sprintf(`You are a social media analytics assistant.
Predict the engagement a new %s post would receive if published at %s.

Draft content: %s

Respond with only a JSON object in this exact schema:
{"likes": <integer>, "shares": <integer>, "comments": <integer>, "confidence": <0-100 integer>, "reasoning": "<one sentence>"}`,
		platform, scheduledTime.UTC().Format(time.RFC3339), truncateContent(content))

	var resp predictionResponse
	if err := g.completeJSON(ctx, prompt, &resp); err != nil {
		g.recordGeneration(ctx, string(TypeEngagementPrediction), true, err)
		return EngagementPrediction{
			Platform:       platform,
			Likes:          10,
			Shares:         2,
			Comments:       1,
			TotalPredicted: 13,
			Confidence:     fallbackAnalysisConfidence,
			Reasoning:      "Fallback estimate based on typical baseline engagement; AI prediction was unavailable.",
		}
	}
	g.recordGeneration(ctx, string(TypeEngagementPrediction), false, nil)

	return EngagementPrediction{
		Platform:       platform,
		Likes:          resp.Likes,
		Shares:         resp.Shares,
		Comments:       resp.Comments,
		TotalPredicted: resp.Likes + resp.Shares + resp.Comments,
		Confidence:     clampConfidence(resp.Confidence),
		Reasoning:      resp.Reasoning,
	}
}

type hashtagResponse struct {
	Hashtags []string `json:"hashtags"`
}

// RecommendHashtags suggests hashtags for drafted content, excluding the ones
// already present. The fallback is a small platform-neutral set.
func (g *Generator) RecommendHashtags(ctx context.Context, content string, platform social.Platform, existing []string) []string {
	prompt := fmt.Sprintf(`You are a social media analytics assistant.
Suggest up to 5 additional hashtags for this %s post. Do not repeat the
existing ones.

Draft content: %s
Existing hashtags: %s

Respond with only a JSON object in this exact schema:
{"hashtags": ["<tag without #>", ...]}`,
		platform, truncateContent(content), strings.Join(existing, ","))

	var resp hashtagResponse
	if err := g.completeJSON(ctx, prompt, &resp); err != nil {
		g.recordGeneration(ctx, string(TypeHashtagOptimization), true, err)
		return fallbackHashtags(platform, existing)
	}
	g.recordGeneration(ctx, string(TypeHashtagOptimization), false, nil)

	seen := make(map[string]bool, len(existing))
	for _, h := range existing {
		seen[strings.ToLower(strings.TrimPrefix(h, "#"))] = true
	}
	out := make([]string, 0, len(resp.Hashtags))
	for _, h := range resp.Hashtags {
		h = strings.TrimPrefix(strings.TrimSpace(h), "#")
		if h == "" || seen[strings.ToLower(h)] {
			continue
		}
		seen[strings.ToLower(h)] = true
		out = append(out, h)
		if len(out) == 5 {
			break
		}
	}
	return out
}

func fallbackHashtags(platform social.Platform, existing []string) []string {
	defaults := []string{"trending", "socialmedia", string(platform)}
	seen := make(map[string]bool, len(existing))
	for _, h := range existing {
		seen[strings.ToLower(strings.TrimPrefix(h, "#"))] = true
	}
	out := make([]string, 0, len(defaults))
	for _, h := range defaults {
		if !seen[strings.ToLower(h)] {
			out = append(out, h)
		}
	}
	return out
}
