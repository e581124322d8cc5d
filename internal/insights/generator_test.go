package insights

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialpulse/socialpulse-backend/internal/analytics"
	"github.com/socialpulse/socialpulse-backend/internal/log"
	"github.com/socialpulse/socialpulse-backend/internal/social"
)

type stubCompleter struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.response, s.err
}

func newTestGenerator(c Completer) *Generator {
	return NewGenerator(c, log.NewNop(), nil)
}

func somePosts(platform social.Platform, n int) []social.Post {
	posts := make([]social.Post, n)
	for i := range posts {
		posts[i] = social.Post{
			ID:        "p" + string(rune('a'+i)),
			Platform:  platform,
			Content:   "a post about product launches",
			CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			Engagement: social.Engagement{
				Likes: int64(10 * (i + 1)), Shares: 2, Comments: 1,
			},
		}
	}
	return posts
}

func TestGenerateTimingInsightParsesResponse(t *testing.T) {
	completer := &stubCompleter{
		response: "Here you go:\n```json\n{\"best_time\": \"18:00\", \"best_day\": \"Friday\", \"confidence\": 85, \"recommendation\": \"Post at 18:00.\", \"reasoning\": \"Evening posts performed best.\"}\n```",
	}
	g := newTestGenerator(completer)

	in := g.GenerateTimingInsight(context.Background(), "u1", social.PlatformTwitter, somePosts(social.PlatformTwitter, 3))

	assert.Equal(t, TypeOptimalTiming, in.Type)
	assert.Equal(t, social.PlatformTwitter, in.Platform)
	assert.Equal(t, 85, in.Confidence)
	assert.Equal(t, "Post at 18:00.", in.Recommendation)
	assert.Equal(t, "18:00", in.Data["best_time"])
	assert.Equal(t, "Friday", in.Data["best_day"])
	assert.True(t, in.IsActive)
	assert.False(t, in.GeneratedAt.IsZero())

	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "twitter")
}

func TestGenerateTimingInsightFallbackOnCallFailure(t *testing.T) {
	g := newTestGenerator(&stubCompleter{err: errors.New("network down")})

	in := g.GenerateTimingInsight(context.Background(), "u1", social.PlatformTikTok, somePosts(social.PlatformTikTok, 2))

	assert.Equal(t, fallbackInsightConfidence, in.Confidence)
	assert.Contains(t, in.Reasoning, "Fallback")
	assert.Equal(t, "19:00", in.Data["best_time"])
}

func TestGenerateTimingInsightFallbackOnMalformedResponse(t *testing.T) {
	g := newTestGenerator(&stubCompleter{response: "sorry, I cannot help with that"})

	in := g.GenerateTimingInsight(context.Background(), "u1", social.PlatformTwitter, nil)

	assert.Equal(t, fallbackInsightConfidence, in.Confidence)
	assert.Contains(t, in.Reasoning, "Fallback")
}

func TestGenerateTimingInsightClampsConfidence(t *testing.T) {
	g := newTestGenerator(&stubCompleter{
		response: `{"best_time": "10:00", "best_day": "Monday", "confidence": 250, "recommendation": "r", "reasoning": "r"}`,
	})

	in := g.GenerateTimingInsight(context.Background(), "u1", social.PlatformTwitter, nil)
	assert.Equal(t, 100, in.Confidence)

	g = newTestGenerator(&stubCompleter{
		response: `{"best_time": "10:00", "best_day": "Monday", "confidence": -3, "recommendation": "r", "reasoning": "r"}`,
	})
	in = g.GenerateTimingInsight(context.Background(), "u1", social.PlatformTwitter, nil)
	assert.Equal(t, 0, in.Confidence)
}

func TestGenerateContentStrategyInsightsPerPlatform(t *testing.T) {
	g := newTestGenerator(&stubCompleter{
		response: `{"recommendation": "more video", "reasoning": "video wins", "confidence": 70, "themes": ["video"]}`,
	})

	posts := append(somePosts(social.PlatformTwitter, 2), somePosts(social.PlatformTikTok, 1)...)
	pm := map[social.Platform]analytics.PlatformMetrics{
		social.PlatformTwitter: {Platform: social.PlatformTwitter, TotalPosts: 2, TotalEngagement: 40},
		social.PlatformTikTok:  {Platform: social.PlatformTikTok, TotalPosts: 1, TotalEngagement: 13},
	}

	out := g.GenerateContentStrategyInsights(context.Background(), "u1", posts, pm)

	require.Len(t, out, 2)
	assert.Equal(t, social.PlatformTwitter, out[0].Platform)
	assert.Equal(t, social.PlatformTikTok, out[1].Platform)
	for _, in := range out {
		assert.Equal(t, TypeContentStrategy, in.Type)
		assert.Equal(t, 70, in.Confidence)
	}
}

func TestGenerateContentStrategyInsightsAllCallsFail(t *testing.T) {
	g := newTestGenerator(&stubCompleter{err: errors.New("quota exceeded")})

	posts := append(somePosts(social.PlatformTwitter, 2), somePosts(social.PlatformFacebook, 1)...)
	out := g.GenerateContentStrategyInsights(context.Background(), "u1", posts, nil)

	require.NotEmpty(t, out)
	require.Len(t, out, 2)
	for _, in := range out {
		assert.Equal(t, fallbackInsightConfidence, in.Confidence)
		assert.Contains(t, in.Reasoning, "Fallback")
	}
}

func TestGenerateCrossPlatformStrategy(t *testing.T) {
	g := newTestGenerator(&stubCompleter{
		response: `{"recommendation": "double down on tiktok", "reasoning": "it leads", "confidence": 60, "priorities": ["tiktok", "twitter"]}`,
	})

	posts := append(somePosts(social.PlatformTwitter, 1), somePosts(social.PlatformTikTok, 2)...)
	in := g.GenerateCrossPlatformStrategy(context.Background(), "u1", posts)

	assert.Equal(t, TypeCrossPlatform, in.Type)
	assert.Empty(t, in.Platform)
	assert.Equal(t, 60, in.Confidence)
	assert.Equal(t, []string{"tiktok", "twitter"}, in.Data["priorities"])
}

func TestGenerateCrossPlatformStrategyFallbackOrdersByEngagement(t *testing.T) {
	g := newTestGenerator(&stubCompleter{err: errors.New("boom")})

	posts := []social.Post{
		{Platform: social.PlatformTwitter, Engagement: social.Engagement{Likes: 5}},
		{Platform: social.PlatformTikTok, Engagement: social.Engagement{Likes: 50}},
	}
	in := g.GenerateCrossPlatformStrategy(context.Background(), "u1", posts)

	assert.Equal(t, fallbackInsightConfidence, in.Confidence)
	assert.Equal(t, []string{"tiktok", "twitter"}, in.Data["priorities"])
}

func TestAnalyzePost(t *testing.T) {
	g := newTestGenerator(&stubCompleter{
		response: `{"sentiment": "Positive", "topics": ["launch"], "predicted_engagement": 120, "confidence": 90}`,
	})

	a := g.AnalyzePost(context.Background(), somePosts(social.PlatformTwitter, 1)[0])

	assert.Equal(t, "positive", a.Sentiment)
	assert.Equal(t, []string{"launch"}, a.Topics)
	assert.Equal(t, int64(120), a.PredictedEngagement)
	assert.Equal(t, 90, a.Confidence)
}

func TestAnalyzePostFallback(t *testing.T) {
	g := newTestGenerator(&stubCompleter{response: "not json at all"})

	post := social.Post{
		Platform:   social.PlatformTwitter,
		Engagement: social.Engagement{Likes: 7, Shares: 2, Comments: 1},
	}
	a := g.AnalyzePost(context.Background(), post)

	assert.Equal(t, "neutral", a.Sentiment)
	assert.Equal(t, fallbackAnalysisConfidence, a.Confidence)
	assert.Equal(t, int64(10), a.PredictedEngagement)
}

func TestAnalyzePostNormalizesUnknownSentiment(t *testing.T) {
	g := newTestGenerator(&stubCompleter{
		response: `{"sentiment": "ecstatic", "topics": [], "predicted_engagement": 1, "confidence": 80}`,
	})

	a := g.AnalyzePost(context.Background(), social.Post{Platform: social.PlatformTwitter})
	assert.Equal(t, "neutral", a.Sentiment)
}

func TestAnalyzePostsAnnotatesEveryPost(t *testing.T) {
	g := newTestGenerator(&stubCompleter{
		response: `{"sentiment": "neutral", "topics": ["x"], "predicted_engagement": 5, "confidence": 75}`,
	})

	out := g.AnalyzePosts(context.Background(), somePosts(social.PlatformTwitter, 6))

	require.Len(t, out, 6)
	for _, p := range out {
		require.NotNil(t, p.Analysis)
		assert.Equal(t, 75, p.Analysis.Confidence)
	}
}

func TestPredictEngagement(t *testing.T) {
	g := newTestGenerator(&stubCompleter{
		response: `{"likes": 100, "shares": 20, "comments": 5, "confidence": 65, "reasoning": "similar posts did well"}`,
	})

	p := g.PredictEngagement(context.Background(), "new launch post", social.PlatformYouTube, time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC))

	assert.Equal(t, social.PlatformYouTube, p.Platform)
	assert.Equal(t, int64(125), p.TotalPredicted)
	assert.Equal(t, 65, p.Confidence)
}

func TestPredictEngagementFallback(t *testing.T) {
	g := newTestGenerator(&stubCompleter{err: errors.New("timeout")})

	p := g.PredictEngagement(context.Background(), "draft", social.PlatformTwitter, time.Now())

	assert.Equal(t, fallbackAnalysisConfidence, p.Confidence)
	assert.Equal(t, p.Likes+p.Shares+p.Comments, p.TotalPredicted)
	assert.Contains(t, p.Reasoning, "Fallback")
}

func TestRecommendHashtagsFiltersExisting(t *testing.T) {
	g := newTestGenerator(&stubCompleter{
		response: `{"hashtags": ["#Tech", "golang", "tech", "ai", "devops", "cloud", "extra"]}`,
	})

	out := g.RecommendHashtags(context.Background(), "my post", social.PlatformTwitter, []string{"tech"})

	assert.Equal(t, []string{"golang", "ai", "devops", "cloud"}, out)
}

func TestRecommendHashtagsFallback(t *testing.T) {
	g := newTestGenerator(&stubCompleter{err: errors.New("nope")})

	out := g.RecommendHashtags(context.Background(), "my post", social.PlatformTikTok, []string{"trending"})

	require.NotEmpty(t, out)
	assert.NotContains(t, out, "trending")
	assert.Contains(t, out, "tiktok")
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around", `Sure! {"a": 1} Hope that helps.`, `{"a": 1}`},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
		{"brace in string", `{"a": "}"}`, `{"a": "}"}`},
		{"array", `[1, 2]`, `[1, 2]`},
		{"no json", "nothing here", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.in))
		})
	}
}

func TestTruncateContent(t *testing.T) {
	long := ""
	for i := 0; i < 40; i++ {
		long += "abcdefghij"
	}
	got := truncateContent(long)
	assert.Len(t, got, promptContentLimit+3)
	assert.True(t, len(got) < len(long))

	assert.Equal(t, "short", truncateContent("short"))
}
