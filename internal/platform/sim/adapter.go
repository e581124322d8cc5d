// Package sim provides a simulated platform adapter that generates
// plausible post streams. It backs dev environments and fallback scenarios
// where no real platform credentials are configured.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/socialpulse/socialpulse-backend/internal/platform"
	"github.com/socialpulse/socialpulse-backend/internal/social"
)

// Adapter generates deterministic-per-seed synthetic posts for one platform.
type Adapter struct {
	logger   *zap.SugaredLogger
	platform social.Platform
	tracker  *platform.HealthTracker

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a simulated adapter. A zero seed falls back to the clock.
func New(p social.Platform, logger *zap.SugaredLogger, seed int64) *Adapter {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Adapter{
		logger:   logger,
		platform: p,
		tracker:  platform.NewHealthTracker(),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

var _ platform.Adapter = (*Adapter)(nil)

func (a *Adapter) Platform() social.Platform {
	return a.platform
}

func (a *Adapter) Health() platform.Health {
	return a.tracker.Health()
}

var contentTemplates = []string{
	"Behind the scenes of our latest launch #startup",
	"Five things we learned shipping this quarter #buildinpublic",
	"Quick tip: schedule posts when your audience is awake",
	"Weekend recap and what's coming next week",
	"Ask me anything about growing an audience from zero",
	"New tutorial is live, link in bio #tutorial",
	"Hot take: consistency beats virality every time",
	"Thanks for 10k! Giveaway details below #milestone",
}

var hashtagPool = []string{
	"socialmedia", "marketing", "growth", "creator", "contentstrategy",
	"analytics", "community", "trending",
}

// FetchRecent generates up to limit posts for the account, newest first,
// spread over the last two weeks.
func (a *Adapter) FetchRecent(ctx context.Context, account social.AccountRef, limit int) ([]social.Post, error) {
	if err := ctx.Err(); err != nil {
		a.tracker.Record(err)
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now().UTC()
	posts := make([]social.Post, 0, limit)
	for i := 0; i < limit; i++ {
		age := time.Duration(a.rng.Int63n(int64(14 * 24 * time.Hour)))
		createdAt := now.Add(-age)

		likes := a.rng.Int63n(500)
		post := social.Post{
			ID:           fmt.Sprintf("%s-%s-%d", a.platform, account.AccountID, i),
			Platform:     a.platform,
			Content:      contentTemplates[a.rng.Intn(len(contentTemplates))],
			AuthorID:     account.AccountID,
			AuthorName:   account.AccountHandle,
			AuthorHandle: account.AccountHandle,
			CreatedAt:    createdAt,
			Engagement: social.Engagement{
				Likes:    likes,
				Shares:   a.rng.Int63n(likes/4 + 1),
				Comments: a.rng.Int63n(likes/2 + 1),
				Views:    likes * (10 + a.rng.Int63n(40)),
			},
			Hashtags: pickHashtags(a.rng),
			URL:      fmt.Sprintf("https://%s.example.com/%s/posts/%d", a.platform, account.AccountID, i),
		}
		if a.rng.Intn(3) == 0 {
			post.Media = []social.Media{{
				Type: social.MediaImage,
				URL:  post.URL + "/media/0",
			}}
		}
		posts = append(posts, post)
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	a.tracker.Record(nil)
	a.logger.Debugw("Generated simulated posts",
		"platform", a.platform,
		"account_id", account.AccountID,
		"count", len(posts),
	)
	return posts, nil
}

func pickHashtags(rng *rand.Rand) []string {
	n := rng.Intn(3)
	if n == 0 {
		return nil
	}
	tags := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tags = append(tags, hashtagPool[rng.Intn(len(hashtagPool))])
	}
	return tags
}
