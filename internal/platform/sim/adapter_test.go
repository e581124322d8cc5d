package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialpulse/socialpulse-backend/internal/log"
	"github.com/socialpulse/socialpulse-backend/internal/social"
)

func TestFetchRecent_GeneratesOrderedPosts(t *testing.T) {
	a := New(social.PlatformTwitter, log.NewNop(), 42)
	account := social.AccountRef{Platform: social.PlatformTwitter, AccountID: "acc-1", AccountHandle: "@me", IsActive: true}

	posts, err := a.FetchRecent(context.Background(), account, 15)
	require.NoError(t, err)
	require.Len(t, posts, 15)

	for i, p := range posts {
		assert.Equal(t, social.PlatformTwitter, p.Platform)
		assert.Equal(t, "acc-1", p.AuthorID)
		assert.NotEmpty(t, p.Content)
		if i > 0 {
			assert.False(t, p.CreatedAt.After(posts[i-1].CreatedAt), "posts must be newest first")
		}
	}

	assert.True(t, a.Health().Healthy)
}

func TestFetchRecent_DefaultLimit(t *testing.T) {
	a := New(social.PlatformTikTok, log.NewNop(), 7)

	posts, err := a.FetchRecent(context.Background(), social.AccountRef{AccountID: "x"}, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 20)
}

func TestFetchRecent_CancelledContext(t *testing.T) {
	a := New(social.PlatformFacebook, log.NewNop(), 7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.FetchRecent(ctx, social.AccountRef{AccountID: "x"}, 5)
	require.Error(t, err)
	assert.False(t, a.Health().Healthy)
}
