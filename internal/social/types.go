package social

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies a supported social network.
type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformFacebook Platform = "facebook"
	PlatformYouTube  Platform = "youtube"
	PlatformTikTok   Platform = "tiktok"
	PlatformRedNote  Platform = "rednote"
)

// AllPlatforms lists every supported platform in a stable order.
var AllPlatforms = []Platform{
	PlatformTwitter,
	PlatformFacebook,
	PlatformYouTube,
	PlatformTikTok,
	PlatformRedNote,
}

func (p Platform) String() string { return string(p) }

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTwitter, PlatformFacebook, PlatformYouTube, PlatformTikTok, PlatformRedNote:
		return true
	}
	return false
}

// ParsePlatform converts a string into a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown platform %q", ErrValidation, s)
	}
	return p, nil
}

// Engagement is a snapshot of a post's interaction counters. Counters are
// never decremented in place; a refresh replaces the whole snapshot.
type Engagement struct {
	Likes    int64 `json:"likes"`
	Shares   int64 `json:"shares"`
	Comments int64 `json:"comments"`
	Views    int64 `json:"views,omitempty"`
}

// Total returns likes + shares + comments. Views are tracked separately.
func (e Engagement) Total() int64 {
	return e.Likes + e.Shares + e.Comments
}

// MediaType categorizes a media attachment.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaGIF   MediaType = "gif"
)

// Media is one attachment on a post.
type Media struct {
	Type         MediaType `json:"type"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
}

// Analysis holds the AI annotations applied to a post. They are written at
// most once per post; a populated Analysis is never overwritten.
type Analysis struct {
	Sentiment           string   `json:"sentiment"`
	Topics              []string `json:"topics"`
	PredictedEngagement int64    `json:"predicted_engagement"`
	Confidence          int      `json:"confidence"`
}

// Post is one unit of published content normalized into the common shape.
// CreatedAt is immutable once set by the originating adapter.
type Post struct {
	ID             string     `json:"id"`
	Platform       Platform   `json:"platform"`
	Content        string     `json:"content"`
	AuthorID       string     `json:"author_id"`
	AuthorName     string     `json:"author_name"`
	AuthorHandle   string     `json:"author_handle,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Engagement     Engagement `json:"engagement"`
	Media          []Media    `json:"media,omitempty"`
	Hashtags       []string   `json:"hashtags,omitempty"`
	Mentions       []string   `json:"mentions,omitempty"`
	URL            string     `json:"url"`
	IsRepost       bool       `json:"is_repost,omitempty"`
	OriginalPostID string     `json:"original_post_id,omitempty"`
	Analysis       *Analysis  `json:"analysis,omitempty"`
}

// AccountRef identifies one connected platform account belonging to a user.
type AccountRef struct {
	Platform      Platform `json:"platform"`
	AccountID     string   `json:"account_id"`
	AccountHandle string   `json:"account_handle,omitempty"`
	IsActive      bool     `json:"is_active"`
}
