package insights

import (
	"fmt"
	"strings"
	"time"

	"github.com/socialpulse/socialpulse-backend/internal/social"
)

// Type classifies an insight.
type Type string

const (
	TypeOptimalTiming        Type = "optimal_timing"
	TypeContentStrategy      Type = "content_strategy"
	TypeEngagementPrediction Type = "engagement_prediction"
	TypeHashtagOptimization  Type = "hashtag_optimization"
	TypeCrossPlatform        Type = "cross_platform_strategy"
)

func (t Type) Valid() bool {
	switch t {
	case TypeOptimalTiming, TypeContentStrategy, TypeEngagementPrediction,
		TypeHashtagOptimization, TypeCrossPlatform:
		return true
	}
	return false
}

// ParseType converts a string into an insight Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown insight type %q", social.ErrValidation, s)
	}
	return t, nil
}

// Insight is one AI-generated recommendation. Confidence is always on the
// integer 0-100 scale; the generator clamps model output and the store
// persists it unchanged, so no boundary ever converts scales.
type Insight struct {
	InsightID      string          `json:"insight_id"`
	UserID         string          `json:"user_id"`
	Type           Type            `json:"type"`
	Platform       social.Platform `json:"platform,omitempty"`
	Confidence     int             `json:"confidence"`
	Recommendation string          `json:"recommendation"`
	Reasoning      string          `json:"reasoning"`
	Data           map[string]any  `json:"data,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
	ValidUntil     time.Time       `json:"valid_until"`
	IsActive       bool            `json:"is_active"`
	Used           bool            `json:"used"`
}

// ActiveAt reports whether the insight is queryable-as-active at now. The
// check lives in application logic so correctness never depends on the
// store's physical expiry timing.
func (i Insight) ActiveAt(now time.Time) bool {
	return i.IsActive && now.Before(i.ValidUntil)
}

// EngagementPrediction estimates how a drafted post would perform.
type EngagementPrediction struct {
	Platform       social.Platform `json:"platform"`
	Likes          int64           `json:"likes"`
	Shares         int64           `json:"shares"`
	Comments       int64           `json:"comments"`
	TotalPredicted int64           `json:"total_predicted"`
	Confidence     int             `json:"confidence"`
	Reasoning      string          `json:"reasoning"`
}

// Metrics summarizes the insights generated for a user within a trailing
// window.
type Metrics struct {
	TotalInsights     int          `json:"total_insights"`
	InsightsByType    map[Type]int `json:"insights_by_type"`
	AverageConfidence float64      `json:"average_confidence"`
	UsageRate         float64      `json:"usage_rate"`
}

// clampConfidence bounds a model-reported confidence to the 0-100 scale.
func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
