package api

import (
	"time"

	"github.com/socialpulse/socialpulse-backend/internal/analytics"
	"github.com/socialpulse/socialpulse-backend/internal/insights"
	"github.com/socialpulse/socialpulse-backend/internal/platform"
	"github.com/socialpulse/socialpulse-backend/internal/social"
)

// ErrorResponse is the JSON envelope for every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DashboardResponse wraps the computed dashboard snapshot.
type DashboardResponse struct {
	UserID    string                       `json:"user_id"`
	Days      int                          `json:"days"`
	Analytics analytics.DashboardAnalytics `json:"analytics"`
}

// InsightDTO is the wire shape of a stored insight.
type InsightDTO struct {
	InsightID      string         `json:"insight_id"`
	Type           string         `json:"type"`
	Platform       string         `json:"platform,omitempty"`
	Confidence     int            `json:"confidence"`
	Recommendation string         `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
	Data           map[string]any `json:"data,omitempty"`
	GeneratedAt    time.Time      `json:"generated_at"`
	ValidUntil     time.Time      `json:"valid_until"`
	IsActive       bool           `json:"is_active"`
	Used           bool           `json:"used"`
}

func toInsightDTO(in insights.Insight) InsightDTO {
	return InsightDTO{
		InsightID:      in.InsightID,
		Type:           string(in.Type),
		Platform:       string(in.Platform),
		Confidence:     in.Confidence,
		Recommendation: in.Recommendation,
		Reasoning:      in.Reasoning,
		Data:           in.Data,
		GeneratedAt:    in.GeneratedAt,
		ValidUntil:     in.ValidUntil,
		IsActive:       in.IsActive,
		Used:           in.Used,
	}
}

func toInsightDTOs(ins []insights.Insight) []InsightDTO {
	out := make([]InsightDTO, len(ins))
	for i, in := range ins {
		out[i] = toInsightDTO(in)
	}
	return out
}

// InsightListResponse is the envelope for insight listings.
type InsightListResponse struct {
	UserID   string       `json:"user_id"`
	Insights []InsightDTO `json:"insights"`
}

// AccountDTO is the wire shape of a connected account.
type AccountDTO struct {
	Platform      string `json:"platform"`
	AccountID     string `json:"account_id"`
	AccountHandle string `json:"account_handle,omitempty"`
	IsActive      bool   `json:"is_active"`
}

func toAccountDTO(a social.AccountRef) AccountDTO {
	return AccountDTO{
		Platform:      string(a.Platform),
		AccountID:     a.AccountID,
		AccountHandle: a.AccountHandle,
		IsActive:      a.IsActive,
	}
}

// ConnectAccountRequest connects or updates a platform account.
type ConnectAccountRequest struct {
	Platform      string `json:"platform"`
	AccountID     string `json:"account_id"`
	AccountHandle string `json:"account_handle,omitempty"`
	IsActive      *bool  `json:"is_active,omitempty"`
}

// HealthResponse reports process health plus per-platform adapter health.
type HealthResponse struct {
	Status    string                    `json:"status"`
	Platforms map[string]PlatformHealth `json:"platforms,omitempty"`
}

// PlatformHealth is one adapter's health snapshot.
type PlatformHealth struct {
	Healthy     bool      `json:"healthy"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Failures    int       `json:"failures,omitempty"`
}

func toPlatformHealth(h platform.Health) PlatformHealth {
	return PlatformHealth{
		Healthy:     h.Healthy,
		LastSuccess: h.LastSuccess,
		LastError:   h.LastError,
		Failures:    h.Failures,
	}
}
