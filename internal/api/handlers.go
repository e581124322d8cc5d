package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/socialpulse/socialpulse-backend/internal/analytics"
	"github.com/socialpulse/socialpulse-backend/internal/insights"
	"github.com/socialpulse/socialpulse-backend/internal/platform"
	"github.com/socialpulse/socialpulse-backend/internal/service"
	"github.com/socialpulse/socialpulse-backend/internal/social"
)

// AnalyticsService is the application surface the handlers call into.
type AnalyticsService interface {
	RunAnalyticsPass(ctx context.Context, userID string, days int) (service.PassResult, error)
	GetDashboardAnalytics(ctx context.Context, userID string, days int) (analytics.DashboardAnalytics, error)
	GetEngagementTrend(ctx context.Context, userID string, days int) (service.EngagementTrend, error)
	ListInsights(ctx context.Context, userID, insightType, platform string, limit int) ([]insights.Insight, error)
	ListActiveInsights(ctx context.Context, userID string) ([]insights.Insight, error)
	MarkInsightUsed(ctx context.Context, userID, insightID string) error
	GetInsightMetrics(ctx context.Context, userID string, days int) (insights.Metrics, error)
}

// AccountService manages the connected-account directory.
type AccountService interface {
	ListAccounts(ctx context.Context, userID string) ([]social.AccountRef, error)
	UpsertAccount(ctx context.Context, userID string, account social.AccountRef) error
}

type Handler struct {
	svc      AnalyticsService
	accounts AccountService
	registry *platform.Registry
	logger   *zap.SugaredLogger
}

func NewHandler(svc AnalyticsService, accounts AccountService, registry *platform.Registry, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		svc:      svc,
		accounts: accounts,
		registry: registry,
		logger:   logger,
	}
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// Analytics endpoints

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	days, err := queryInt(r, "days", 0)
	if err != nil || days < 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_DAYS", "days must be a non-negative integer")
		return
	}

	dashboard, err := h.svc.GetDashboardAnalytics(r.Context(), userID, days)
	if err != nil {
		h.writeServiceError(w, err, "DASHBOARD_ERROR")
		return
	}

	h.writeJSON(w, http.StatusOK, DashboardResponse{
		UserID:    userID,
		Days:      days,
		Analytics: dashboard,
	})
}

func (h *Handler) GetTrend(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	days, err := queryInt(r, "days", 0)
	if err != nil || days < 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_DAYS", "days must be a non-negative integer")
		return
	}

	trend, err := h.svc.GetEngagementTrend(r.Context(), userID, days)
	if err != nil {
		h.writeServiceError(w, err, "TREND_ERROR")
		return
	}

	h.writeJSON(w, http.StatusOK, trend)
}

func (h *Handler) RunAnalytics(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	days, err := queryInt(r, "days", 0)
	if err != nil || days < 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_DAYS", "days must be a non-negative integer")
		return
	}

	result, err := h.svc.RunAnalyticsPass(r.Context(), userID, days)
	if err != nil {
		h.writeServiceError(w, err, "ANALYTICS_PASS_ERROR")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// Insight endpoints

func (h *Handler) ListInsights(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
		return
	}

	q := r.URL.Query()
	ins, err := h.svc.ListInsights(r.Context(), userID, q.Get("type"), q.Get("platform"), limit)
	if err != nil {
		h.writeServiceError(w, err, "INSIGHT_LIST_ERROR")
		return
	}

	h.writeJSON(w, http.StatusOK, InsightListResponse{
		UserID:   userID,
		Insights: toInsightDTOs(ins),
	})
}

func (h *Handler) ListActiveInsights(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	ins, err := h.svc.ListActiveInsights(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "INSIGHT_LIST_ERROR")
		return
	}

	h.writeJSON(w, http.StatusOK, InsightListResponse{
		UserID:   userID,
		Insights: toInsightDTOs(ins),
	})
}

func (h *Handler) MarkInsightUsed(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	insightID := chi.URLParam(r, "insightID")

	if err := h.svc.MarkInsightUsed(r.Context(), userID, insightID); err != nil {
		h.writeServiceError(w, err, "INSIGHT_USED_ERROR")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"insight_id": insightID,
		"used":       true,
	})
}

func (h *Handler) GetInsightMetrics(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	days, err := queryInt(r, "days", 0)
	if err != nil || days < 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_DAYS", "days must be a non-negative integer")
		return
	}

	m, err := h.svc.GetInsightMetrics(r.Context(), userID, days)
	if err != nil {
		h.writeServiceError(w, err, "INSIGHT_METRICS_ERROR")
		return
	}

	h.writeJSON(w, http.StatusOK, m)
}

// Account endpoints

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	accounts, err := h.accounts.ListAccounts(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "ACCOUNT_LIST_ERROR")
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"accounts": dtos,
	})
}

func (h *Handler) ConnectAccount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req ConnectAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return
	}

	p, err := social.ParsePlatform(req.Platform)
	if err != nil {
		h.writeServiceError(w, err, "ACCOUNT_CONNECT_ERROR")
		return
	}
	account := social.AccountRef{
		Platform:      p,
		AccountID:     req.AccountID,
		AccountHandle: req.AccountHandle,
		IsActive:      true,
	}
	if req.IsActive != nil {
		account.IsActive = *req.IsActive
	}

	if err := h.accounts.UpsertAccount(r.Context(), userID, account); err != nil {
		h.writeServiceError(w, err, "ACCOUNT_CONNECT_ERROR")
		return
	}

	h.writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// Health and ops endpoints

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.registry != nil {
		resp.Platforms = make(map[string]PlatformHealth)
		for p, health := range h.registry.HealthByPlatform() {
			resp.Platforms[string(p)] = toPlatformHealth(health)
		}
		for _, ph := range resp.Platforms {
			if !ph.Healthy && !ph.LastSuccess.IsZero() {
				resp.Status = "degraded"
				break
			}
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

// Utility methods

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Errorw("API error", "code", code, "message", message, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// writeServiceError maps domain sentinels onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, code string) {
	switch {
	case errors.Is(err, social.ErrValidation):
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, social.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusGatewayTimeout, "TIMEOUT", "request timed out")
	default:
		h.writeError(w, http.StatusInternalServerError, code, err.Error())
	}
}

