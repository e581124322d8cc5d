package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/socialpulse/socialpulse-backend/internal/social"
	"github.com/socialpulse/socialpulse-backend/pkg/kv"
)

const (
	// DefaultValidityDays is how long a saved insight stays valid when the
	// caller does not override it.
	DefaultValidityDays = 7

	// indexMaxLen bounds each per-user index list. Older IDs fall off the
	// tail; their blobs expire via TTL anyway.
	indexMaxLen = 500

	insightKeyPrefix = "sp:insight:"
	indexKeyPrefix   = "sp:insights:"
)

// Store persists insights in a kv backend. Blobs carry a TTL equal to the
// validity window; index lists are bounded and may reference already-expired
// blobs, so every read path skips missing entries.
type Store struct {
	kv     kv.Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewStore(store kv.Store, logger *zap.SugaredLogger) *Store {
	return &Store{
		kv:     store,
		logger: logger,
		now:    time.Now,
	}
}

func insightKey(userID, insightID string) string {
	return insightKeyPrefix + userID + ":" + insightID
}

func userIndexKey(userID string) string {
	return indexKeyPrefix + userID
}

func typeIndexKey(userID string, t Type) string {
	return indexKeyPrefix + userID + ":type:" + string(t)
}

func platformIndexKey(userID string, p social.Platform) string {
	return indexKeyPrefix + userID + ":platform:" + string(p)
}

// newInsightID builds a time-prefixed ID with a random suffix. The millisecond
// prefix keeps IDs roughly sortable; the suffix makes collisions negligible.
func newInsightID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("ins_%d_%s", now.UnixMilli(), suffix)
}

// Save writes the insight under a freshly generated ID and pushes that ID
// onto the user, type and platform indexes. validityDays <= 0 selects the
// default window.
func (s *Store) Save(ctx context.Context, userID string, in Insight, validityDays int) (string, error) {
	if err := social.RequireUserID(userID); err != nil {
		return "", err
	}
	if !in.Type.Valid() {
		return "", fmt.Errorf("%w: unknown insight type %q", social.ErrValidation, in.Type)
	}
	if validityDays <= 0 {
		validityDays = DefaultValidityDays
	}

	now := s.now().UTC()
	in.InsightID = newInsightID(now)
	in.UserID = userID
	in.GeneratedAt = now
	in.ValidUntil = now.Add(time.Duration(validityDays) * 24 * time.Hour)
	in.IsActive = true
	in.Used = false
	in.Confidence = clampConfidence(in.Confidence)

	blob, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal insight: %w", err)
	}

	ttl := in.ValidUntil.Sub(now)
	if err := s.kv.Set(ctx, insightKey(userID, in.InsightID), blob, ttl); err != nil {
		return "", fmt.Errorf("store insight blob: %w", err)
	}

	indexes := []string{userIndexKey(userID), typeIndexKey(userID, in.Type)}
	if in.Platform != "" {
		indexes = append(indexes, platformIndexKey(userID, in.Platform))
	}
	for _, key := range indexes {
		if _, err := s.kv.LPush(ctx, key, []byte(in.InsightID)); err != nil {
			return "", fmt.Errorf("index insight under %s: %w", key, err)
		}
		if err := s.kv.LTrim(ctx, key, 0, indexMaxLen-1); err != nil {
			return "", fmt.Errorf("trim index %s: %w", key, err)
		}
	}

	s.logger.Infow("insight saved",
		"user_id", userID, "insight_id", in.InsightID,
		"type", in.Type, "valid_until", in.ValidUntil)
	return in.InsightID, nil
}

// loadByIndex resolves an index list into insights, newest first. Index
// entries whose blobs have expired are skipped silently.
func (s *Store) loadByIndex(ctx context.Context, userID, indexKey string, limit int) ([]Insight, error) {
	ids, err := s.kv.LRange(ctx, indexKey, 0, int64(indexMaxLen-1))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []Insight{}, nil
		}
		return nil, fmt.Errorf("read insight index %s: %w", indexKey, err)
	}
	if len(ids) == 0 {
		return []Insight{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = insightKey(userID, string(id))
	}
	blobs, err := s.kv.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("read insight blobs: %w", err)
	}

	out := make([]Insight, 0, len(blobs))
	for i, blob := range blobs {
		if blob == nil {
			continue
		}
		var in Insight
		if err := json.Unmarshal(blob, &in); err != nil {
			s.logger.Warnw("skipping undecodable insight blob",
				"key", keys[i], "error", err)
			continue
		}
		out = append(out, in)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetByUser returns the user's insights, newest first.
func (s *Store) GetByUser(ctx context.Context, userID string, limit int) ([]Insight, error) {
	if err := social.RequireUserID(userID); err != nil {
		return nil, err
	}
	return s.loadByIndex(ctx, userID, userIndexKey(userID), limit)
}

// GetByUserAndType returns the user's insights of one type, newest first.
func (s *Store) GetByUserAndType(ctx context.Context, userID string, t Type, limit int) ([]Insight, error) {
	if err := social.RequireUserID(userID); err != nil {
		return nil, err
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown insight type %q", social.ErrValidation, t)
	}
	return s.loadByIndex(ctx, userID, typeIndexKey(userID, t), limit)
}

// GetByUserAndPlatform returns the user's insights for one platform, newest
// first.
func (s *Store) GetByUserAndPlatform(ctx context.Context, userID string, p social.Platform, limit int) ([]Insight, error) {
	if err := social.RequireUserID(userID); err != nil {
		return nil, err
	}
	if !p.Valid() {
		return nil, fmt.Errorf("%w: unknown platform %q", social.ErrValidation, p)
	}
	return s.loadByIndex(ctx, userID, platformIndexKey(userID, p), limit)
}

// GetActive returns insights that are both flagged active and inside their
// validity window. The window check happens here rather than relying on the
// backend having already expired the blob.
func (s *Store) GetActive(ctx context.Context, userID string) ([]Insight, error) {
	all, err := s.GetByUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	out := make([]Insight, 0, len(all))
	for _, in := range all {
		if in.ActiveAt(now) {
			out = append(out, in)
		}
	}
	return out, nil
}

// MarkUsed flags an insight as used. Marking an already-used insight is a
// no-op; a missing or foreign insight yields NotFound. The rewrite keeps the
// blob's remaining TTL.
func (s *Store) MarkUsed(ctx context.Context, userID, insightID string) error {
	if err := social.RequireUserID(userID); err != nil {
		return err
	}
	key := insightKey(userID, insightID)

	blob, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return fmt.Errorf("%w: insight %s for user %s", social.ErrNotFound, insightID, userID)
		}
		return fmt.Errorf("read insight: %w", err)
	}

	var in Insight
	if err := json.Unmarshal(blob, &in); err != nil {
		return fmt.Errorf("decode insight %s: %w", insightID, err)
	}
	if in.Used {
		return nil
	}
	in.Used = true

	updated, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal insight: %w", err)
	}

	ttl, err := s.kv.TTL(ctx, key)
	if err != nil || ttl < 0 {
		ttl = kv.NoTTL
	}
	if err := s.kv.Set(ctx, key, updated, ttl); err != nil {
		return fmt.Errorf("rewrite insight: %w", err)
	}
	return nil
}

// GetMetrics summarizes the insights generated within the trailing days
// window. Percentages and averages round to two decimals.
func (s *Store) GetMetrics(ctx context.Context, userID string, days int) (Metrics, error) {
	if err := social.RequireUserID(userID); err != nil {
		return Metrics{}, err
	}
	if days <= 0 {
		days = DefaultValidityDays
	}

	all, err := s.GetByUser(ctx, userID, 0)
	if err != nil {
		return Metrics{}, err
	}

	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	m := Metrics{InsightsByType: make(map[Type]int)}
	var confidenceSum int64
	var used int
	for _, in := range all {
		if in.GeneratedAt.Before(cutoff) {
			continue
		}
		m.TotalInsights++
		m.InsightsByType[in.Type]++
		confidenceSum += int64(in.Confidence)
		if in.Used {
			used++
		}
	}
	if m.TotalInsights == 0 {
		return m, nil
	}

	total := decimal.NewFromInt(int64(m.TotalInsights))
	m.AverageConfidence = decimal.NewFromInt(confidenceSum).
		Div(total).Round(2).InexactFloat64()
	m.UsageRate = decimal.NewFromInt(int64(used)).
		Div(total).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	return m, nil
}
