package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/socialpulse/socialpulse-backend/internal/social"
)

// PostRepository persists normalized posts. Engagement columns hold the
// newest snapshot; AI analysis is written once and never overwritten.
type PostRepository struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

func NewPostRepository(db *sql.DB, logger *zap.SugaredLogger) *PostRepository {
	return &PostRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertPosts stores a batch of fetched posts. Posts seen before get their
// engagement numbers and content refreshed; the analysis column is left
// alone so annotations survive re-fetches.
func (r *PostRepository) UpsertPosts(ctx context.Context, userID string, posts []social.Post) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (
			user_id, platform, post_id, content,
			author_id, author_name, author_handle, posted_at,
			likes, shares, comments, views,
			media, hashtags, mentions, url,
			is_repost, original_post_id, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW())
		ON CONFLICT (platform, post_id) DO UPDATE SET
			content = EXCLUDED.content,
			likes = EXCLUDED.likes,
			shares = EXCLUDED.shares,
			comments = EXCLUDED.comments,
			views = EXCLUDED.views,
			media = EXCLUDED.media,
			hashtags = EXCLUDED.hashtags,
			mentions = EXCLUDED.mentions,
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, post := range posts {
		mediaJSON, err := json.Marshal(post.Media)
		if err != nil {
			return fmt.Errorf("failed to marshal media for post %s: %w", post.ID, err)
		}
		hashtagsJSON, err := json.Marshal(post.Hashtags)
		if err != nil {
			return fmt.Errorf("failed to marshal hashtags for post %s: %w", post.ID, err)
		}
		mentionsJSON, err := json.Marshal(post.Mentions)
		if err != nil {
			return fmt.Errorf("failed to marshal mentions for post %s: %w", post.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			userID,
			post.Platform,
			post.ID,
			post.Content,
			post.AuthorID,
			post.AuthorName,
			post.AuthorHandle,
			post.CreatedAt,
			post.Engagement.Likes,
			post.Engagement.Shares,
			post.Engagement.Comments,
			post.Engagement.Views,
			mediaJSON,
			hashtagsJSON,
			mentionsJSON,
			post.URL,
			post.IsRepost,
			nullString(post.OriginalPostID),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert post %s: %w", post.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debugw("Upserted batch of posts", "user_id", userID, "count", len(posts))
	return nil
}

// ListByUser returns the user's persisted posts created at or after since,
// newest first. limit <= 0 means no limit.
func (r *PostRepository) ListByUser(ctx context.Context, userID string, since time.Time, limit int) ([]social.Post, error) {
	query := `
		SELECT platform, post_id, content,
		       author_id, author_name, author_handle, posted_at,
		       likes, shares, comments, views,
		       media, hashtags, mentions, url,
		       is_repost, original_post_id, analysis
		FROM posts
		WHERE user_id = $1 AND posted_at >= $2
		ORDER BY posted_at DESC
	`
	args := []any{userID, since}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []social.Post
	for rows.Next() {
		var (
			post           social.Post
			mediaJSON      []byte
			hashtagsJSON   []byte
			mentionsJSON   []byte
			analysisJSON   []byte
			originalPostID sql.NullString
		)
		err := rows.Scan(
			&post.Platform,
			&post.ID,
			&post.Content,
			&post.AuthorID,
			&post.AuthorName,
			&post.AuthorHandle,
			&post.CreatedAt,
			&post.Engagement.Likes,
			&post.Engagement.Shares,
			&post.Engagement.Comments,
			&post.Engagement.Views,
			&mediaJSON,
			&hashtagsJSON,
			&mentionsJSON,
			&post.URL,
			&post.IsRepost,
			&originalPostID,
			&analysisJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}

		if len(mediaJSON) > 0 {
			if err := json.Unmarshal(mediaJSON, &post.Media); err != nil {
				return nil, fmt.Errorf("failed to unmarshal media for post %s: %w", post.ID, err)
			}
		}
		if len(hashtagsJSON) > 0 {
			if err := json.Unmarshal(hashtagsJSON, &post.Hashtags); err != nil {
				return nil, fmt.Errorf("failed to unmarshal hashtags for post %s: %w", post.ID, err)
			}
		}
		if len(mentionsJSON) > 0 {
			if err := json.Unmarshal(mentionsJSON, &post.Mentions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal mentions for post %s: %w", post.ID, err)
			}
		}
		if len(analysisJSON) > 0 {
			var analysis social.Analysis
			if err := json.Unmarshal(analysisJSON, &analysis); err != nil {
				return nil, fmt.Errorf("failed to unmarshal analysis for post %s: %w", post.ID, err)
			}
			post.Analysis = &analysis
		}
		if originalPostID.Valid {
			post.OriginalPostID = originalPostID.String
		}

		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return posts, nil
}

// ApplyAnalysis stores an AI annotation for a post. The annotation is
// write-once: a post that already has one is left untouched.
func (r *PostRepository) ApplyAnalysis(ctx context.Context, platform social.Platform, postID string, analysis social.Analysis) error {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	query := `
		UPDATE posts
		SET analysis = $1, updated_at = NOW()
		WHERE platform = $2 AND post_id = $3 AND analysis IS NULL
	`
	_, err = r.db.ExecContext(ctx, query, analysisJSON, platform, postID)
	if err != nil {
		return fmt.Errorf("failed to apply analysis: %w", err)
	}
	return nil
}

// ListUserIDs returns every user that has at least one active account, for
// the scheduler's periodic pass.
func (r *PostRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT user_id FROM social_accounts
		WHERE is_active
		ORDER BY user_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user ids: %w", err)
	}

	return userIDs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
