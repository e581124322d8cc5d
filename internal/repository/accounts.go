package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/socialpulse/socialpulse-backend/internal/social"
)

// AccountRepository is the directory of connected platform accounts.
type AccountRepository struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

func NewAccountRepository(db *sql.DB, logger *zap.SugaredLogger) *AccountRepository {
	return &AccountRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertAccount connects or updates one platform account for a user.
func (r *AccountRepository) UpsertAccount(ctx context.Context, userID string, account social.AccountRef) error {
	if err := social.RequireUserID(userID); err != nil {
		return err
	}
	if !account.Platform.Valid() {
		return fmt.Errorf("%w: unknown platform %q", social.ErrValidation, account.Platform)
	}
	if account.AccountID == "" {
		return fmt.Errorf("%w: account_id is required", social.ErrValidation)
	}

	query := `
		INSERT INTO social_accounts (user_id, platform, account_id, account_handle, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, platform, account_id) DO UPDATE SET
			account_handle = EXCLUDED.account_handle,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		userID,
		account.Platform,
		account.AccountID,
		account.AccountHandle,
		account.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}

	r.logger.Debugw("Upserted social account",
		"user_id", userID, "platform", account.Platform, "account_id", account.AccountID)
	return nil
}

// ListAccounts returns every account connected for a user, active or not.
func (r *AccountRepository) ListAccounts(ctx context.Context, userID string) ([]social.AccountRef, error) {
	return r.listAccounts(ctx, userID, false)
}

// ListActiveAccounts returns the accounts the aggregator should fetch.
func (r *AccountRepository) ListActiveAccounts(ctx context.Context, userID string) ([]social.AccountRef, error) {
	return r.listAccounts(ctx, userID, true)
}

func (r *AccountRepository) listAccounts(ctx context.Context, userID string, activeOnly bool) ([]social.AccountRef, error) {
	if err := social.RequireUserID(userID); err != nil {
		return nil, err
	}

	query := `
		SELECT platform, account_id, account_handle, is_active
		FROM social_accounts
		WHERE user_id = $1
	`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY platform, account_id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []social.AccountRef
	for rows.Next() {
		var a social.AccountRef
		if err := rows.Scan(&a.Platform, &a.AccountID, &a.AccountHandle, &a.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}
