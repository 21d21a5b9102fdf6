package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/GutnikElina/cinema-api/internal/models"
)

// RefreshTokenRepository provides database access for refresh-token records.
// The refresh_tokens table carries a unique constraint on user_id, so a user
// can never accumulate more than one row.
type RefreshTokenRepository struct {
	db *sqlx.DB
}

// NewRefreshTokenRepository creates a new instance of RefreshTokenRepository.
func NewRefreshTokenRepository(db *sqlx.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Upsert atomically installs the record as the user's only refresh token,
// replacing any previous row. Concurrent logins for the same user therefore
// converge on a single living record.
func (r *RefreshTokenRepository) Upsert(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at)
		VALUES (:id, :user_id, :token, :expires_at, :created_at)
		ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("upsert refresh token: %w", err)
	}
	return nil
}

// FindByToken returns the record holding the given opaque value.
func (r *RefreshTokenRepository) FindByToken(ctx context.Context, value string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, value); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// FindByUser returns the user's record regardless of expiry.
func (r *RefreshTokenRepository) FindByUser(ctx context.Context, userID string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at FROM refresh_tokens WHERE user_id = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token by user: %w", err)
	}
	return &rt, nil
}

// DeleteByToken removes the record holding the given value. Deleting a
// missing value is not an error.
func (r *RefreshTokenRepository) DeleteByToken(ctx context.Context, value string) error {
	const query = `DELETE FROM refresh_tokens WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, query, value); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteByUser removes the user's record, if any.
func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM refresh_tokens WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete refresh token by user: %w", err)
	}
	return nil
}
