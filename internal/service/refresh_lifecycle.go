package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GutnikElina/cinema-api/internal/models"
	"github.com/GutnikElina/cinema-api/internal/token"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
)

type refreshTokenStore interface {
	Upsert(ctx context.Context, record *models.RefreshToken) error
	FindByToken(ctx context.Context, value string) (*models.RefreshToken, error)
	FindByUser(ctx context.Context, userID string) (*models.RefreshToken, error)
	DeleteByToken(ctx context.Context, value string) error
}

// RefreshTokenLifecycle owns every creation and deletion of refresh-token
// records. It reuses a living token across logins, replaces expired ones on
// discovery, and never rotates the value on the refresh path.
type RefreshTokenLifecycle struct {
	store  refreshTokenStore
	codec  *token.Codec
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRefreshTokenLifecycle constructs a lifecycle manager.
func NewRefreshTokenLifecycle(store refreshTokenStore, codec *token.Codec, ttl time.Duration, logger *zap.Logger) *RefreshTokenLifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshTokenLifecycle{
		store:  store,
		codec:  codec,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the lifecycle's time source and returns the manager.
func (l *RefreshTokenLifecycle) WithClock(now func() time.Time) *RefreshTokenLifecycle {
	l.now = now
	return l
}

// EnsureActive returns the user's living refresh token, minting and
// installing a fresh one when none exists or the stored one has expired.
// The atomic upsert replaces an expired row in the same statement, which is
// also the lazy sweep: expired records die the moment they are rediscovered.
func (l *RefreshTokenLifecycle) EnsureActive(ctx context.Context, user *models.User) (string, error) {
	existing, err := l.store.FindByUser(ctx, user.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to look up refresh token")
	}

	now := l.now()
	if existing != nil && !existing.Expired(now) {
		return existing.Token, nil
	}

	value, err := l.codec.MintRefresh(user)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mint refresh token")
	}

	record := &models.RefreshToken{
		UserID:    user.ID,
		Token:     value,
		ExpiresAt: now.Add(l.ttl),
		CreatedAt: now,
	}
	if err := l.store.Upsert(ctx, record); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist refresh token")
	}

	return value, nil
}

// Redeem checks a presented refresh value and returns the owning user id.
// The value is never rotated here; the caller hands the same value back to
// the client alongside the new access token.
func (l *RefreshTokenLifecycle) Redeem(ctx context.Context, value string) (string, error) {
	record, err := l.store.FindByToken(ctx, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrInvalidRefreshToken, "")
		}
		return "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to look up refresh token")
	}

	if record.Expired(l.now()) {
		if err := l.store.DeleteByToken(ctx, value); err != nil {
			l.logger.Warn("failed to delete expired refresh token", zap.Error(err))
		}
		return "", appErrors.Clone(appErrors.ErrExpiredRefreshToken, "")
	}

	claims, err := l.codec.Validate(record.Token)
	if err != nil || claims.Subject != record.UserID {
		// The stored value no longer verifies against the signing key, or
		// names a different owner than the row. Either way the caller only
		// learns that the token is invalid.
		l.logger.Debug("stored refresh token failed verification", zap.String("user_id", record.UserID), zap.Error(err))
		return "", appErrors.Clone(appErrors.ErrInvalidRefreshToken, "")
	}

	return record.UserID, nil
}

// Revoke drops the user's refresh token, forcing re-authentication.
func (l *RefreshTokenLifecycle) Revoke(ctx context.Context, value string) error {
	if err := l.store.DeleteByToken(ctx, value); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete refresh token")
	}
	return nil
}
