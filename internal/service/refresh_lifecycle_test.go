package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GutnikElina/cinema-api/internal/models"
	"github.com/GutnikElina/cinema-api/internal/token"
	"github.com/GutnikElina/cinema-api/pkg/config"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
)

type mockRefreshStore struct {
	byToken   map[string]*models.RefreshToken
	upsertErr error
	findErr   error
	deleteErr error
}

func newMockRefreshStore() *mockRefreshStore {
	return &mockRefreshStore{byToken: make(map[string]*models.RefreshToken)}
}

func (m *mockRefreshStore) Upsert(ctx context.Context, record *models.RefreshToken) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for value, existing := range m.byToken {
		if existing.UserID == record.UserID {
			delete(m.byToken, value)
		}
	}
	clone := *record
	m.byToken[record.Token] = &clone
	return nil
}

func (m *mockRefreshStore) FindByToken(ctx context.Context, value string) (*models.RefreshToken, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	record, ok := m.byToken[value]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

func (m *mockRefreshStore) FindByUser(ctx context.Context, userID string) (*models.RefreshToken, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, record := range m.byToken {
		if record.UserID == userID {
			return record, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRefreshStore) DeleteByToken(ctx context.Context, value string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.byToken, value)
	return nil
}

func (m *mockRefreshStore) DeleteByUser(ctx context.Context, userID string) error {
	for value, record := range m.byToken {
		if record.UserID == userID {
			delete(m.byToken, value)
		}
	}
	return nil
}

const testRefreshTTL = 7 * 24 * time.Hour

func newTestLifecycle(store *mockRefreshStore, now *time.Time) (*RefreshTokenLifecycle, *token.Codec) {
	codec := token.NewCodec(config.JWTConfig{
		Secret:            "test_secret",
		Issuer:            "cinema-api",
		Expiration:        time.Hour,
		RefreshExpiration: testRefreshTTL,
	}).WithClock(func() time.Time { return *now })
	lifecycle := NewRefreshTokenLifecycle(store, codec, testRefreshTTL, zap.NewNop()).
		WithClock(func() time.Time { return *now })
	return lifecycle, codec
}

func TestEnsureActiveReusesLivingToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockRefreshStore()
	lifecycle, _ := newTestLifecycle(store, &now)
	user := &models.User{ID: "u1", Username: "alice"}

	first, err := lifecycle.EnsureActive(context.Background(), user)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	second, err := lifecycle.EnsureActive(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, store.byToken, 1)
}

func TestEnsureActiveReplacesExpiredToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockRefreshStore()
	lifecycle, _ := newTestLifecycle(store, &now)
	user := &models.User{ID: "u1", Username: "alice"}

	first, err := lifecycle.EnsureActive(context.Background(), user)
	require.NoError(t, err)

	now = now.Add(testRefreshTTL + time.Minute)
	second, err := lifecycle.EnsureActive(context.Background(), user)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = store.FindByToken(context.Background(), first)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEnsureActiveStorageError(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockRefreshStore()
	store.findErr = errors.New("connection refused")
	lifecycle, _ := newTestLifecycle(store, &now)

	_, err := lifecycle.EnsureActive(context.Background(), &models.User{ID: "u1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStorage.Code, appErrors.FromError(err).Code)
}

func TestRedeemUnknownToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockRefreshStore()
	lifecycle, _ := newTestLifecycle(store, &now)

	_, err := lifecycle.Redeem(context.Background(), "never-issued")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRefreshToken.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.byToken)
}

func TestRedeemExpiredTokenDeletesRecord(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockRefreshStore()
	lifecycle, _ := newTestLifecycle(store, &now)
	user := &models.User{ID: "u1", Username: "alice"}

	value, err := lifecycle.EnsureActive(context.Background(), user)
	require.NoError(t, err)

	now = now.Add(testRefreshTTL + time.Minute)
	_, err = lifecycle.Redeem(context.Background(), value)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExpiredRefreshToken.Code, appErrors.FromError(err).Code)

	_, err = store.FindByToken(context.Background(), value)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRedeemValidToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockRefreshStore()
	lifecycle, _ := newTestLifecycle(store, &now)
	user := &models.User{ID: "u1", Username: "alice"}

	value, err := lifecycle.EnsureActive(context.Background(), user)
	require.NoError(t, err)

	userID, err := lifecycle.Redeem(context.Background(), value)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	// The record survives redemption untouched.
	record, err := store.FindByToken(context.Background(), value)
	require.NoError(t, err)
	assert.Equal(t, value, record.Token)
}

func TestRedeemTamperedStoredValue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockRefreshStore()
	lifecycle, _ := newTestLifecycle(store, &now)

	// A row whose value was never signed by us.
	store.byToken["forged"] = &models.RefreshToken{
		ID:        "rt1",
		UserID:    "u1",
		Token:     "forged",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	_, err := lifecycle.Redeem(context.Background(), "forged")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRefreshToken.Code, appErrors.FromError(err).Code)
}

func TestRedeemSubjectMismatch(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockRefreshStore()
	lifecycle, codec := newTestLifecycle(store, &now)

	// Value signed for one user but recorded against another.
	value, err := codec.MintRefresh(&models.User{ID: "u2"})
	require.NoError(t, err)
	store.byToken[value] = &models.RefreshToken{
		ID:        "rt1",
		UserID:    "u1",
		Token:     value,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	_, err = lifecycle.Redeem(context.Background(), value)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRefreshToken.Code, appErrors.FromError(err).Code)
}

func TestRedeemStorageError(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockRefreshStore()
	store.findErr = errors.New("timeout")
	lifecycle, _ := newTestLifecycle(store, &now)

	_, err := lifecycle.Redeem(context.Background(), "anything")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStorage.Code, appErrors.FromError(err).Code)
}
