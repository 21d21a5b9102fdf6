package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GutnikElina/cinema-api/internal/models"
	"github.com/GutnikElina/cinema-api/pkg/config"
)

func testCodec(now *time.Time) *Codec {
	cfg := config.JWTConfig{
		Secret:            "test_secret",
		Issuer:            "cinema-api",
		Expiration:        time.Hour,
		RefreshExpiration: 7 * 24 * time.Hour,
	}
	return NewCodec(cfg).WithClock(func() time.Time { return *now })
}

func TestMintAccessRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(&now)
	user := &models.User{ID: "u1", Username: "alice", Role: models.RoleUser}

	value, expiresAt, err := codec.MintAccess(user)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	claims, err := codec.Validate(value)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
}

func TestValidateAfterExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(&now)
	user := &models.User{ID: "u1", Username: "alice"}

	value, _, err := codec.MintAccess(user)
	require.NoError(t, err)

	// Still valid just before the expiry instant.
	now = now.Add(time.Hour - time.Second)
	_, err = codec.Validate(value)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = codec.Validate(value)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTamperedToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(&now)
	user := &models.User{ID: "u1", Username: "alice"}

	value, _, err := codec.MintAccess(user)
	require.NoError(t, err)

	_, err = codec.Validate(value + "x")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = codec.Validate("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateWrongKey(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(&now)
	other := NewCodec(config.JWTConfig{Secret: "other_secret", Expiration: time.Hour, RefreshExpiration: time.Hour}).
		WithClock(func() time.Time { return now })

	value, _, err := other.MintAccess(&models.User{ID: "u1"})
	require.NoError(t, err)

	_, err = codec.Validate(value)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMintRefreshUniqueness(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(&now)
	user := &models.User{ID: "u1", Username: "alice"}

	first, err := codec.MintRefresh(user)
	require.NoError(t, err)
	second, err := codec.MintRefresh(user)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	claims, err := codec.Validate(first)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Empty(t, claims.Username)
}

func TestExtractSubjectSkipsVerification(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(&now)

	value, err := codec.MintRefresh(&models.User{ID: "u42"})
	require.NoError(t, err)

	// Extraction works even after expiry; it must not be trusted on its own.
	now = now.Add(30 * 24 * time.Hour)
	subject, err := codec.ExtractSubject(value)
	require.NoError(t, err)
	assert.Equal(t, "u42", subject)

	_, err = codec.ExtractSubject("garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
