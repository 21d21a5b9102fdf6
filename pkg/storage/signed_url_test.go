package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadSignerSignAndVerify(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("job-1", "reports/file.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	jobID, path, parsedExpiry, err := signer.Verify(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "reports/file.csv", path)
	assert.Equal(t, expiresAt.Unix(), parsedExpiry.Unix())
}

func TestDownloadSignerRejectsTampering(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)
	token, _, err := signer.Sign("job-1", "sales_20250301.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Verify(token+"x", false)
	assert.ErrorIs(t, err, ErrBadToken)

	other := NewDownloadSigner("another-secret", time.Hour)
	_, _, _, err = other.Verify(token, false)
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestDownloadSignerExpired(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)
	signer.ttl = -time.Minute // force an already-expired token
	token, _, err := signer.Sign("job-1", "reports/file.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Verify(token, false)
	assert.ErrorIs(t, err, ErrTokenExpired)

	jobID, path, _, err := signer.Verify(token, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "reports/file.csv", path)
}
