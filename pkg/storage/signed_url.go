package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBadToken reports a malformed or forged download token.
	ErrBadToken = errors.New("invalid download token")
	// ErrTokenExpired reports a token past its expiry timestamp.
	ErrTokenExpired = errors.New("download token expired")
)

// DownloadSigner mints and verifies HMAC-signed download tokens so report
// files can be fetched without an access token. A token binds the job ID
// and the file path together; changing either invalidates the signature.
type DownloadSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewDownloadSigner builds a signer. TTL defaults to 24h.
func NewDownloadSigner(secret string, ttl time.Duration) *DownloadSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DownloadSigner{secret: []byte(secret), ttl: ttl}
}

// Sign returns a token granting access to one file until the TTL lapses.
func (s *DownloadSigner) Sign(jobID, relPath string) (string, time.Time, error) {
	if jobID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("jobID and relPath required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}

	expiresAt := time.Now().Add(s.ttl)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{jobID, ts, encodedPath, s.signature(jobID, ts, encodedPath)}, ".")
	return token, expiresAt, nil
}

// Verify checks a token and returns the job ID and file path it grants.
// Cleanup passes allowExpired to locate files for tokens past their TTL.
func (s *DownloadSigner) Verify(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrBadToken
	}
	jobID, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.signature(jobID, ts, encodedPath)), []byte(signature)) {
		return "", "", time.Time{}, ErrBadToken
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", time.Time{}, ErrBadToken
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrBadToken
	}

	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}
	return jobID, string(rawPath), expiresAt, nil
}

func (s *DownloadSigner) signature(jobID, ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", jobID, ts, encodedPath)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
