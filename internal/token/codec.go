package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/GutnikElina/cinema-api/internal/models"
	"github.com/GutnikElina/cinema-api/pkg/config"
)

// ErrTokenInvalid is returned for every verification failure. Callers must
// not learn whether a token was expired, malformed, or tampered with.
var ErrTokenInvalid = errors.New("token invalid")

// Claims is the JWT payload carried by access tokens. Refresh values reuse
// the registered claims only.
type Claims struct {
	UserID   string          `json:"user_id,omitempty"`
	Username string          `json:"username,omitempty"`
	Role     models.UserRole `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Codec mints and verifies both token classes. It performs pure computation
// and is safe for concurrent use.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec builds a codec from the JWT configuration.
func NewCodec(cfg config.JWTConfig) *Codec {
	return &Codec{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.Expiration,
		refreshTTL: cfg.RefreshExpiration,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the codec's time source and returns the codec.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// AccessTTL exposes the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// MintAccess signs a short-lived access token for the user.
func (c *Codec) MintAccess(user *models.User) (string, time.Time, error) {
	issuedAt := c.now()
	expiresAt := issuedAt.Add(c.accessTTL)
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   user.ID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// MintRefresh signs a long-lived refresh value for the user. The uuid jti
// makes every value unique even for back-to-back mints within one second.
func (c *Codec) MintRefresh(user *models.User) (string, error) {
	issuedAt := c.now()
	claims := &jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   user.ID,
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.refreshTTL)),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, signing method, and lifetime. On any failure
// it returns ErrTokenInvalid without detail.
func (c *Codec) Validate(value string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ExtractSubject decodes the subject claim without verifying the signature.
// The result is usable for lookups only, never for authorization.
func (c *Codec) ExtractSubject(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(value, claims); err != nil {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
