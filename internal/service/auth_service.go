package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/GutnikElina/cinema-api/internal/models"
	"github.com/GutnikElina/cinema-api/internal/repository"
	"github.com/GutnikElina/cinema-api/internal/token"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
)

type authUserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AuthService composes credential verification, token minting, and the
// refresh-token lifecycle into the register, login, and refresh operations.
// Every failure crossing its boundary is one of the taxonomy errors.
type AuthService struct {
	users     authUserStore
	lifecycle *RefreshTokenLifecycle
	codec     *token.Codec
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserStore, lifecycle *RefreshTokenLifecycle, codec *token.Codec, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     users,
		lifecycle: lifecycle,
		codec:     codec,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an account and returns the first token pair.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Email:        req.Email,
		Role:         models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create user")
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.issuePair(ctx, user)
}

// Login verifies credentials and returns a token pair. A still-valid refresh
// token from an earlier login is reused unchanged.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Same message as a password mismatch. Which part was wrong
			// must stay invisible to the caller.
			return nil, appErrors.Clone(appErrors.ErrAuthenticationFailed, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrAuthenticationFailed, "")
	}

	return s.issuePair(ctx, user)
}

// Refresh exchanges a refresh token for a new access token. The refresh
// value itself travels back unchanged.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	userID, err := s.lifecycle.Redeem(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidRefreshToken, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load user")
	}

	accessToken, _, err := s.codec.MintAccess(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mint access token")
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: req.RefreshToken,
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
		IssuedAt:     s.now(),
	}, nil
}

// Logout revokes the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return appErrors.Clone(appErrors.ErrValidation, "refresh token required")
	}
	return s.lifecycle.Revoke(ctx, refreshToken)
}

// ValidateAccess parses and verifies an access token for the JWT middleware.
func (s *AuthService) ValidateAccess(value string) (*token.Claims, error) {
	claims, err := s.codec.Validate(value)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

func (s *AuthService) issuePair(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	accessToken, _, err := s.codec.MintAccess(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mint access token")
	}

	refreshToken, err := s.lifecycle.EnsureActive(ctx, user)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
		IssuedAt:     s.now(),
	}, nil
}
