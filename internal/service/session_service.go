package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/GutnikElina/cinema-api/internal/models"
	"github.com/GutnikElina/cinema-api/internal/repository"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
)

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.FilmSession, int, error)
	FindByID(ctx context.Context, id string) (*models.FilmSession, error)
	HasOverlap(ctx context.Context, hall int, startsAt, endsAt time.Time, excludeID string) (bool, error)
	Create(ctx context.Context, session *models.FilmSession) error
	Update(ctx context.Context, session *models.FilmSession) error
	Delete(ctx context.Context, id string) error
}

// CreateSessionRequest captures fields for scheduling a screening.
type CreateSessionRequest struct {
	MovieID  string    `json:"movie_id" validate:"required,uuid4"`
	Hall     int       `json:"hall" validate:"required,min=1"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Capacity int       `json:"capacity" validate:"required,min=1,max=500"`
	Price    string    `json:"price" validate:"required"`
}

type cachedSessionList struct {
	Sessions []models.FilmSession `json:"sessions"`
	Total    int                  `json:"total"`
}

// SessionService handles film session scheduling.
type SessionService struct {
	repo      sessionRepository
	movies    movieRepository
	cache     ListingCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService creates a new session service. The cache may be nil.
func NewSessionService(repo sessionRepository, movies movieRepository, cache ListingCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, movies: movies, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// List returns paginated sessions, serving repeat queries from the cache.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.FilmSession, *models.Pagination, error) {
	key := sessionListKey(filter)
	if s.cache != nil {
		var cached cachedSessionList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Sessions, paginationFor(filter.Page, filter.PageSize, cached.Total), nil
		} else if !appErrors.HasCode(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("session cache lookup failed", zap.Error(err))
		}
	}

	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list sessions")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedSessionList{Sessions: sessions, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("session cache store failed", zap.Error(err))
		}
	}

	return sessions, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a session by identifier.
func (s *SessionService) Get(ctx context.Context, id string) (*models.FilmSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load session")
	}
	return session, nil
}

// Create schedules a new session after checking the movie exists and the
// hall is free for the whole window.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*models.FilmSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	if _, err := s.movies.FindByID(ctx, req.MovieID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "movie not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load movie")
	}

	overlap, err := s.repo.HasOverlap(ctx, req.Hall, req.StartsAt, req.EndsAt, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to check hall availability")
	}
	if overlap {
		return nil, appErrors.Clone(appErrors.ErrConflict, "hall is occupied in that window")
	}

	session := &models.FilmSession{
		MovieID:  req.MovieID,
		Hall:     req.Hall,
		StartsAt: req.StartsAt.UTC(),
		EndsAt:   req.EndsAt.UTC(),
		Capacity: req.Capacity,
		Price:    req.Price,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create session")
	}

	s.invalidate(ctx)
	return session, nil
}

// Update reschedules an existing session.
func (s *SessionService) Update(ctx context.Context, id string, req CreateSessionRequest) (*models.FilmSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	overlap, err := s.repo.HasOverlap(ctx, req.Hall, req.StartsAt, req.EndsAt, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to check hall availability")
	}
	if overlap {
		return nil, appErrors.Clone(appErrors.ErrConflict, "hall is occupied in that window")
	}

	session.MovieID = req.MovieID
	session.Hall = req.Hall
	session.StartsAt = req.StartsAt.UTC()
	session.EndsAt = req.EndsAt.UTC()
	session.Capacity = req.Capacity
	session.Price = req.Price

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to update session")
	}

	s.invalidate(ctx)
	return session, nil
}

// Delete removes a session.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete session")
	}
	s.invalidate(ctx)
	return nil
}

func (s *SessionService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidatePrefix(ctx, repository.CacheKeySessions)
	}
}

func sessionListKey(filter models.SessionFilter) string {
	return fmt.Sprintf("%s:%s:%s:%d:%d", repository.CacheKeySessions, filter.MovieID, filter.Date, filter.Page, filter.PageSize)
}
