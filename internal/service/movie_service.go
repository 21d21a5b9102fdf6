package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/GutnikElina/cinema-api/internal/models"
	"github.com/GutnikElina/cinema-api/internal/repository"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
)

type movieRepository interface {
	List(ctx context.Context, filter models.MovieFilter) ([]models.Movie, int, error)
	FindByID(ctx context.Context, id string) (*models.Movie, error)
	ExistsByTitle(ctx context.Context, title, year, excludeID string) (bool, error)
	Create(ctx context.Context, movie *models.Movie) error
	Update(ctx context.Context, movie *models.Movie) error
	Delete(ctx context.Context, id string) error
}

// ListingCache stores rendered catalog listings between requests.
type ListingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string)
}

// CreateMovieRequest captures fields for adding a movie to the catalog.
type CreateMovieRequest struct {
	Title      string `json:"title" validate:"required"`
	Year       string `json:"year" validate:"omitempty,len=4,numeric"`
	Genre      string `json:"genre"`
	Plot       string `json:"plot"`
	Poster     string `json:"poster" validate:"omitempty,url"`
	ImdbRating string `json:"imdb_rating"`
	Runtime    string `json:"runtime"`
}

// UpdateMovieRequest modifies movie fields.
type UpdateMovieRequest struct {
	Title      string `json:"title" validate:"required"`
	Year       string `json:"year" validate:"omitempty,len=4,numeric"`
	Genre      string `json:"genre"`
	Plot       string `json:"plot"`
	Poster     string `json:"poster" validate:"omitempty,url"`
	ImdbRating string `json:"imdb_rating"`
	Runtime    string `json:"runtime"`
}

type cachedMovieList struct {
	Movies []models.Movie `json:"movies"`
	Total  int            `json:"total"`
}

// MovieService handles catalog workflows.
type MovieService struct {
	repo      movieRepository
	cache     ListingCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMovieService creates a new movie service. The cache may be nil.
func NewMovieService(repo movieRepository, cache ListingCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *MovieService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovieService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// List returns paginated movies, serving repeat queries from the cache.
func (s *MovieService) List(ctx context.Context, filter models.MovieFilter) ([]models.Movie, *models.Pagination, error) {
	key := movieListKey(filter)
	if s.cache != nil {
		var cached cachedMovieList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Movies, paginationFor(filter.Page, filter.PageSize, cached.Total), nil
		} else if !appErrors.HasCode(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("movie cache lookup failed", zap.Error(err))
		}
	}

	movies, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list movies")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedMovieList{Movies: movies, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("movie cache store failed", zap.Error(err))
		}
	}

	return movies, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a movie by identifier.
func (s *MovieService) Get(ctx context.Context, id string) (*models.Movie, error) {
	movie, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "movie not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load movie")
	}
	return movie, nil
}

// Create adds a new movie ensuring title/year uniqueness.
func (s *MovieService) Create(ctx context.Context, req CreateMovieRequest) (*models.Movie, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid movie payload")
	}

	req.Title = strings.TrimSpace(req.Title)

	exists, err := s.repo.ExistsByTitle(ctx, req.Title, req.Year, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to check movie title")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "movie already exists")
	}

	movie := &models.Movie{
		Title:      req.Title,
		Year:       req.Year,
		Genre:      req.Genre,
		Plot:       req.Plot,
		Poster:     req.Poster,
		ImdbRating: req.ImdbRating,
		Runtime:    req.Runtime,
	}
	if err := s.repo.Create(ctx, movie); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create movie")
	}

	s.invalidate(ctx)
	return movie, nil
}

// Update modifies an existing movie.
func (s *MovieService) Update(ctx context.Context, id string, req UpdateMovieRequest) (*models.Movie, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid movie payload")
	}

	movie, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	movie.Title = strings.TrimSpace(req.Title)
	movie.Year = req.Year
	movie.Genre = req.Genre
	movie.Plot = req.Plot
	movie.Poster = req.Poster
	movie.ImdbRating = req.ImdbRating
	movie.Runtime = req.Runtime

	if err := s.repo.Update(ctx, movie); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to update movie")
	}

	s.invalidate(ctx)
	return movie, nil
}

// Delete removes a movie from the catalog.
func (s *MovieService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete movie")
	}
	s.invalidate(ctx)
	return nil
}

func (s *MovieService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidatePrefix(ctx, repository.CacheKeyMovies)
	}
}

func movieListKey(filter models.MovieFilter) string {
	return fmt.Sprintf("%s:%s:%s:%d:%d:%s:%s", repository.CacheKeyMovies, filter.Genre, filter.Search, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
