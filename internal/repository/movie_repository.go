package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/GutnikElina/cinema-api/internal/models"
)

// MovieRepository provides database access for the movie catalog.
type MovieRepository struct {
	db *sqlx.DB
}

// NewMovieRepository creates a new instance of MovieRepository.
func NewMovieRepository(db *sqlx.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// List returns movies based on filters with total count.
func (r *MovieRepository) List(ctx context.Context, filter models.MovieFilter) ([]models.Movie, int, error) {
	baseQuery := `FROM movies WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Genre != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(genre) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Genre)+"%")
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"title":      true,
		"year":       true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "title"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, title, year, genre, plot, poster, imdb_rating, runtime, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", baseQuery, sortBy, sortOrder, pageSize, offset)

	var movies []models.Movie
	if err := r.db.SelectContext(ctx, &movies, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list movies: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count movies: %w", err)
	}

	return movies, total, nil
}

// FindByID returns a movie by identifier.
func (r *MovieRepository) FindByID(ctx context.Context, id string) (*models.Movie, error) {
	const query = `SELECT id, title, year, genre, plot, poster, imdb_rating, runtime, created_at, updated_at FROM movies WHERE id = $1 LIMIT 1`
	var movie models.Movie
	if err := r.db.GetContext(ctx, &movie, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find movie by id: %w", err)
	}
	return &movie, nil
}

// ExistsByTitle reports whether a movie with the same title and year exists.
func (r *MovieRepository) ExistsByTitle(ctx context.Context, title, year, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM movies WHERE LOWER(title) = LOWER($1) AND year = $2 AND id <> $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, title, year, excludeID); err != nil {
		return false, fmt.Errorf("check movie title: %w", err)
	}
	return exists, nil
}

// Create inserts a new movie.
func (r *MovieRepository) Create(ctx context.Context, movie *models.Movie) error {
	if movie.ID == "" {
		movie.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if movie.CreatedAt.IsZero() {
		movie.CreatedAt = now
	}
	movie.UpdatedAt = now

	const query = `INSERT INTO movies (id, title, year, genre, plot, poster, imdb_rating, runtime, created_at, updated_at)
		VALUES (:id, :title, :year, :genre, :plot, :poster, :imdb_rating, :runtime, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, movie); err != nil {
		return fmt.Errorf("create movie: %w", err)
	}
	return nil
}

// Update updates mutable fields of a movie.
func (r *MovieRepository) Update(ctx context.Context, movie *models.Movie) error {
	movie.UpdatedAt = time.Now().UTC()
	const query = `UPDATE movies SET title = :title, year = :year, genre = :genre, plot = :plot, poster = :poster, imdb_rating = :imdb_rating, runtime = :runtime, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, movie); err != nil {
		return fmt.Errorf("update movie: %w", err)
	}
	return nil
}

// Delete removes a movie.
func (r *MovieRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM movies WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	return nil
}
