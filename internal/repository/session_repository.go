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

// SessionRepository provides database access for film sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns sessions joined with movie titles.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.FilmSession, int, error) {
	baseQuery := `FROM sessions s JOIN movies m ON m.id = s.movie_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.MovieID != "" {
		conditions = append(conditions, fmt.Sprintf("s.movie_id = $%d", len(args)+1))
		args = append(args, filter.MovieID)
	}
	if filter.Date != "" {
		conditions = append(conditions, fmt.Sprintf("DATE(s.starts_at) = $%d", len(args)+1))
		args = append(args, filter.Date)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
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

	listQuery := fmt.Sprintf("SELECT s.id, s.movie_id, s.hall, s.starts_at, s.ends_at, s.capacity, s.price, s.created_at, s.updated_at, m.title AS movie_title %s ORDER BY s.starts_at ASC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var sessions []models.FilmSession
	if err := r.db.SelectContext(ctx, &sessions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	return sessions, total, nil
}

// FindByID returns a session by identifier.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.FilmSession, error) {
	const query = `SELECT s.id, s.movie_id, s.hall, s.starts_at, s.ends_at, s.capacity, s.price, s.created_at, s.updated_at, m.title AS movie_title
		FROM sessions s JOIN movies m ON m.id = s.movie_id WHERE s.id = $1 LIMIT 1`
	var session models.FilmSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return &session, nil
}

// HasOverlap reports whether another session occupies the hall in the window.
func (r *SessionRepository) HasOverlap(ctx context.Context, hall int, startsAt, endsAt time.Time, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM sessions WHERE hall = $1 AND id <> $4 AND starts_at < $3 AND ends_at > $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, hall, startsAt, endsAt, excludeID); err != nil {
		return false, fmt.Errorf("check session overlap: %w", err)
	}
	return exists, nil
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.FilmSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO sessions (id, movie_id, hall, starts_at, ends_at, capacity, price, created_at, updated_at)
		VALUES (:id, :movie_id, :hall, :starts_at, :ends_at, :capacity, :price, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update updates mutable fields of a session.
func (r *SessionRepository) Update(ctx context.Context, session *models.FilmSession) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET movie_id = :movie_id, hall = :hall, starts_at = :starts_at, ends_at = :ends_at, capacity = :capacity, price = :price, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sessions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
