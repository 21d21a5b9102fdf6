package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GutnikElina/cinema-api/internal/models"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
)

type mockSessionRepo struct {
	byID   map[string]*models.FilmSession
	nextID int
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{byID: make(map[string]*models.FilmSession), nextID: 1}
}

func (m *mockSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.FilmSession, int, error) {
	var out []models.FilmSession
	for _, session := range m.byID {
		if filter.MovieID != "" && session.MovieID != filter.MovieID {
			continue
		}
		out = append(out, *session)
	}
	return out, len(out), nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.FilmSession, error) {
	session, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return session, nil
}

func (m *mockSessionRepo) HasOverlap(ctx context.Context, hall int, startsAt, endsAt time.Time, excludeID string) (bool, error) {
	for id, session := range m.byID {
		if id == excludeID || session.Hall != hall {
			continue
		}
		if startsAt.Before(session.EndsAt) && session.StartsAt.Before(endsAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.FilmSession) error {
	session.ID = fmt.Sprintf("s%d", m.nextID)
	m.nextID++
	clone := *session
	m.byID[session.ID] = &clone
	return nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *models.FilmSession) error {
	if _, ok := m.byID[session.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *session
	m.byID[session.ID] = &clone
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

func seedMovieRow(movies *mockMovieRepo, title string) string {
	id := uuid.NewString()
	movies.byID[id] = &models.Movie{ID: id, Title: title}
	return id
}

func sessionRequest(movieID string, hall int, start time.Time) CreateSessionRequest {
	return CreateSessionRequest{
		MovieID:  movieID,
		Hall:     hall,
		StartsAt: start,
		EndsAt:   start.Add(2 * time.Hour),
		Capacity: 80,
		Price:    "12.50",
	}
}

func TestSessionCreate(t *testing.T) {
	repo := newMockSessionRepo()
	movies := newMockMovieRepo()
	movieID := seedMovieRow(movies, "Interstellar")
	svc := NewSessionService(repo, movies, nil, 0, nil, nil)

	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	session, err := svc.Create(context.Background(), sessionRequest(movieID, 1, start))
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, movieID, session.MovieID)
	assert.Equal(t, start, session.StartsAt)
}

func TestSessionCreateMovieMissing(t *testing.T) {
	repo := newMockSessionRepo()
	movies := newMockMovieRepo()
	svc := NewSessionService(repo, movies, nil, 0, nil, nil)

	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), sessionRequest(uuid.NewString(), 1, start))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestSessionCreateHallOverlap(t *testing.T) {
	repo := newMockSessionRepo()
	movies := newMockMovieRepo()
	movieID := seedMovieRow(movies, "Interstellar")
	svc := NewSessionService(repo, movies, nil, 0, nil, nil)

	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), sessionRequest(movieID, 1, start))
	require.NoError(t, err)

	// Same hall, window starts one hour into the first screening.
	_, err = svc.Create(context.Background(), sessionRequest(movieID, 1, start.Add(time.Hour)))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))

	// A different hall at the same time is fine.
	_, err = svc.Create(context.Background(), sessionRequest(movieID, 2, start))
	assert.NoError(t, err)
}

func TestSessionCreateEndsBeforeStart(t *testing.T) {
	repo := newMockSessionRepo()
	movies := newMockMovieRepo()
	movieID := seedMovieRow(movies, "Interstellar")
	svc := NewSessionService(repo, movies, nil, 0, nil, nil)

	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	req := sessionRequest(movieID, 1, start)
	req.EndsAt = start.Add(-time.Hour)
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestSessionUpdateSkipsOwnWindow(t *testing.T) {
	repo := newMockSessionRepo()
	movies := newMockMovieRepo()
	movieID := seedMovieRow(movies, "Interstellar")
	svc := NewSessionService(repo, movies, nil, 0, nil, nil)

	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	session, err := svc.Create(context.Background(), sessionRequest(movieID, 1, start))
	require.NoError(t, err)

	// Rescheduling inside its own window must not conflict with itself.
	req := sessionRequest(movieID, 1, start.Add(30*time.Minute))
	updated, err := svc.Update(context.Background(), session.ID, req)
	require.NoError(t, err)
	assert.Equal(t, start.Add(30*time.Minute), updated.StartsAt)
}

func TestSessionListCachedAndInvalidated(t *testing.T) {
	repo := newMockSessionRepo()
	movies := newMockMovieRepo()
	movieID := seedMovieRow(movies, "Interstellar")
	cache := newMockListingCache()
	svc := NewSessionService(repo, movies, cache, time.Minute, nil, nil)

	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	session, err := svc.Create(context.Background(), sessionRequest(movieID, 1, start))
	require.NoError(t, err)

	filter := models.SessionFilter{Page: 1, PageSize: 20}
	_, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.NotEmpty(t, cache.entries)

	require.NoError(t, svc.Delete(context.Background(), session.ID))
	assert.Empty(t, cache.entries)
}

func TestSessionDeleteNotFound(t *testing.T) {
	repo := newMockSessionRepo()
	movies := newMockMovieRepo()
	svc := NewSessionService(repo, movies, nil, 0, nil, nil)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}
