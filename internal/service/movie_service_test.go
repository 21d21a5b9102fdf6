package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GutnikElina/cinema-api/internal/models"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
)

type mockMovieRepo struct {
	byID    map[string]*models.Movie
	nextID  int
	listHit int
}

func newMockMovieRepo() *mockMovieRepo {
	return &mockMovieRepo{byID: make(map[string]*models.Movie), nextID: 1}
}

func (m *mockMovieRepo) List(ctx context.Context, filter models.MovieFilter) ([]models.Movie, int, error) {
	m.listHit++
	var out []models.Movie
	for _, movie := range m.byID {
		out = append(out, *movie)
	}
	return out, len(out), nil
}

func (m *mockMovieRepo) FindByID(ctx context.Context, id string) (*models.Movie, error) {
	movie, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return movie, nil
}

func (m *mockMovieRepo) ExistsByTitle(ctx context.Context, title, year, excludeID string) (bool, error) {
	for id, movie := range m.byID {
		if id == excludeID {
			continue
		}
		if strings.EqualFold(movie.Title, title) && movie.Year == year {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockMovieRepo) Create(ctx context.Context, movie *models.Movie) error {
	movie.ID = fmt.Sprintf("m%d", m.nextID)
	m.nextID++
	clone := *movie
	m.byID[movie.ID] = &clone
	return nil
}

func (m *mockMovieRepo) Update(ctx context.Context, movie *models.Movie) error {
	if _, ok := m.byID[movie.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *movie
	m.byID[movie.ID] = &clone
	return nil
}

func (m *mockMovieRepo) Delete(ctx context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

type mockListingCache struct {
	entries map[string][]byte
}

func newMockListingCache() *mockListingCache {
	return &mockListingCache{entries: make(map[string][]byte)}
}

func (m *mockListingCache) Get(ctx context.Context, key string, dest interface{}) error {
	payload, ok := m.entries[key]
	if !ok {
		return appErrors.Clone(appErrors.ErrCacheMiss, "")
	}
	return json.Unmarshal(payload, dest)
}

func (m *mockListingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = payload
	return nil
}

func (m *mockListingCache) InvalidatePrefix(ctx context.Context, prefix string) {
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
}

func TestMovieCreateAndGet(t *testing.T) {
	repo := newMockMovieRepo()
	svc := NewMovieService(repo, nil, 0, nil, zap.NewNop())

	movie, err := svc.Create(context.Background(), CreateMovieRequest{Title: "Interstellar", Year: "2014", Genre: "Sci-Fi"})
	require.NoError(t, err)
	assert.NotEmpty(t, movie.ID)

	got, err := svc.Get(context.Background(), movie.ID)
	require.NoError(t, err)
	assert.Equal(t, "Interstellar", got.Title)
}

func TestMovieCreateDuplicateTitle(t *testing.T) {
	repo := newMockMovieRepo()
	svc := NewMovieService(repo, nil, 0, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateMovieRequest{Title: "Interstellar", Year: "2014"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateMovieRequest{Title: "interstellar", Year: "2014"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestMovieGetNotFound(t *testing.T) {
	svc := NewMovieService(newMockMovieRepo(), nil, 0, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMovieListServedFromCache(t *testing.T) {
	repo := newMockMovieRepo()
	cache := newMockListingCache()
	svc := NewMovieService(repo, cache, time.Minute, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateMovieRequest{Title: "Interstellar", Year: "2014"})
	require.NoError(t, err)

	filter := models.MovieFilter{Page: 1, PageSize: 10}
	first, _, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	second, _, err := svc.List(context.Background(), filter)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.listHit)
	assert.Equal(t, len(first), len(second))
}

func TestMovieMutationsInvalidateCache(t *testing.T) {
	repo := newMockMovieRepo()
	cache := newMockListingCache()
	svc := NewMovieService(repo, cache, time.Minute, nil, zap.NewNop())

	movie, err := svc.Create(context.Background(), CreateMovieRequest{Title: "Interstellar", Year: "2014"})
	require.NoError(t, err)

	filter := models.MovieFilter{Page: 1, PageSize: 10}
	_, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	require.NotEmpty(t, cache.entries)

	_, err = svc.Update(context.Background(), movie.ID, UpdateMovieRequest{Title: "Interstellar", Year: "2014", Genre: "Drama"})
	require.NoError(t, err)
	assert.Empty(t, cache.entries)

	_, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), movie.ID))
	assert.Empty(t, cache.entries)
}
