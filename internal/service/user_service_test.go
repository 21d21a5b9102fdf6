package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/GutnikElina/cinema-api/internal/models"
	"github.com/GutnikElina/cinema-api/internal/repository"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
)

type mockUserRepo struct {
	byID   map[string]*models.User
	nextID int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byID: make(map[string]*models.User), nextID: 1}
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	for _, existing := range m.byID {
		if existing.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
	}
	user.ID = fmt.Sprintf("u%d", m.nextID)
	m.nextID++
	clone := *user
	m.byID[user.ID] = &clone
	return nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, user := range m.byID {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, user := range m.byID {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		out = append(out, *user)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.byID[user.ID]; !ok {
		return sql.ErrNoRows
	}
	for id, existing := range m.byID {
		if id != user.ID && existing.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
	}
	clone := *user
	m.byID[user.ID] = &clone
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	user, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = updatedAt
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

func TestUserCreateAndGet(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, newMockRefreshStore(), nil, nil)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Username: "manager",
		Password: "secret1",
		Role:     models.RoleAdmin,
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))

	loaded, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "manager", loaded.Username)
}

func TestUserCreateDuplicateUsername(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, newMockRefreshStore(), nil, nil)

	req := CreateUserRequest{Username: "manager", Password: "secret1", Role: models.RoleUser}
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestUserUpdateRenameConflict(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, newMockRefreshStore(), nil, nil)

	first, err := svc.Create(context.Background(), CreateUserRequest{Username: "alice", Password: "secret1", Role: models.RoleUser})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateUserRequest{Username: "bob", Password: "secret1", Role: models.RoleUser})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), first.ID, UpdateUserRequest{Username: "bob", Role: models.RoleUser})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestUpdateProfilePasswordChangeRevokesRefreshToken(t *testing.T) {
	repo := newMockUserRepo()
	tokens := newMockRefreshStore()
	svc := NewUserService(repo, tokens, nil, nil)

	user, err := svc.Create(context.Background(), CreateUserRequest{Username: "alice", Password: "secret1", Role: models.RoleUser})
	require.NoError(t, err)

	require.NoError(t, tokens.Upsert(context.Background(), &models.RefreshToken{
		UserID:    user.ID,
		Token:     "refresh-value",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	_, err = svc.UpdateProfile(context.Background(), user.ID, UpdateProfileRequest{
		Username:    "alice",
		NewPassword: "changed1",
	})
	require.NoError(t, err)

	_, err = tokens.FindByUser(context.Background(), user.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	loaded, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(loaded.PasswordHash), []byte("changed1")))
}

func TestUpdateProfileWithoutPasswordKeepsRefreshToken(t *testing.T) {
	repo := newMockUserRepo()
	tokens := newMockRefreshStore()
	svc := NewUserService(repo, tokens, nil, nil)

	user, err := svc.Create(context.Background(), CreateUserRequest{Username: "alice", Password: "secret1", Role: models.RoleUser})
	require.NoError(t, err)

	require.NoError(t, tokens.Upsert(context.Background(), &models.RefreshToken{
		UserID:    user.ID,
		Token:     "refresh-value",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	_, err = svc.UpdateProfile(context.Background(), user.ID, UpdateProfileRequest{Username: "alice2"})
	require.NoError(t, err)

	record, err := tokens.FindByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "refresh-value", record.Token)
}

func TestUserDeleteRevokesRefreshToken(t *testing.T) {
	repo := newMockUserRepo()
	tokens := newMockRefreshStore()
	svc := NewUserService(repo, tokens, nil, nil)

	user, err := svc.Create(context.Background(), CreateUserRequest{Username: "alice", Password: "secret1", Role: models.RoleUser})
	require.NoError(t, err)

	require.NoError(t, tokens.Upsert(context.Background(), &models.RefreshToken{
		UserID:    user.ID,
		Token:     "refresh-value",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, svc.Delete(context.Background(), user.ID))

	_, err = svc.Get(context.Background(), user.ID)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))

	_, err = tokens.FindByUser(context.Background(), user.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
