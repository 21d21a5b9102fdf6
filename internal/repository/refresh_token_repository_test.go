package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GutnikElina/cinema-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestUpsertRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshTokenRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	token := &models.RefreshToken{UserID: "u1", Token: "value", ExpiresAt: time.Now().Add(time.Hour)}
	err := repo.Upsert(context.Background(), token)
	require.NoError(t, err)
	assert.NotEmpty(t, token.ID)
	assert.False(t, token.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindRefreshTokenByToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshTokenRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at"}).
		AddRow("rt1", "u1", "value", now.Add(time.Hour), now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, token, expires_at, created_at FROM refresh_tokens WHERE token = $1 LIMIT 1")).
		WithArgs("value").
		WillReturnRows(rows)

	rt, err := repo.FindByToken(context.Background(), "value")
	require.NoError(t, err)
	assert.Equal(t, "u1", rt.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindRefreshTokenNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshTokenRepository(db)

	mock.ExpectQuery("SELECT id, user_id, token").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByToken(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRefreshTokenIdempotent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshTokenRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE token = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteByToken(context.Background(), "gone")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
