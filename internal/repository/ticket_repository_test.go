package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GutnikElina/cinema-api/internal/models"
)

func TestCreateTicket(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	mock.ExpectExec("INSERT INTO tickets").WillReturnResult(sqlmock.NewResult(1, 1))

	ticket := &models.Ticket{UserID: "u1", SessionID: "s1", Seat: 12, Status: models.TicketPending}
	err := repo.Create(context.Background(), ticket)
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTicketSeatTaken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	mock.ExpectExec("INSERT INTO tickets").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Ticket{UserID: "u1", SessionID: "s1", Seat: 12})
	assert.ErrorIs(t, err, ErrSeatTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountSold(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(42)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tickets WHERE session_id = $1 AND status NOT IN ('RETURNED', 'CANCELLED')")).
		WithArgs("s1").
		WillReturnRows(rows)

	total, err := repo.CountSold(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTicketStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("t1", models.TicketReturned, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "t1", models.TicketReturned, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
