package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/GutnikElina/cinema-api/internal/models"
)

// ErrSeatTaken reports a unique-constraint violation on (session_id, seat).
var ErrSeatTaken = errors.New("seat already taken")

// TicketRepository provides database access for tickets.
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository creates a new instance of TicketRepository.
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `t.id, t.user_id, t.session_id, t.seat, t.status, t.purchased_at, t.updated_at,
	m.title AS movie_title, s.starts_at AS session_start, s.price AS price`

// List returns tickets joined with session and movie data.
func (r *TicketRepository) List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, int, error) {
	baseQuery := `FROM tickets t JOIN sessions s ON s.id = t.session_id JOIN movies m ON m.id = s.movie_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("t.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("t.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY t.purchased_at DESC LIMIT %d OFFSET %d", ticketColumns, baseQuery, pageSize, offset)

	var tickets []models.Ticket
	if err := r.db.SelectContext(ctx, &tickets, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list tickets: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	return tickets, total, nil
}

// FindByID returns a ticket by identifier.
func (r *TicketRepository) FindByID(ctx context.Context, id string) (*models.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets t JOIN sessions s ON s.id = t.session_id JOIN movies m ON m.id = s.movie_id WHERE t.id = $1 LIMIT 1`, ticketColumns)
	var ticket models.Ticket
	if err := r.db.GetContext(ctx, &ticket, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find ticket by id: %w", err)
	}
	return &ticket, nil
}

// CountSold counts non-returned tickets for a session.
func (r *TicketRepository) CountSold(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE session_id = $1 AND status NOT IN ('RETURNED', 'CANCELLED')`
	var total int
	if err := r.db.GetContext(ctx, &total, query, sessionID); err != nil {
		return 0, fmt.Errorf("count sold tickets: %w", err)
	}
	return total, nil
}

// SalesSummary aggregates sold seats and revenue per session for reporting.
func (r *TicketRepository) SalesSummary(ctx context.Context) ([]models.SalesRow, error) {
	const query = `SELECT t.session_id, m.title AS movie_title, s.starts_at AS session_start,
			COUNT(*) AS sold, COALESCE(SUM(s.price), 0)::text AS revenue
		FROM tickets t
		JOIN sessions s ON s.id = t.session_id
		JOIN movies m ON m.id = s.movie_id
		WHERE t.status NOT IN ('RETURNED', 'CANCELLED')
		GROUP BY t.session_id, m.title, s.starts_at
		ORDER BY s.starts_at`
	var rows []models.SalesRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}
	return rows, nil
}

// Create inserts a new ticket. The partial unique index on (session_id, seat)
// for active statuses rejects double-booking of a seat.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if ticket.PurchasedAt.IsZero() {
		ticket.PurchasedAt = now
	}
	ticket.UpdatedAt = now

	const query = `INSERT INTO tickets (id, user_id, session_id, seat, status, purchased_at, updated_at)
		VALUES (:id, :user_id, :session_id, :seat, :status, :purchased_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ticket); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrSeatTaken
		}
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

// UpdateStatus transitions a ticket to the given status.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id string, status models.TicketStatus, updatedAt time.Time) error {
	const query = `UPDATE tickets SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, updatedAt); err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	return nil
}

// Delete removes a ticket.
func (r *TicketRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tickets WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return nil
}
