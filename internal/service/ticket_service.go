package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/GutnikElina/cinema-api/internal/models"
	"github.com/GutnikElina/cinema-api/internal/repository"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
	"github.com/GutnikElina/cinema-api/pkg/export"
)

type ticketRepository interface {
	List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, int, error)
	FindByID(ctx context.Context, id string) (*models.Ticket, error)
	CountSold(ctx context.Context, sessionID string) (int, error)
	Create(ctx context.Context, ticket *models.Ticket) error
	UpdateStatus(ctx context.Context, id string, status models.TicketStatus, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type sessionLookup interface {
	FindByID(ctx context.Context, id string) (*models.FilmSession, error)
}

// PurchaseTicketRequest captures fields for buying a seat.
type PurchaseTicketRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
	Seat      int    `json:"seat" validate:"required,min=1"`
}

// ConfirmTicketRequest processes a pending ticket.
type ConfirmTicketRequest struct {
	Action string `json:"action" validate:"required,oneof=confirm reject"`
}

// ExportFormat selects the ticket export encoding.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// TicketService handles the ticket purchase and confirmation workflow.
type TicketService struct {
	repo       ticketRepository
	sessions   sessionLookup
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	maxPerUser int
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewTicketService creates a new ticket service.
func NewTicketService(repo ticketRepository, sessions sessionLookup, validate *validator.Validate, logger *zap.Logger) *TicketService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		repo:      repo,
		sessions:  sessions,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithMaxPerUser caps how many live tickets one user may hold. Zero means
// no cap.
func (s *TicketService) WithMaxPerUser(n int) *TicketService {
	s.maxPerUser = n
	return s
}

// List returns paginated tickets for the given filter.
func (s *TicketService) List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, *models.Pagination, error) {
	tickets, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list tickets")
	}
	return tickets, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a ticket by identifier.
func (s *TicketService) Get(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load ticket")
	}
	return ticket, nil
}

// Purchase reserves a seat for the user. The reservation starts PENDING and
// awaits confirmation.
func (s *TicketService) Purchase(ctx context.Context, userID string, req PurchaseTicketRequest) (*models.Ticket, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid purchase payload")
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load session")
	}

	if !session.StartsAt.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session already started")
	}
	if req.Seat > session.Capacity {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("seat exceeds hall capacity of %d", session.Capacity))
	}

	if s.maxPerUser > 0 {
		_, held, err := s.repo.List(ctx, models.TicketFilter{UserID: userID, PageSize: s.maxPerUser})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to count user tickets")
		}
		if held >= s.maxPerUser {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("ticket limit of %d reached", s.maxPerUser))
		}
	}

	sold, err := s.repo.CountSold(ctx, req.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to count sold tickets")
	}
	if sold >= session.Capacity {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is sold out")
	}

	ticket := &models.Ticket{
		UserID:    userID,
		SessionID: req.SessionID,
		Seat:      req.Seat,
		Status:    models.TicketPending,
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrSeatTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "seat already taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create ticket")
	}

	s.logger.Info("ticket purchased", zap.String("ticket_id", ticket.ID), zap.String("session_id", req.SessionID), zap.Int("seat", req.Seat))
	return ticket, nil
}

// Return gives a ticket back. Only the owner can return it, and only before
// the session starts.
func (s *TicketService) Return(ctx context.Context, userID, ticketID string) (*models.Ticket, error) {
	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
	}
	if ticket.Status == models.TicketReturned || ticket.Status == models.TicketCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "ticket already closed")
	}
	if !ticket.SessionStart.IsZero() && !ticket.SessionStart.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session already started")
	}

	if err := s.repo.UpdateStatus(ctx, ticketID, models.TicketReturned, s.now()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to return ticket")
	}
	ticket.Status = models.TicketReturned
	return ticket, nil
}

// Process confirms or rejects a pending ticket.
func (s *TicketService) Process(ctx context.Context, ticketID string, req ConfirmTicketRequest) (*models.Ticket, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confirmation payload")
	}

	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != models.TicketPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "ticket is not pending")
	}

	status := models.TicketConfirmed
	if req.Action == "reject" {
		status = models.TicketCancelled
	}

	if err := s.repo.UpdateStatus(ctx, ticketID, status, s.now()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to process ticket")
	}
	ticket.Status = status
	return ticket, nil
}

// Export renders the user's tickets in the requested format.
func (s *TicketService) Export(ctx context.Context, userID string, format ExportFormat) ([]byte, string, error) {
	tickets, _, err := s.repo.List(ctx, models.TicketFilter{UserID: userID, PageSize: 100})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list tickets")
	}

	rows := make([]export.TicketRow, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, export.TicketRow{
			TicketID:   t.ID,
			MovieTitle: t.MovieTitle,
			Showtime:   t.SessionStart.Format(time.RFC3339),
			Seat:       t.Seat,
			Status:     string(t.Status),
			Price:      t.Price,
			Purchased:  t.PurchasedAt.Format(time.RFC3339),
		})
	}

	switch format {
	case ExportPDF:
		payload, err := s.pdf.Render(rows, "my tickets")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	case ExportCSV:
		payload, err := s.csv.Render(rows)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
