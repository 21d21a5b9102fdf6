package models

import "time"

// TicketStatus tracks a ticket through its confirmation workflow.
type TicketStatus string

const (
	TicketPending   TicketStatus = "PENDING"
	TicketConfirmed TicketStatus = "CONFIRMED"
	TicketReturned  TicketStatus = "RETURNED"
	TicketCancelled TicketStatus = "CANCELLED"
)

// Ticket represents a seat reservation stored in the tickets table.
type Ticket struct {
	ID          string       `db:"id" json:"id"`
	UserID      string       `db:"user_id" json:"user_id"`
	SessionID   string       `db:"session_id" json:"session_id"`
	Seat        int          `db:"seat" json:"seat"`
	Status      TicketStatus `db:"status" json:"status"`
	PurchasedAt time.Time    `db:"purchased_at" json:"purchased_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`

	// Joined columns for listings.
	MovieTitle   string    `db:"movie_title" json:"movie_title,omitempty"`
	SessionStart time.Time `db:"session_start" json:"session_start,omitempty"`
	Price        string    `db:"price" json:"price,omitempty"`
}

// TicketFilter captures filtering criteria for ticket listings.
type TicketFilter struct {
	UserID    string
	SessionID string
	Status    *TicketStatus
	Page      int
	PageSize  int
}
