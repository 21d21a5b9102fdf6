package models

import "time"

// FilmSession represents a scheduled screening stored in the sessions table.
type FilmSession struct {
	ID       string    `db:"id" json:"id"`
	MovieID  string    `db:"movie_id" json:"movie_id"`
	Hall     int       `db:"hall" json:"hall"`
	StartsAt time.Time `db:"starts_at" json:"starts_at"`
	EndsAt   time.Time `db:"ends_at" json:"ends_at"`
	Capacity int       `db:"capacity" json:"capacity"`
	Price    string    `db:"price" json:"price"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// MovieTitle is joined in for listings, never written.
	MovieTitle string `db:"movie_title" json:"movie_title,omitempty"`
}

// SessionFilter captures filtering criteria for the session list.
type SessionFilter struct {
	MovieID  string
	Date     string
	Page     int
	PageSize int
}
