package models

import "time"

// Movie represents a catalog entry stored in the movies table.
type Movie struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	Year       string    `db:"year" json:"year,omitempty"`
	Genre      string    `db:"genre" json:"genre,omitempty"`
	Plot       string    `db:"plot" json:"plot,omitempty"`
	Poster     string    `db:"poster" json:"poster,omitempty"`
	ImdbRating string    `db:"imdb_rating" json:"imdb_rating,omitempty"`
	Runtime    string    `db:"runtime" json:"runtime,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// MovieFilter captures filtering criteria for the movie list.
type MovieFilter struct {
	Genre     string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
