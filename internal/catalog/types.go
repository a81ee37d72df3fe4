// Package catalog is the boundary to the external movie backend. It owns
// the canonical record shapes, the REST client, and the normalization of
// the wire variants the backend has shipped over time. Nothing outside
// this package branches on wire shape.
package catalog

import "time"

// Movie is the canonical content record.
type Movie struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Genre       string  `json:"genre"`
	Year        int     `json:"year"`
	Director    string  `json:"director"`
	Rating      float64 `json:"rating"`
	Description string  `json:"description"`
	Poster      string  `json:"poster"`
	VideoURL    string  `json:"videoUrl"`
	ReleaseDate string  `json:"releaseDate,omitempty"`
	Public      bool    `json:"isPublic"`
}

// Comment is a rating-bearing comment on a movie.
type Comment struct {
	ID        int64     `json:"id"`
	MovieID   int64     `json:"movieId"`
	UserID    int64     `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	Rating    float64   `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
}

// Favorite is a (viewer, movie) relation. Before the backend confirms the
// relation it carries only a locally generated LocalID; ID is the durable
// identity assigned by the backend.
type Favorite struct {
	ID        int64     `json:"id,omitempty"`
	LocalID   string    `json:"-"`
	UserID    int64     `json:"userId"`
	MovieID   int64     `json:"movieId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Confirmed reports whether the relation has a durable backend identity.
func (f Favorite) Confirmed() bool {
	return f.ID != 0
}
