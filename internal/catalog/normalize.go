// SPDX-License-Identifier: MIT
package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// The backend's record shapes drifted across revisions: ids and ratings
// arrive as JSON numbers or strings, posters as "poster" or "posterUrl",
// video URLs as "videoUrl" or "video_url". The flex types and the wire
// structs below absorb that drift at the boundary.

// flexID decodes an id that may be a JSON number or a numeric string.
type flexID int64

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		// Non-numeric placeholder ids from older clients; treat as absent.
		*f = 0
		return nil
	}
	*f = flexID(n)
	return nil
}

// flexFloat decodes a number that may be quoted.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// flexTime decodes an RFC3339 timestamp, tolerating the date-only form.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = flexTime(time.Time{})
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime(t)
			return nil
		}
	}
	*f = flexTime(time.Time{})
	return nil
}

type movieWire struct {
	ID          flexID    `json:"id"`
	Title       string    `json:"title"`
	Genre       string    `json:"genre"`
	Year        flexID    `json:"year"`
	Director    string    `json:"director"`
	Rating      flexFloat `json:"rating"`
	Description string    `json:"description"`
	Poster      string    `json:"poster"`
	PosterURL   string    `json:"posterUrl"`
	VideoURL    string    `json:"videoUrl"`
	VideoURLAlt string    `json:"video_url"`
	ReleaseDate string    `json:"releaseDate"`
	IsPublic    *bool     `json:"isPublic"`
}

func (w movieWire) normalize() Movie {
	poster := w.Poster
	if poster == "" {
		poster = w.PosterURL
	}
	videoURL := w.VideoURL
	if videoURL == "" {
		videoURL = w.VideoURLAlt
	}
	public := true
	if w.IsPublic != nil {
		public = *w.IsPublic
	}
	return Movie{
		ID:          int64(w.ID),
		Title:       w.Title,
		Genre:       w.Genre,
		Year:        int(w.Year),
		Director:    w.Director,
		Rating:      float64(w.Rating),
		Description: w.Description,
		Poster:      poster,
		VideoURL:    videoURL,
		ReleaseDate: w.ReleaseDate,
		Public:      public,
	}
}

type commentWire struct {
	ID        flexID    `json:"id"`
	MovieID   flexID    `json:"movieId"`
	UserID    flexID    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	Rating    flexFloat `json:"rating"`
	CreatedAt flexTime  `json:"createdAt"`
}

func (w commentWire) normalize() Comment {
	return Comment{
		ID:        int64(w.ID),
		MovieID:   int64(w.MovieID),
		UserID:    int64(w.UserID),
		UserName:  w.UserName,
		Text:      w.Text,
		Rating:    float64(w.Rating),
		CreatedAt: time.Time(w.CreatedAt),
	}
}

type favoriteWire struct {
	ID        flexID   `json:"id"`
	UserID    flexID   `json:"userId"`
	MovieID   flexID   `json:"movieId"`
	CreatedAt flexTime `json:"createdAt"`
}

func (w favoriteWire) normalize() Favorite {
	return Favorite{
		ID:        int64(w.ID),
		UserID:    int64(w.UserID),
		MovieID:   int64(w.MovieID),
		CreatedAt: time.Time(w.CreatedAt),
	}
}

func decodeMovie(data []byte) (Movie, error) {
	var w movieWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Movie{}, err
	}
	return w.normalize(), nil
}

func decodeMovies(data []byte) ([]Movie, error) {
	var ws []movieWire
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, err
	}
	out := make([]Movie, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.normalize())
	}
	return out, nil
}

func decodeComment(data []byte) (Comment, error) {
	var w commentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Comment{}, err
	}
	return w.normalize(), nil
}

func decodeComments(data []byte) ([]Comment, error) {
	var ws []commentWire
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, err
	}
	out := make([]Comment, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.normalize())
	}
	return out, nil
}

func decodeFavorite(data []byte) (Favorite, error) {
	var w favoriteWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Favorite{}, err
	}
	return w.normalize(), nil
}

func decodeFavorites(data []byte) ([]Favorite, error) {
	var ws []favoriteWire
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, err
	}
	out := make([]Favorite, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.normalize())
	}
	return out, nil
}
