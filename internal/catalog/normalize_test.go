package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMovie_CanonicalShape(t *testing.T) {
	data := []byte(`{
		"id": 7,
		"title": "Heat",
		"genre": "Crime",
		"year": 1995,
		"director": "Michael Mann",
		"rating": 8.3,
		"poster": "https://img/heat.jpg",
		"videoUrl": "https://cdn/heat.mp4"
	}`)

	m, err := decodeMovie(data)
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.ID)
	assert.Equal(t, "Heat", m.Title)
	assert.Equal(t, 1995, m.Year)
	assert.Equal(t, 8.3, m.Rating)
	assert.Equal(t, "https://img/heat.jpg", m.Poster)
	assert.Equal(t, "https://cdn/heat.mp4", m.VideoURL)
	assert.True(t, m.Public, "isPublic defaults to true when absent")
}

func TestDecodeMovie_VariantShapes(t *testing.T) {
	// Older backend revisions: string id, string rating, posterUrl,
	// snake_case video url, explicit isPublic.
	data := []byte(`{
		"id": "12",
		"title": "Alien",
		"rating": "8.5",
		"posterUrl": "https://img/alien.jpg",
		"video_url": "https://cdn/alien.mp4",
		"isPublic": false
	}`)

	m, err := decodeMovie(data)
	require.NoError(t, err)
	assert.Equal(t, int64(12), m.ID)
	assert.Equal(t, 8.5, m.Rating)
	assert.Equal(t, "https://img/alien.jpg", m.Poster)
	assert.Equal(t, "https://cdn/alien.mp4", m.VideoURL)
	assert.False(t, m.Public)
}

func TestDecodeMovie_PosterFieldWins(t *testing.T) {
	data := []byte(`{"id": 1, "poster": "a.jpg", "posterUrl": "b.jpg"}`)
	m, err := decodeMovie(data)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", m.Poster)
}

func TestDecodeComment_FlexibleFields(t *testing.T) {
	data := []byte(`{
		"id": "301",
		"movieId": "7",
		"userId": 42,
		"userName": "ada",
		"text": "great",
		"rating": "9",
		"createdAt": "2026-03-01T10:30:00Z"
	}`)

	c, err := decodeComment(data)
	require.NoError(t, err)
	assert.Equal(t, int64(301), c.ID)
	assert.Equal(t, int64(7), c.MovieID)
	assert.Equal(t, int64(42), c.UserID)
	assert.Equal(t, 9.0, c.Rating)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), c.CreatedAt)
}

func TestDecodeComment_GarbageRatingIsZero(t *testing.T) {
	c, err := decodeComment([]byte(`{"id": 1, "rating": "not-a-number"}`))
	require.NoError(t, err)
	assert.Zero(t, c.Rating)
}

func TestDecodeFavorite_StringIDs(t *testing.T) {
	// The mock backend variant stored viewer and movie ids as strings.
	f, err := decodeFavorite([]byte(`{"id": 9, "userId": "3", "movieId": "7", "createdAt": "2026-01-02"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9), f.ID)
	assert.Equal(t, int64(3), f.UserID)
	assert.Equal(t, int64(7), f.MovieID)
	assert.True(t, f.Confirmed())
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), f.CreatedAt)
}

func TestDecodeFavorite_PlaceholderIDTreatedAsAbsent(t *testing.T) {
	// Placeholder ids generated by old clients were random base36 strings.
	f, err := decodeFavorite([]byte(`{"id": "kx93jf", "userId": 3, "movieId": 7}`))
	require.NoError(t, err)
	assert.False(t, f.Confirmed())
}

func TestDecodeMovies_Malformed(t *testing.T) {
	_, err := decodeMovies([]byte(`{"not": "an array"}`))
	assert.Error(t, err)
}
