// SPDX-License-Identifier: MIT
package rating

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinocore/kinocore/internal/catalog"
	"github.com/kinocore/kinocore/internal/identity"
)

var testViewer = identity.Viewer{UserID: 7, Name: "alice"}

func TestThread_PostShowsTempThenConfirmsAndRecomputes(t *testing.T) {
	mock, client := newTestSetup(t)
	mock.SeedMovie(catalog.Movie{ID: 42, Title: "Heat"})

	var lists [][]catalog.Comment
	var ratings []float64
	thread := NewThread(client, testViewer, 42, Events{
		CommentsChanged: func(cs []catalog.Comment) { lists = append(lists, cs) },
		RatingChanged:   func(r float64) { ratings = append(ratings, r) },
	})
	require.NoError(t, thread.Load(context.Background()))

	posted, err := thread.Post(context.Background(), "great movie", 8)
	require.NoError(t, err)
	require.True(t, posted.ID > 0)

	// Load, optimistic insert, confirmation.
	require.Len(t, lists, 3)
	require.Len(t, lists[1], 1)
	assert.Negative(t, lists[1][0].ID, "optimistic entry carries a temporary id")
	assert.Equal(t, "great movie", lists[1][0].Text)
	assert.Equal(t, posted.ID, lists[2][0].ID)

	// Exactly one recompute, and the listener got its result.
	assert.Equal(t, 1, mock.Requests("PATCH /movies/{id}"))
	assert.Equal(t, []float64{8.0}, ratings)
	mv, _ := mock.Movie(42)
	assert.Equal(t, 8.0, mv.Rating)
}

func TestThread_PostFailureRemovesTempEntry(t *testing.T) {
	mock, client := newTestSetup(t)
	mock.SeedMovie(catalog.Movie{ID: 42})
	mock.FailNext("POST /comments", 1)

	thread := NewThread(client, testViewer, 42, Events{})
	require.NoError(t, thread.Load(context.Background()))

	_, err := thread.Post(context.Background(), "great movie", 8)
	require.Error(t, err)

	assert.Empty(t, thread.Comments())
	assert.Equal(t, 0, mock.Requests("PATCH /movies/{id}"), "no recompute for a failed mutation")
}

func TestThread_PostValidation(t *testing.T) {
	_, client := newTestSetup(t)

	tests := []struct {
		name    string
		viewer  identity.Viewer
		text    string
		rating  float64
		wantErr error
	}{
		{"guest", identity.Viewer{GuestID: "abc"}, "nice", 8, ErrAuthRequired},
		{"blank text", testViewer, "   ", 8, ErrEmptyText},
		{"rating too low", testViewer, "nice", 0.5, ErrInvalidRating},
		{"rating too high", testViewer, "nice", 11, ErrInvalidRating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thread := NewThread(client, tt.viewer, 42, Events{})
			_, err := thread.Post(context.Background(), tt.text, tt.rating)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestThread_EditUpdatesAndRecomputes(t *testing.T) {
	mock, client := newTestSetup(t)
	mock.SeedMovie(catalog.Movie{ID: 42})
	seeded := mock.SeedComment(catalog.Comment{MovieID: 42, UserID: 7, Text: "ok", Rating: 5, CreatedAt: time.Now()})

	var ratings []float64
	thread := NewThread(client, testViewer, 42, Events{
		RatingChanged: func(r float64) { ratings = append(ratings, r) },
	})
	require.NoError(t, thread.Load(context.Background()))

	updated, err := thread.Edit(context.Background(), seeded.ID, "actually great", 9)
	require.NoError(t, err)
	assert.Equal(t, "actually great", updated.Text)
	assert.Equal(t, 9.0, updated.Rating)

	assert.Equal(t, []float64{9.0}, ratings)
	assert.Equal(t, 1, mock.Requests("PATCH /movies/{id}"))
}

func TestThread_EditFailureRollsBack(t *testing.T) {
	mock, client := newTestSetup(t)
	mock.SeedMovie(catalog.Movie{ID: 42})
	seeded := mock.SeedComment(catalog.Comment{MovieID: 42, UserID: 7, Text: "ok", Rating: 5, CreatedAt: time.Now()})
	mock.FailNext("PATCH /comments/{id}", 1)

	thread := NewThread(client, testViewer, 42, Events{})
	require.NoError(t, thread.Load(context.Background()))

	_, err := thread.Edit(context.Background(), seeded.ID, "actually great", 9)
	require.Error(t, err)

	cs := thread.Comments()
	require.Len(t, cs, 1)
	assert.Equal(t, "ok", cs[0].Text)
	assert.Equal(t, 5.0, cs[0].Rating)
}

func TestThread_DeleteRemovesAndRecomputes(t *testing.T) {
	mock, client := newTestSetup(t)
	mock.SeedMovie(catalog.Movie{ID: 42, Rating: 6.5})
	first := mock.SeedComment(catalog.Comment{MovieID: 42, UserID: 7, Rating: 5, Text: "meh", CreatedAt: time.Now().Add(-time.Hour)})
	mock.SeedComment(catalog.Comment{MovieID: 42, UserID: 9, Rating: 8, Text: "good", CreatedAt: time.Now()})

	var ratings []float64
	thread := NewThread(client, testViewer, 42, Events{
		RatingChanged: func(r float64) { ratings = append(ratings, r) },
	})
	require.NoError(t, thread.Load(context.Background()))

	require.NoError(t, thread.Delete(context.Background(), first.ID))

	assert.Len(t, thread.Comments(), 1)
	assert.Equal(t, []float64{8.0}, ratings)
	mv, _ := mock.Movie(42)
	assert.Equal(t, 8.0, mv.Rating)
}

func TestThread_DeleteFailureRestoresEntry(t *testing.T) {
	mock, client := newTestSetup(t)
	mock.SeedMovie(catalog.Movie{ID: 42})
	older := mock.SeedComment(catalog.Comment{MovieID: 42, UserID: 7, Rating: 5, Text: "meh", CreatedAt: time.Now().Add(-time.Hour)})
	mock.SeedComment(catalog.Comment{MovieID: 42, UserID: 9, Rating: 8, Text: "good", CreatedAt: time.Now()})
	mock.FailNext("DELETE /comments/{id}", 1)

	thread := NewThread(client, testViewer, 42, Events{})
	require.NoError(t, thread.Load(context.Background()))

	err := thread.Delete(context.Background(), older.ID)
	require.Error(t, err)

	cs := thread.Comments()
	require.Len(t, cs, 2)
	// Restored at its chronological position, newest first.
	assert.Equal(t, "good", cs[0].Text)
	assert.Equal(t, "meh", cs[1].Text)
	assert.Equal(t, 0, mock.Requests("PATCH /movies/{id}"))
}

func TestThread_DeleteLastCommentZeroesAggregate(t *testing.T) {
	mock, client := newTestSetup(t)
	mock.SeedMovie(catalog.Movie{ID: 42, Rating: 5.0})
	only := mock.SeedComment(catalog.Comment{MovieID: 42, UserID: 7, Rating: 5, Text: "meh", CreatedAt: time.Now()})

	thread := NewThread(client, testViewer, 42, Events{})
	require.NoError(t, thread.Load(context.Background()))
	require.NoError(t, thread.Delete(context.Background(), only.ID))

	mv, _ := mock.Movie(42)
	assert.Equal(t, 0.0, mv.Rating)
}
