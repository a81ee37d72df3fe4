// SPDX-License-Identifier: MIT

// Package rating keeps a movie's aggregate rating consistent with its
// comments. The aggregate is the arithmetic mean of all comment ratings,
// rounded half-up to one decimal, recomputed and persisted after every
// comment mutation.
package rating

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinocore/kinocore/internal/catalog"
	"github.com/kinocore/kinocore/internal/log"
	"github.com/kinocore/kinocore/internal/metrics"
)

// Recalculator derives and persists aggregate movie ratings.
type Recalculator struct {
	client *catalog.Client
	log    zerolog.Logger
}

// NewRecalculator creates a recalculator backed by the given client.
func NewRecalculator(client *catalog.Client) *Recalculator {
	return &Recalculator{
		client: client,
		log:    log.WithComponent("rating"),
	}
}

// Average computes the aggregate rating for a comment set: the mean of
// all ratings rounded half-up to one decimal, 0 for an empty set. A
// missing rating counts as zero rather than being skipped.
func Average(comments []catalog.Comment) float64 {
	if len(comments) == 0 {
		return 0
	}
	var sum float64
	for _, c := range comments {
		sum += c.Rating
	}
	return math.Round(sum/float64(len(comments))*10) / 10
}

// Recompute fetches the movie's full comment set, derives the aggregate,
// persists it on the movie record, and returns the persisted value. The
// empty set persists an explicit 0 so stale aggregates never survive the
// last comment's deletion.
func (r *Recalculator) Recompute(ctx context.Context, movieID int64) (float64, error) {
	start := time.Now()

	comments, err := r.client.CommentsByMovie(ctx, movieID)
	if err != nil {
		metrics.IncRatingRecompute("fetch_error")
		return 0, err
	}

	avg := Average(comments)
	if err := r.client.UpdateMovieRating(ctx, movieID, avg); err != nil {
		metrics.IncRatingRecompute("persist_error")
		return 0, err
	}

	metrics.IncRatingRecompute("success")
	metrics.ObserveRatingRecomputeDuration(time.Since(start).Seconds())
	r.log.Debug().
		Int64("movieID", movieID).
		Float64("rating", avg).
		Int("comments", len(comments)).
		Msg("aggregate rating recomputed")
	return avg, nil
}
