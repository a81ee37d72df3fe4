// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Playback metrics
	progressWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kinocore_progress_writes_total",
		Help: "Total number of playback positions persisted",
	})

	progressWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kinocore_progress_write_errors_total",
		Help: "Total number of failed playback position writes",
	})

	resumePromptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kinocore_resume_prompts_total",
		Help: "Total number of resume prompts shown",
	})

	resumeChoicesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinocore_resume_choices_total",
		Help: "Resume prompt choices by kind",
	}, []string{"choice"}) // choice=continue|restart

	// Favorite metrics
	favoriteTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinocore_favorite_toggles_total",
		Help: "Favorite toggle attempts by direction and outcome",
	}, []string{"direction", "outcome"}) // direction=on|off outcome=success|failure|dropped

	favoriteRollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kinocore_favorite_rollbacks_total",
		Help: "Total number of optimistic favorite states rolled back",
	})

	// Rating metrics
	ratingRecomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinocore_rating_recompute_total",
		Help: "Rating recomputations by outcome",
	}, []string{"outcome"}) // outcome=success|fetch_error|persist_error

	ratingRecomputeDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kinocore_rating_recompute_duration_seconds",
		Help:    "Time spent recomputing and persisting a movie rating",
		Buckets: prometheus.DefBuckets,
	})
)

func IncProgressWrite()      { progressWritesTotal.Inc() }
func IncProgressWriteError() { progressWriteErrors.Inc() }
func IncResumePrompt()       { resumePromptsTotal.Inc() }

func IncResumeChoice(choice string) { resumeChoicesTotal.WithLabelValues(choice).Inc() }

func IncFavoriteToggle(direction, outcome string) {
	favoriteTogglesTotal.WithLabelValues(direction, outcome).Inc()
}
func IncFavoriteRollback() { favoriteRollbacksTotal.Inc() }

func IncRatingRecompute(outcome string) { ratingRecomputeTotal.WithLabelValues(outcome).Inc() }
func ObserveRatingRecomputeDuration(seconds float64) {
	ratingRecomputeDurationSeconds.Observe(seconds)
}
