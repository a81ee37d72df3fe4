// SPDX-License-Identifier: MIT

// Package favorite keeps a viewer's favorite relation for one movie in
// sync with the backend, flipping the visible state before the network
// round trip and rolling it back if the round trip fails.
package favorite

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kinocore/kinocore/internal/catalog"
	"github.com/kinocore/kinocore/internal/identity"
	"github.com/kinocore/kinocore/internal/log"
	"github.com/kinocore/kinocore/internal/metrics"
)

// ErrAuthRequired is returned when a guest attempts to toggle.
var ErrAuthRequired = errors.New("favorite: authentication required")

// ErrToggleInFlight is returned when a toggle is already running; the
// duplicate request triggers no network call.
var ErrToggleInFlight = errors.New("favorite: toggle already in flight")

// Listener observes the visible favorite state. A nil relation means not
// favorited. Listeners see optimistic states, confirmations, and
// rollbacks in order.
type Listener func(fav *catalog.Favorite)

// Toggler owns the favorite relation of one (viewer, movie) pair.
type Toggler struct {
	client   *catalog.Client
	viewer   identity.Viewer
	movieID  int64
	listener Listener
	log      zerolog.Logger

	mu       sync.Mutex
	current  *catalog.Favorite
	inFlight bool
	gen      uint64
	closed   bool
}

// New creates a Toggler with unknown state; call Refresh to load the
// confirmed relation from the backend.
func New(client *catalog.Client, viewer identity.Viewer, movieID int64, listener Listener) *Toggler {
	return &Toggler{
		client:   client,
		viewer:   viewer,
		movieID:  movieID,
		listener: listener,
		log: log.WithComponent("favorite").With().
			Int64("movieID", movieID).
			Str("viewer", viewer.Key()).
			Logger(),
	}
}

// Refresh loads the confirmed relation from the backend and discards any
// response still in flight from before the refresh. Guests are never
// favorited.
func (t *Toggler) Refresh(ctx context.Context) error {
	if !t.viewer.Authenticated() {
		t.set(nil)
		return nil
	}
	fav, err := t.client.FavoriteByViewerMovie(ctx, t.viewer.UserID, t.movieID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.gen++
	t.inFlight = false
	t.current = fav
	t.mu.Unlock()
	t.notify(fav)
	return nil
}

// Favorited reports the currently visible state, optimistic included.
func (t *Toggler) Favorited() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// Close detaches the toggler. Responses that arrive afterwards are
// discarded without touching the listener.
func (t *Toggler) Close() {
	t.mu.Lock()
	t.closed = true
	t.gen++
	t.mu.Unlock()
}

// Toggle flips the relation. The visible state changes immediately; the
// backend call runs synchronously and a failure restores the exact prior
// state. A second call while one is running returns ErrToggleInFlight.
func (t *Toggler) Toggle(ctx context.Context) error {
	if !t.viewer.Authenticated() {
		return ErrAuthRequired
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	if t.inFlight {
		t.mu.Unlock()
		t.log.Debug().Msg("toggle dropped, request already in flight")
		metrics.IncFavoriteToggle("unknown", "dropped")
		return ErrToggleInFlight
	}
	t.inFlight = true
	prev := t.current
	gen := t.gen
	t.mu.Unlock()

	if prev == nil {
		return t.add(ctx, gen)
	}
	return t.remove(ctx, gen, prev)
}

func (t *Toggler) add(ctx context.Context, gen uint64) error {
	placeholder := &catalog.Favorite{
		LocalID:   uuid.NewString(),
		UserID:    t.viewer.UserID,
		MovieID:   t.movieID,
		CreatedAt: time.Now().UTC(),
	}
	t.set(placeholder)

	confirmed, err := t.client.CreateFavorite(ctx, t.viewer.UserID, t.movieID)

	t.mu.Lock()
	t.inFlight = false
	stale := t.gen != gen || t.closed
	t.mu.Unlock()
	if stale {
		return nil
	}

	if err != nil {
		// The placeholder never reached the backend; remove it again.
		t.set(nil)
		metrics.IncFavoriteToggle("on", "failure")
		metrics.IncFavoriteRollback()
		t.log.Warn().Err(err).Msg("favorite create failed, rolled back")
		return err
	}
	t.set(confirmed)
	metrics.IncFavoriteToggle("on", "success")
	return nil
}

func (t *Toggler) remove(ctx context.Context, gen uint64, prev *catalog.Favorite) error {
	t.set(nil)

	err := t.client.DeleteFavorite(ctx, prev.ID)

	t.mu.Lock()
	t.inFlight = false
	stale := t.gen != gen || t.closed
	t.mu.Unlock()
	if stale {
		return nil
	}

	if err != nil {
		// Restore the confirmed relation exactly as it was.
		t.set(prev)
		metrics.IncFavoriteToggle("off", "failure")
		metrics.IncFavoriteRollback()
		t.log.Warn().Err(err).Int64("favoriteID", prev.ID).Msg("favorite delete failed, rolled back")
		return err
	}
	metrics.IncFavoriteToggle("off", "success")
	return nil
}

func (t *Toggler) set(fav *catalog.Favorite) {
	t.mu.Lock()
	t.current = fav
	closed := t.closed
	t.mu.Unlock()
	if !closed {
		t.notify(fav)
	}
}

func (t *Toggler) notify(fav *catalog.Favorite) {
	if t.listener != nil {
		t.listener(fav)
	}
}
