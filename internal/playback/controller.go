// SPDX-License-Identifier: MIT
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kinocore/kinocore/internal/log"
	"github.com/kinocore/kinocore/internal/metrics"
	"github.com/kinocore/kinocore/internal/progress"
)

// Media is the slice of a playback surface the controller drives. Seeks
// are asynchronous: the surface must deliver OnSeeked once a SeekTo has
// settled.
type Media interface {
	SeekTo(seconds float64)
	Play()
}

// PromptFunc is invoked when the viewer must choose between resuming and
// restarting. The argument is the saved position in seconds.
type PromptFunc func(savedSeconds float64)

// Options tune a Controller.
type Options struct {
	// PersistInterval bounds how often time updates are written through
	// to the store. Zero means every update is persisted.
	PersistInterval time.Duration
	// OnPrompt is called when the resume prompt should be shown. Nil is
	// allowed; the controller then idles in the choice state until
	// Continue or Restart is called.
	OnPrompt PromptFunc
	Logger   *zerolog.Logger
}

// Controller owns the resume lifecycle of one (viewer, movie) mount. It is
// safe for concurrent use, though media surfaces typically deliver events
// from a single loop.
type Controller struct {
	mu      sync.Mutex
	machine Machine

	store     progress.Store
	media     Media
	viewerKey string
	movieID   int64
	limiter   *rate.Limiter
	onPrompt  PromptFunc
	log       zerolog.Logger
}

// NewController stages the saved position for the given viewer and movie
// and enters the metadata-loading state. No seek or prompt happens until
// the media reports its duration.
func NewController(ctx context.Context, store progress.Store, media Media, viewerKey string, movieID int64, opts Options) (*Controller, error) {
	logger := log.WithComponent("playback")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	limit := rate.Inf
	if opts.PersistInterval > 0 {
		limit = rate.Every(opts.PersistInterval)
	}

	c := &Controller{
		machine:   Machine{State: StateMetadataLoading},
		store:     store,
		media:     media,
		viewerKey: viewerKey,
		movieID:   movieID,
		limiter:   rate.NewLimiter(limit, 1),
		onPrompt:  opts.OnPrompt,
		log:       logger,
	}

	entry, err := store.Get(ctx, viewerKey, movieID)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		c.machine.Saved = entry.Seconds
	}
	c.log.Debug().
		Str("viewer", viewerKey).
		Int64("movieID", movieID).
		Float64("saved", c.machine.Saved).
		Msg("playback mounted")
	return c, nil
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State
}

// SavedPosition reports the position staged at mount.
func (c *Controller) SavedPosition() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Saved
}

// OnLoadedMetadata delivers the media duration. If a usable resume point
// is staged the viewer is prompted; otherwise playback starts from zero.
func (c *Controller) OnLoadedMetadata(ctx context.Context, duration float64) {
	c.dispatch(ctx, EventLoadedMetadata{Duration: duration})
}

// OnTimeUpdate persists the current position, subject to the write-rate
// bound.
func (c *Controller) OnTimeUpdate(ctx context.Context, position float64) {
	c.dispatch(ctx, EventTimeUpdate{Position: position})
}

// OnSeeked signals that a requested seek has settled; playback starts
// only after this arrives.
func (c *Controller) OnSeeked(ctx context.Context) {
	c.dispatch(ctx, EventSeeked{})
}

// OnEnded clears the saved entry so a finished movie never prompts again.
func (c *Controller) OnEnded(ctx context.Context) {
	c.dispatch(ctx, EventEnded{})
}

// Continue is the viewer choosing to resume from the saved position.
// Called before metadata arrives, the seek is deferred until it does.
func (c *Controller) Continue(ctx context.Context) {
	metrics.IncResumeChoice("continue")
	c.dispatch(ctx, EventContinue{})
}

// Restart discards the resume point: position is forced to zero and
// playback starts immediately.
func (c *Controller) Restart(ctx context.Context) {
	metrics.IncResumeChoice("restart")
	c.dispatch(ctx, EventRestart{})
}

func (c *Controller) dispatch(ctx context.Context, ev Event) {
	c.mu.Lock()
	next, actions := Transition(c.machine, ev)
	c.machine = next
	c.mu.Unlock()

	for _, act := range actions {
		c.apply(ctx, act)
	}
}

func (c *Controller) apply(ctx context.Context, act Action) {
	switch act.Kind {
	case ActionPrompt:
		metrics.IncResumePrompt()
		if c.onPrompt != nil {
			c.onPrompt(act.Pos)
		}
	case ActionSeekSaved:
		c.log.Debug().Float64("seconds", act.Pos).Msg("seeking to saved position")
		c.media.SeekTo(act.Pos)
	case ActionSeekZero:
		c.media.SeekTo(0)
	case ActionPlay:
		c.media.Play()
	case ActionPersist:
		c.persist(ctx, act.Pos)
	case ActionClear:
		if err := c.store.Delete(ctx, c.viewerKey, c.movieID); err != nil {
			c.log.Error().Err(err).
				Int64("movieID", c.movieID).
				Msg("failed to clear finished progress")
			return
		}
		c.log.Debug().Int64("movieID", c.movieID).Msg("progress cleared on ended")
	}
}

func (c *Controller) persist(ctx context.Context, position float64) {
	if !c.limiter.Allow() {
		return
	}
	c.mu.Lock()
	duration := c.machine.Duration
	c.mu.Unlock()

	entry := &progress.Entry{
		Seconds:   position,
		Duration:  duration,
		UpdatedAt: time.Now().UTC(),
	}
	if err := c.store.Put(ctx, c.viewerKey, c.movieID, entry); err != nil {
		metrics.IncProgressWriteError()
		c.log.Error().Err(err).
			Int64("movieID", c.movieID).
			Float64("seconds", position).
			Msg("failed to persist progress")
		return
	}
	metrics.IncProgressWrite()
}
