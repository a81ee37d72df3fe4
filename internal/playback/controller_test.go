// SPDX-License-Identifier: MIT
package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinocore/kinocore/internal/progress"
)

type fakeMedia struct {
	mu    sync.Mutex
	seeks []float64
	plays int
}

func (f *fakeMedia) SeekTo(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
}

func (f *fakeMedia) Play() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
}

func (f *fakeMedia) seekCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seeks)
}

func (f *fakeMedia) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays
}

func newTestController(t *testing.T, store progress.Store, opts Options) (*Controller, *fakeMedia) {
	t.Helper()
	media := &fakeMedia{}
	ctrl, err := NewController(context.Background(), store, media, "7", 42, opts)
	require.NoError(t, err)
	return ctrl, media
}

func TestController_FreshMoviePlaysWithoutPrompt(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()

	prompted := false
	ctrl, media := newTestController(t, store, Options{
		OnPrompt: func(float64) { prompted = true },
	})

	ctrl.OnLoadedMetadata(ctx, 5400)

	assert.False(t, prompted)
	assert.Equal(t, StatePlaying, ctrl.State())
	assert.Equal(t, 0, media.seekCount())
	assert.Equal(t, 1, media.playCount())
}

func TestController_SavedPositionPromptsAfterMetadata(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "7", 42, &progress.Entry{Seconds: 1200}))

	var promptedAt float64
	ctrl, media := newTestController(t, store, Options{
		OnPrompt: func(s float64) { promptedAt = s },
	})
	require.Equal(t, StateMetadataLoading, ctrl.State())

	ctrl.OnLoadedMetadata(ctx, 5400)

	assert.Equal(t, StateAwaitingResumeChoice, ctrl.State())
	assert.Equal(t, 1200.0, promptedAt)
	// Nothing moves until the viewer decides.
	assert.Equal(t, 0, media.seekCount())
	assert.Equal(t, 0, media.playCount())
}

func TestController_ContinueSeeksOnceThenPlays(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "7", 42, &progress.Entry{Seconds: 1200}))

	ctrl, media := newTestController(t, store, Options{})
	ctrl.OnLoadedMetadata(ctx, 5400)
	ctrl.Continue(ctx)

	require.Equal(t, StateSeeking, ctrl.State())
	require.Equal(t, []float64{1200}, media.seeks)
	assert.Equal(t, 0, media.playCount(), "play must wait for the seek to settle")

	// Duplicate choice and late metadata must not seek again.
	ctrl.Continue(ctx)
	ctrl.OnLoadedMetadata(ctx, 5400)
	assert.Equal(t, 1, media.seekCount())

	ctrl.OnSeeked(ctx)
	assert.Equal(t, StatePlaying, ctrl.State())
	assert.Equal(t, 1, media.playCount())
}

func TestController_RestartStartsFromZero(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "7", 42, &progress.Entry{Seconds: 1200}))

	ctrl, media := newTestController(t, store, Options{})
	ctrl.OnLoadedMetadata(ctx, 5400)
	ctrl.Restart(ctx)

	assert.Equal(t, []float64{0}, media.seeks)
	assert.Equal(t, 1, media.playCount())

	ctrl.OnSeeked(ctx)
	assert.Equal(t, StatePlaying, ctrl.State())
	assert.Equal(t, 1, media.playCount(), "settling the zero-seek must not replay")
}

func TestController_TimeUpdatesPersistProgress(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()

	ctrl, _ := newTestController(t, store, Options{})
	ctrl.OnLoadedMetadata(ctx, 5400)
	ctrl.OnTimeUpdate(ctx, 17.5)

	entry, err := store.Get(ctx, "7", 42)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 17.5, entry.Seconds)
	assert.Equal(t, 5400.0, entry.Duration)
}

func TestController_PersistIntervalBoundsWrites(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()

	ctrl, _ := newTestController(t, store, Options{PersistInterval: time.Hour})
	ctrl.OnLoadedMetadata(ctx, 5400)

	ctrl.OnTimeUpdate(ctx, 1)
	ctrl.OnTimeUpdate(ctx, 2)
	ctrl.OnTimeUpdate(ctx, 3)

	entry, err := store.Get(ctx, "7", 42)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1.0, entry.Seconds, "only the first write inside the interval goes through")
}

func TestController_EndedClearsEntry(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "7", 42, &progress.Entry{Seconds: 5100}))

	ctrl, _ := newTestController(t, store, Options{})
	ctrl.OnLoadedMetadata(ctx, 5400)
	ctrl.Continue(ctx)
	ctrl.OnSeeked(ctx)
	ctrl.OnEnded(ctx)

	assert.Equal(t, StateEnded, ctrl.State())
	entry, err := store.Get(ctx, "7", 42)
	require.NoError(t, err)
	assert.Nil(t, entry, "a finished movie must never prompt again")
}

func TestController_ContinueBeforeMetadataIsDeferred(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "7", 42, &progress.Entry{Seconds: 1200}))

	ctrl, media := newTestController(t, store, Options{})
	ctrl.Continue(ctx)
	assert.Equal(t, 0, media.seekCount(), "no seek before the duration is known")

	ctrl.OnLoadedMetadata(ctx, 5400)
	assert.Equal(t, StateSeeking, ctrl.State())
	assert.Equal(t, []float64{1200}, media.seeks)
}

func TestController_GuestsAndUsersDoNotShareEntries(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "guest:abc", 42, &progress.Entry{Seconds: 900}))

	media := &fakeMedia{}
	ctrl, err := NewController(ctx, store, media, "7", 42, Options{})
	require.NoError(t, err)

	ctrl.OnLoadedMetadata(ctx, 5400)
	assert.Equal(t, StatePlaying, ctrl.State(), "another viewer's entry must not trigger a prompt")
}
