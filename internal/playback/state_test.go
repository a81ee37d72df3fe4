package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(actions []Action) []ActionKind {
	out := make([]ActionKind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}

func TestTransition_MetadataGatesPrompt(t *testing.T) {
	tests := []struct {
		name        string
		saved       float64
		duration    float64
		wantState   State
		wantActions []ActionKind
	}{
		{
			name:        "no saved position plays immediately",
			saved:       0,
			duration:    5400,
			wantState:   StatePlaying,
			wantActions: []ActionKind{ActionPlay},
		},
		{
			name:        "mid-movie position prompts",
			saved:       1200,
			duration:    5400,
			wantState:   StateAwaitingResumeChoice,
			wantActions: []ActionKind{ActionPrompt},
		},
		{
			name:        "position equal to duration plays from start",
			saved:       5400,
			duration:    5400,
			wantState:   StatePlaying,
			wantActions: []ActionKind{ActionPlay},
		},
		{
			name:        "position beyond duration plays from start",
			saved:       6000,
			duration:    5400,
			wantState:   StatePlaying,
			wantActions: []ActionKind{ActionPlay},
		},
		{
			name:        "zero duration never prompts",
			saved:       1200,
			duration:    0,
			wantState:   StatePlaying,
			wantActions: []ActionKind{ActionPlay},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Machine{State: StateMetadataLoading, Saved: tt.saved}
			next, actions := Transition(m, EventLoadedMetadata{Duration: tt.duration})
			assert.Equal(t, tt.wantState, next.State)
			assert.Equal(t, tt.wantActions, kinds(actions))
		})
	}
}

func TestTransition_RepeatedMetadataIsIgnored(t *testing.T) {
	m := Machine{State: StateMetadataLoading, Saved: 1200}
	m, actions := Transition(m, EventLoadedMetadata{Duration: 5400})
	require.Equal(t, StateAwaitingResumeChoice, m.State)
	require.Equal(t, []ActionKind{ActionPrompt}, kinds(actions))

	// A second metadata signal must not prompt or seek again.
	next, actions := Transition(m, EventLoadedMetadata{Duration: 5400})
	assert.Equal(t, m, next)
	assert.Empty(t, actions)
}

func TestTransition_ContinueSeeksExactlyOnce(t *testing.T) {
	m := Machine{State: StateAwaitingResumeChoice, Saved: 1200, Duration: 5400}

	m, actions := Transition(m, EventContinue{})
	require.Equal(t, StateSeeking, m.State)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionSeekSaved, actions[0].Kind)
	assert.Equal(t, 1200.0, actions[0].Pos)
	assert.True(t, m.Sought)

	// Duplicate choice while seeking is a no-op.
	next, actions := Transition(m, EventContinue{})
	assert.Equal(t, m, next)
	assert.Empty(t, actions)
}

func TestTransition_PlayWaitsForSeeked(t *testing.T) {
	m := Machine{State: StateAwaitingResumeChoice, Saved: 1200, Duration: 5400}
	m, actions := Transition(m, EventContinue{})
	require.NotContains(t, kinds(actions), ActionPlay)

	m, actions = Transition(m, EventSeeked{})
	assert.Equal(t, StatePlaying, m.State)
	assert.Equal(t, []ActionKind{ActionPlay}, kinds(actions))
}

func TestTransition_ContinueBeforeMetadataDefersTheSeek(t *testing.T) {
	m := Machine{State: StateMetadataLoading, Saved: 1200}

	m, actions := Transition(m, EventContinue{})
	require.Empty(t, actions)
	require.True(t, m.ContinuePending)

	m, actions = Transition(m, EventLoadedMetadata{Duration: 5400})
	assert.Equal(t, StateSeeking, m.State)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionSeekSaved, actions[0].Kind)
	assert.Equal(t, 1200.0, actions[0].Pos)
}

func TestTransition_RestartForcesZeroAndPlaysImmediately(t *testing.T) {
	m := Machine{State: StateAwaitingResumeChoice, Saved: 1200, Duration: 5400}

	m, actions := Transition(m, EventRestart{})
	assert.Equal(t, StateRestarting, m.State)
	assert.Equal(t, []ActionKind{ActionSeekZero, ActionPlay}, kinds(actions))
	assert.True(t, m.Sought)

	// The zero-seek settling must not issue a second play.
	m, actions = Transition(m, EventSeeked{})
	assert.Equal(t, StatePlaying, m.State)
	assert.Empty(t, actions)
}

func TestTransition_StraySeekedIsIgnored(t *testing.T) {
	m := Machine{State: StatePlaying, Duration: 5400}
	next, actions := Transition(m, EventSeeked{})
	assert.Equal(t, m, next)
	assert.Empty(t, actions)
}

func TestTransition_TimeUpdatePersistsOnlyDuringPlayback(t *testing.T) {
	playing := Machine{State: StatePlaying, Duration: 5400}
	_, actions := Transition(playing, EventTimeUpdate{Position: 42})
	require.Len(t, actions, 1)
	assert.Equal(t, ActionPersist, actions[0].Kind)
	assert.Equal(t, 42.0, actions[0].Pos)

	waiting := Machine{State: StateAwaitingResumeChoice, Saved: 1200, Duration: 5400}
	_, actions = Transition(waiting, EventTimeUpdate{Position: 42})
	assert.Empty(t, actions)
}

func TestTransition_EndedClearsFromAnyState(t *testing.T) {
	for _, state := range []State{StatePlaying, StateSeeking, StateAwaitingResumeChoice, StateMetadataLoading} {
		t.Run(state.String(), func(t *testing.T) {
			m := Machine{State: state, Saved: 1200, Duration: 5400}
			next, actions := Transition(m, EventEnded{})
			assert.Equal(t, StateEnded, next.State)
			assert.Equal(t, []ActionKind{ActionClear}, kinds(actions))
		})
	}
}
