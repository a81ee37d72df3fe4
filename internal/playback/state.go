// Package playback drives a single media element through the resume
// protocol: load a saved position, prompt once metadata is known, seek
// exactly once, and persist progress while playing.
package playback

// State is the controller's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateMetadataLoading
	StateAwaitingResumeChoice
	StateSeeking
	StateRestarting
	StatePlaying
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMetadataLoading:
		return "metadata_loading"
	case StateAwaitingResumeChoice:
		return "awaiting_resume_choice"
	case StateSeeking:
		return "seeking"
	case StateRestarting:
		return "restarting"
	case StatePlaying:
		return "playing"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is one of the media or viewer signals driving the machine.
type Event interface{ isEvent() }

// EventLoadedMetadata fires when the media element knows its duration.
type EventLoadedMetadata struct{ Duration float64 }

// EventTimeUpdate fires on the element's periodic position ticks.
type EventTimeUpdate struct{ Position float64 }

// EventSeeked fires when a requested seek has completed.
type EventSeeked struct{}

// EventEnded fires on natural end of media.
type EventEnded struct{}

// EventContinue is the viewer choosing to resume from the saved position.
type EventContinue struct{}

// EventRestart is the viewer choosing to start from the beginning.
type EventRestart struct{}

func (EventLoadedMetadata) isEvent() {}
func (EventTimeUpdate) isEvent()     {}
func (EventSeeked) isEvent()         {}
func (EventEnded) isEvent()          {}
func (EventContinue) isEvent()       {}
func (EventRestart) isEvent()        {}

// ActionKind is a side effect the controller must perform.
type ActionKind int

const (
	ActionPrompt    ActionKind = iota // show the resume prompt
	ActionSeekSaved                   // seek the media element to the saved position
	ActionSeekZero                    // force position zero
	ActionPlay                        // start playback
	ActionPersist                     // write the position to the progress store
	ActionClear                       // delete the persisted entry
)

// Action pairs a kind with its position argument where one applies.
type Action struct {
	Kind ActionKind
	Pos  float64
}

// Machine is the pure state of the resume protocol. It carries no
// references to media elements or stores, so transitions are testable in
// isolation.
type Machine struct {
	State State
	// Saved is the staged resume position read at mount.
	Saved float64
	// Duration is the media duration, zero until metadata arrives.
	Duration float64
	// Sought is the idempotence flag: once set, no further seek to the
	// saved position may be issued for this mount.
	Sought bool
	// ContinuePending records a resume choice that arrived before
	// metadata; the seek is deferred, not failed.
	ContinuePending bool
}

// resumable reports whether the staged position is a usable resume point
// against the known duration.
func (m Machine) resumable() bool {
	return m.Saved > 0 && m.Duration > 0 && m.Saved < m.Duration
}

// Transition computes the next machine and the side effects for one event.
// It is a pure function; callers apply the actions.
func Transition(m Machine, ev Event) (Machine, []Action) {
	switch ev := ev.(type) {
	case EventLoadedMetadata:
		if m.State != StateMetadataLoading {
			// Late or repeated metadata signals change nothing.
			return m, nil
		}
		m.Duration = ev.Duration
		if !m.resumable() {
			// No usable resume point: play from the start, no prompt.
			m.State = StatePlaying
			return m, []Action{{Kind: ActionPlay}}
		}
		if m.ContinuePending && !m.Sought {
			// Choice arrived before metadata; run the deferred seek now.
			m.State = StateSeeking
			m.Sought = true
			return m, []Action{{Kind: ActionSeekSaved, Pos: m.Saved}}
		}
		m.State = StateAwaitingResumeChoice
		return m, []Action{{Kind: ActionPrompt, Pos: m.Saved}}

	case EventContinue:
		switch m.State {
		case StateMetadataLoading:
			// Defer until duration is known; never seek before metadata.
			m.ContinuePending = true
			return m, nil
		case StateAwaitingResumeChoice:
			if m.Sought {
				m.State = StatePlaying
				return m, []Action{{Kind: ActionPlay}}
			}
			m.State = StateSeeking
			m.Sought = true
			return m, []Action{{Kind: ActionSeekSaved, Pos: m.Saved}}
		default:
			return m, nil
		}

	case EventRestart:
		if m.State != StateAwaitingResumeChoice && m.State != StateMetadataLoading {
			return m, nil
		}
		// Mark the seek as spent so a pending staged seek can never fire
		// after an explicit restart. Unlike Continue, playback does not
		// wait for the zero-seek to settle.
		m.Sought = true
		m.ContinuePending = false
		m.State = StateRestarting
		return m, []Action{{Kind: ActionSeekZero}, {Kind: ActionPlay}}

	case EventSeeked:
		switch m.State {
		case StateSeeking:
			m.State = StatePlaying
			return m, []Action{{Kind: ActionPlay}}
		case StateRestarting:
			// Play was already issued on restart.
			m.State = StatePlaying
			return m, nil
		default:
			return m, nil
		}

	case EventTimeUpdate:
		switch m.State {
		case StateRestarting:
			m.State = StatePlaying
			return m, []Action{{Kind: ActionPersist, Pos: ev.Position}}
		case StatePlaying, StateSeeking:
			return m, []Action{{Kind: ActionPersist, Pos: ev.Position}}
		default:
			return m, nil
		}

	case EventEnded:
		m.State = StateEnded
		return m, []Action{{Kind: ActionClear}}
	}
	return m, nil
}
