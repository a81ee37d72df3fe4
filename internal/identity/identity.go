// Package identity provides the viewer context passed to the playback,
// favorite and comment components. It replaces ambient session globals
// with an explicit value hydrated from disk at startup and cleared on
// logout.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kinocore/kinocore/internal/log"
)

const (
	sessionFile = "session.json"
	guestFile   = "guest_id"
)

// ErrNotAuthenticated marks operations that require a logged-in viewer.
var ErrNotAuthenticated = errors.New("identity: viewer is not authenticated")

// Viewer identifies who is watching. Either an authenticated user
// (UserID != 0) or a guest with a stable per-installation id.
type Viewer struct {
	UserID  int64  `json:"userId,omitempty"`
	Name    string `json:"name,omitempty"`
	Token   string `json:"token,omitempty"`
	GuestID string `json:"-"`
}

// Authenticated reports whether the viewer is a logged-in user.
func (v Viewer) Authenticated() bool {
	return v.UserID != 0
}

// Key returns the viewer component of progress keys. Guest keys carry a
// "guest:" prefix so they can never collide with numeric user ids.
func (v Viewer) Key() string {
	if v.Authenticated() {
		return strconv.FormatInt(v.UserID, 10)
	}
	return "guest:" + v.GuestID
}

type sessionRecord struct {
	Viewer  Viewer    `json:"viewer"`
	SavedAt time.Time `json:"savedAt"`
}

// Manager owns the persisted session and the guest identity, both stored
// under the data directory.
type Manager struct {
	dir    string
	logger zerolog.Logger
}

// NewManager creates a manager rooted at dir, creating it if needed.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("identity: create data dir: %w", err)
	}
	return &Manager{dir: dir, logger: log.WithComponent("identity")}, nil
}

// Current returns the active viewer: the persisted session if one exists,
// otherwise a guest viewer with the stable installation id. A malformed
// session file is treated as absent, never as an error.
func (m *Manager) Current() (Viewer, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, sessionFile))
	if err == nil {
		var rec sessionRecord
		if jsonErr := json.Unmarshal(data, &rec); jsonErr == nil && rec.Viewer.Authenticated() {
			return rec.Viewer, nil
		}
		m.logger.Warn().Msg("malformed session file, falling back to guest")
	} else if !os.IsNotExist(err) {
		m.logger.Warn().Err(err).Msg("session file unreadable, falling back to guest")
	}

	guestID, err := m.guestID()
	if err != nil {
		return Viewer{}, err
	}
	return Viewer{GuestID: guestID}, nil
}

// Login persists the viewer session durably.
func (m *Manager) Login(v Viewer) error {
	if !v.Authenticated() {
		return ErrNotAuthenticated
	}
	rec := sessionRecord{Viewer: v, SavedAt: time.Now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("identity: encode session: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(m.dir, sessionFile), data, 0o600); err != nil {
		return fmt.Errorf("identity: write session: %w", err)
	}
	m.logger.Info().Int64("user_id", v.UserID).Msg("session persisted")
	return nil
}

// Logout clears the persisted session. Guest progress and the guest id
// survive logout.
func (m *Manager) Logout() error {
	err := os.Remove(filepath.Join(m.dir, sessionFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("identity: clear session: %w", err)
	}
	m.logger.Info().Msg("session cleared")
	return nil
}

// guestID returns the stable per-installation guest id, creating it on
// first use. The write is atomic so a crash can never leave a truncated id.
func (m *Manager) guestID() (string, error) {
	path := filepath.Join(m.dir, guestFile)
	if data, err := os.ReadFile(path); err == nil {
		if id, parseErr := uuid.ParseBytes(data); parseErr == nil {
			return id.String(), nil
		}
		m.logger.Warn().Msg("malformed guest id, regenerating")
	}

	id := uuid.NewString()
	if err := renameio.WriteFile(path, []byte(id), 0o600); err != nil {
		return "", fmt.Errorf("identity: write guest id: %w", err)
	}
	m.logger.Debug().Msg("generated guest identity")
	return id, nil
}
