// SPDX-License-Identifier: MIT

// Package progress persists last playback positions per (viewer, movie)
// pair. Entries survive navigation and restarts until playback completes
// or the viewer explicitly restarts from the beginning.
package progress

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Supported backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Entry is a saved playback position.
type Entry struct {
	// Seconds is the elapsed playback position, never negative.
	Seconds float64 `json:"seconds"`
	// Duration is the total media duration when known, informational only.
	Duration  float64   `json:"duration,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists playback positions. Implementations are safe for
// concurrent use. Get returns (nil, nil) for absent or unparseable
// entries; malformed stored data never surfaces as an error.
type Store interface {
	Get(ctx context.Context, viewerKey string, movieID int64) (*Entry, error)
	Put(ctx context.Context, viewerKey string, movieID int64, e *Entry) error
	Delete(ctx context.Context, viewerKey string, movieID int64) error
	// List returns all of a viewer's saved positions keyed by movie id.
	List(ctx context.Context, viewerKey string) (map[int64]Entry, error)
	Close() error
}

// Key derives the storage key for a (viewer, movie) pair. Viewer keys are
// either a numeric user id or "guest:<installID>", so the two namespaces
// cannot collide.
func Key(viewerKey string, movieID int64) string {
	return "progress:" + viewerKey + ":" + strconv.FormatInt(movieID, 10)
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend   string
	Dir       string // sqlite/badger data directory
	RedisAddr string
	RedisDB   int
}

// Open creates a progress store for the configured backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		if cfg.Dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSQLiteStore(filepath.Join(cfg.Dir, "progress.sqlite"))
	case BackendBadger:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("progress: badger backend requires a data dir")
		}
		return NewBadgerStore(filepath.Join(cfg.Dir, "progress.badger"))
	case BackendRedis:
		return NewRedisStore(RedisConfig{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("progress: unknown backend %q (supported: sqlite, badger, redis, memory)", cfg.Backend)
	}
}

// sanitize clamps invalid positions; stored values are always usable.
func sanitize(e *Entry) Entry {
	out := *e
	if out.Seconds < 0 {
		out.Seconds = 0
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = time.Now().UTC()
	}
	return out
}

// MemoryStore keeps entries in a map. Used in tests and as the fallback
// when no data directory is available.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Entry)}
}

func (s *MemoryStore) Get(ctx context.Context, viewerKey string, movieID int64) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.data[Key(viewerKey, movieID)]; ok {
		clone := e
		return &clone, nil
	}
	return nil, nil
}

func (s *MemoryStore) Put(ctx context.Context, viewerKey string, movieID int64, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[Key(viewerKey, movieID)] = sanitize(e)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, viewerKey string, movieID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, Key(viewerKey, movieID))
	return nil
}

func (s *MemoryStore) List(ctx context.Context, viewerKey string) (map[int64]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := "progress:" + viewerKey + ":"
	out := make(map[int64]Entry)
	for k, e := range s.data {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			id, err := strconv.ParseInt(k[len(prefix):], 10, 64)
			if err != nil {
				continue
			}
			out[id] = e
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}
