// SPDX-License-Identifier: MIT
package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockServer provides a configurable in-memory movie backend for testing.
// It serves the same resources as the real backend and supports failure
// injection and request counting per endpoint.
type MockServer struct {
	*httptest.Server
	mu        sync.RWMutex
	movies    map[int64]Movie
	comments  map[int64]Comment
	favorites map[int64]Favorite
	nextID    int64
	failures  map[string]int // remaining forced failures per endpoint key
	requests  map[string]int // request count per endpoint key
}

// NewMockServer creates a mock backend with empty stores.
func NewMockServer() *MockServer {
	m := &MockServer{
		movies:    make(map[int64]Movie),
		comments:  make(map[int64]Comment),
		favorites: make(map[int64]Favorite),
		nextID:    1000,
		failures:  make(map[string]int),
		requests:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /movies", m.handleListMovies)
	mux.HandleFunc("GET /movies/{id}", m.handleGetMovie)
	mux.HandleFunc("PATCH /movies/{id}", m.handlePatchMovie)
	mux.HandleFunc("GET /comments", m.handleListComments)
	mux.HandleFunc("POST /comments", m.handleCreateComment)
	mux.HandleFunc("PATCH /comments/{id}", m.handlePatchComment)
	mux.HandleFunc("DELETE /comments/{id}", m.handleDeleteComment)
	mux.HandleFunc("GET /favorites", m.handleListFavorites)
	mux.HandleFunc("POST /favorites", m.handleCreateFavorite)
	mux.HandleFunc("DELETE /favorites/{id}", m.handleDeleteFavorite)

	m.Server = httptest.NewServer(mux)
	return m
}

// SeedMovie stores a movie record.
func (m *MockServer) SeedMovie(movie Movie) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movies[movie.ID] = movie
}

// SeedComment stores a comment record, assigning an id when absent.
func (m *MockServer) SeedComment(c Comment) Comment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		m.nextID++
		c.ID = m.nextID
	}
	m.comments[c.ID] = c
	return c
}

// SeedFavorite stores a favorite relation, assigning an id when absent.
func (m *MockServer) SeedFavorite(f Favorite) Favorite {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.ID == 0 {
		m.nextID++
		f.ID = m.nextID
	}
	m.favorites[f.ID] = f
	return f
}

// Movie returns the stored movie record.
func (m *MockServer) Movie(id int64) (Movie, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mv, ok := m.movies[id]
	return mv, ok
}

// FavoriteCount returns the number of stored favorite relations.
func (m *MockServer) FavoriteCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.favorites)
}

// FailNext forces the next n requests to the endpoint key (e.g.
// "POST /favorites") to fail with HTTP 500.
func (m *MockServer) FailNext(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key] = n
}

// Requests returns how many requests hit the endpoint key.
func (m *MockServer) Requests(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[key]
}

// shouldFail counts the request and consumes a forced failure if armed.
// Callers must hold the write lock.
func (m *MockServer) shouldFail(key string) bool {
	m.requests[key]++
	if m.failures[key] > 0 {
		m.failures[key]--
		return true
	}
	return false
}

func (m *MockServer) handleListMovies(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	if m.shouldFail("GET /movies") {
		m.mu.Unlock()
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	query := r.URL.Query().Get("q")
	out := make([]Movie, 0, len(m.movies))
	for _, mv := range m.movies {
		if query == "" || containsFold(mv.Title, query) {
			out = append(out, mv)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, out)
}

func (m *MockServer) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	m.mu.Lock()
	fail := m.shouldFail("GET /movies/{id}")
	mv, ok := m.movies[id]
	m.mu.Unlock()

	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, mv)
}

func (m *MockServer) handlePatchMovie(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	var patch struct {
		Rating *float64 `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	fail := m.shouldFail("PATCH /movies/{id}")
	mv, ok := m.movies[id]
	if !fail && ok && patch.Rating != nil {
		mv.Rating = *patch.Rating
		m.movies[id] = mv
	}
	m.mu.Unlock()

	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, mv)
}

func (m *MockServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	movieID, _ := strconv.ParseInt(r.URL.Query().Get("movieId"), 10, 64)

	m.mu.Lock()
	fail := m.shouldFail("GET /comments")
	out := make([]Comment, 0)
	for _, c := range m.comments {
		if movieID == 0 || c.MovieID == movieID {
			out = append(out, c)
		}
	}
	m.mu.Unlock()

	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	writeJSON(w, out)
}

func (m *MockServer) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var c Comment
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	fail := m.shouldFail("POST /comments")
	if !fail {
		m.nextID++
		c.ID = m.nextID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		m.comments[c.ID] = c
	}
	m.mu.Unlock()

	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, c)
}

func (m *MockServer) handlePatchComment(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	var patch struct {
		Text   *string  `json:"text"`
		Rating *float64 `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	fail := m.shouldFail("PATCH /comments/{id}")
	c, ok := m.comments[id]
	if !fail && ok {
		if patch.Text != nil {
			c.Text = *patch.Text
		}
		if patch.Rating != nil {
			c.Rating = *patch.Rating
		}
		m.comments[id] = c
	}
	m.mu.Unlock()

	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, c)
}

func (m *MockServer) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	m.mu.Lock()
	fail := m.shouldFail("DELETE /comments/{id}")
	_, ok := m.comments[id]
	if !fail && ok {
		delete(m.comments, id)
	}
	m.mu.Unlock()

	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]any{})
}

func (m *MockServer) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	movieID, _ := strconv.ParseInt(r.URL.Query().Get("movieId"), 10, 64)

	m.mu.Lock()
	fail := m.shouldFail("GET /favorites")
	out := make([]Favorite, 0)
	for _, f := range m.favorites {
		if userID != 0 && f.UserID != userID {
			continue
		}
		if movieID != 0 && f.MovieID != movieID {
			continue
		}
		out = append(out, f)
	}
	m.mu.Unlock()

	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, out)
}

func (m *MockServer) handleCreateFavorite(w http.ResponseWriter, r *http.Request) {
	var f Favorite
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	fail := m.shouldFail("POST /favorites")
	if !fail {
		m.nextID++
		f.ID = m.nextID
		if f.CreatedAt.IsZero() {
			f.CreatedAt = time.Now().UTC()
		}
		m.favorites[f.ID] = f
	}
	m.mu.Unlock()

	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, f)
}

func (m *MockServer) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	m.mu.Lock()
	fail := m.shouldFail("DELETE /favorites/{id}")
	_, ok := m.favorites[id]
	if !fail && ok {
		delete(m.favorites, id)
	}
	m.mu.Unlock()

	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]any{})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
