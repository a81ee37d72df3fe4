package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kinocore/kinocore/internal/log"
)

const defaultTimeout = 15 * time.Second

// Options configures a Client.
type Options struct {
	// CatalogURL is the movie/comment backend base.
	CatalogURL string
	// AuthURL is the token-authenticated backend base used for
	// viewer-scoped resources (favorites). Defaults to CatalogURL.
	AuthURL string
	// Token, when set, is sent as a bearer credential on auth-base requests.
	Token string
	// Timeout bounds every request. Defaults to 15s.
	Timeout time.Duration
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Client talks to the external movie backend. It is safe for concurrent use.
type Client struct {
	base     string
	authBase string
	token    string
	http     *http.Client
	log      zerolog.Logger
}

// New creates a backend client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	authBase := opts.AuthURL
	if authBase == "" {
		authBase = opts.CatalogURL
	}
	return &Client{
		base:     strings.TrimRight(opts.CatalogURL, "/"),
		authBase: strings.TrimRight(authBase, "/"),
		token:    opts.Token,
		http:     &http.Client{Timeout: timeout, Transport: transport},
		log:      log.WithComponent("catalog"),
	}
}

// MovieByID fetches a single movie record.
func (c *Client) MovieByID(ctx context.Context, id int64) (*Movie, error) {
	data, err := c.do(ctx, "movie_by_id", http.MethodGet, c.base, "/movies/"+strconv.FormatInt(id, 10), nil, nil)
	if err != nil {
		return nil, err
	}
	m, err := decodeMovie(data)
	if err != nil {
		return nil, c.badResponse("movie_by_id", err)
	}
	return &m, nil
}

// Movies lists the catalog, optionally filtered by a search query.
func (c *Client) Movies(ctx context.Context, query string) ([]Movie, error) {
	var q url.Values
	if query != "" {
		q = url.Values{"q": {query}}
	}
	data, err := c.do(ctx, "movies", http.MethodGet, c.base, "/movies", q, nil)
	if err != nil {
		return nil, err
	}
	movies, err := decodeMovies(data)
	if err != nil {
		return nil, c.badResponse("movies", err)
	}
	return movies, nil
}

// MovieDetail fetches a movie and its comments concurrently.
func (c *Client) MovieDetail(ctx context.Context, id int64) (*Movie, []Comment, error) {
	var (
		movie    *Movie
		comments []Comment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := c.MovieByID(gctx, id)
		movie = m
		return err
	})
	g.Go(func() error {
		cs, err := c.CommentsByMovie(gctx, id)
		comments = cs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return movie, comments, nil
}

// CommentsByMovie fetches all comments for a movie, newest first.
func (c *Client) CommentsByMovie(ctx context.Context, movieID int64) ([]Comment, error) {
	q := url.Values{
		"movieId": {strconv.FormatInt(movieID, 10)},
		"_sort":   {"createdAt"},
		"_order":  {"desc"},
	}
	data, err := c.do(ctx, "comments_by_movie", http.MethodGet, c.base, "/comments", q, nil)
	if err != nil {
		return nil, err
	}
	comments, err := decodeComments(data)
	if err != nil {
		return nil, c.badResponse("comments_by_movie", err)
	}
	return comments, nil
}

// CreateComment posts a new comment and returns the stored record.
func (c *Client) CreateComment(ctx context.Context, comment Comment) (*Comment, error) {
	data, err := c.do(ctx, "create_comment", http.MethodPost, c.base, "/comments", nil, comment)
	if err != nil {
		return nil, err
	}
	stored, err := decodeComment(data)
	if err != nil {
		return nil, c.badResponse("create_comment", err)
	}
	return &stored, nil
}

// UpdateComment patches text and rating of an existing comment.
func (c *Client) UpdateComment(ctx context.Context, id int64, text string, rating float64) (*Comment, error) {
	body := map[string]any{"text": text, "rating": rating}
	data, err := c.do(ctx, "update_comment", http.MethodPatch, c.base, "/comments/"+strconv.FormatInt(id, 10), nil, body)
	if err != nil {
		return nil, err
	}
	stored, err := decodeComment(data)
	if err != nil {
		return nil, c.badResponse("update_comment", err)
	}
	return &stored, nil
}

// DeleteComment removes a comment by id.
func (c *Client) DeleteComment(ctx context.Context, id int64) error {
	_, err := c.do(ctx, "delete_comment", http.MethodDelete, c.base, "/comments/"+strconv.FormatInt(id, 10), nil, nil)
	return err
}

// UpdateMovieRating patches the single rating field of a movie record.
func (c *Client) UpdateMovieRating(ctx context.Context, movieID int64, rating float64) error {
	body := map[string]any{"rating": rating}
	_, err := c.do(ctx, "update_movie_rating", http.MethodPatch, c.base, "/movies/"+strconv.FormatInt(movieID, 10), nil, body)
	return err
}

// FavoriteByViewerMovie resolves the active favorite relation for a
// (viewer, movie) pair, or nil when none exists.
func (c *Client) FavoriteByViewerMovie(ctx context.Context, userID, movieID int64) (*Favorite, error) {
	q := url.Values{
		"userId":  {strconv.FormatInt(userID, 10)},
		"movieId": {strconv.FormatInt(movieID, 10)},
	}
	data, err := c.do(ctx, "favorite_lookup", http.MethodGet, c.authBase, "/favorites", q, nil)
	if err != nil {
		return nil, err
	}
	favorites, err := decodeFavorites(data)
	if err != nil {
		return nil, c.badResponse("favorite_lookup", err)
	}
	if len(favorites) == 0 {
		return nil, nil
	}
	return &favorites[0], nil
}

// FavoritesByViewer lists all of a viewer's favorite relations.
func (c *Client) FavoritesByViewer(ctx context.Context, userID int64) ([]Favorite, error) {
	q := url.Values{"userId": {strconv.FormatInt(userID, 10)}}
	data, err := c.do(ctx, "favorites_by_viewer", http.MethodGet, c.authBase, "/favorites", q, nil)
	if err != nil {
		return nil, err
	}
	favorites, err := decodeFavorites(data)
	if err != nil {
		return nil, c.badResponse("favorites_by_viewer", err)
	}
	return favorites, nil
}

// CreateFavorite persists a new favorite relation and returns the durable
// record assigned by the backend.
func (c *Client) CreateFavorite(ctx context.Context, userID, movieID int64) (*Favorite, error) {
	body := Favorite{UserID: userID, MovieID: movieID, CreatedAt: time.Now().UTC()}
	data, err := c.do(ctx, "create_favorite", http.MethodPost, c.authBase, "/favorites", nil, body)
	if err != nil {
		return nil, err
	}
	stored, err := decodeFavorite(data)
	if err != nil {
		return nil, c.badResponse("create_favorite", err)
	}
	return &stored, nil
}

// DeleteFavorite removes a favorite relation by its durable id. This is the
// canonical addressing scheme; callers must resolve placeholder relations
// to a durable id first.
func (c *Client) DeleteFavorite(ctx context.Context, id int64) error {
	_, err := c.do(ctx, "delete_favorite", http.MethodDelete, c.authBase, "/favorites/"+strconv.FormatInt(id, 10), nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, op, method, base, path string, query url.Values, body any) ([]byte, error) {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Sentinel: ErrBadResponse, Operation: op, Err: err}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &Error{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" && base == c.authBase {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(op, err)
	}
	defer res.Body.Close() // #nosec G307

	data, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, &Error{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode, Err: err}
	}

	if res.StatusCode >= 400 {
		return nil, c.statusError(op, res.StatusCode, data)
	}

	c.log.Debug().Str("op", op).Str("method", method).Int("status", res.StatusCode).Msg("backend call")
	return data, nil
}

func (c *Client) transportError(op string, err error) error {
	sentinel := ErrUnavailable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		sentinel = ErrTimeout
	}
	return &Error{Sentinel: sentinel, Operation: op, Err: err}
}

func (c *Client) statusError(op string, status int, body []byte) error {
	sentinel := ErrBackend
	switch {
	case status == http.StatusNotFound:
		sentinel = ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		sentinel = ErrUnauthorized
	case status < 500:
		sentinel = ErrBadResponse
	}
	return &Error{Sentinel: sentinel, Operation: op, Status: status, Body: truncate(body, 256)}
}

func (c *Client) badResponse(op string, err error) error {
	return &Error{Sentinel: ErrBadResponse, Operation: op, Err: err}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s... (%d bytes)", b[:n], len(b))
}
