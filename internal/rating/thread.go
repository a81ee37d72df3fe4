package rating

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinocore/kinocore/internal/catalog"
	"github.com/kinocore/kinocore/internal/identity"
	"github.com/kinocore/kinocore/internal/log"
)

var (
	// ErrAuthRequired is returned when a guest attempts a comment mutation.
	ErrAuthRequired = errors.New("rating: authentication required")
	// ErrInvalidRating is returned for ratings outside 1 through 10.
	ErrInvalidRating = errors.New("rating: rating must be between 1 and 10")
	// ErrEmptyText is returned for blank comment text.
	ErrEmptyText = errors.New("rating: comment text must not be empty")
)

// Events receives thread updates. Both callbacks are optional. Comment
// lists include optimistic entries; RatingChanged fires only with values
// the backend confirmed.
type Events struct {
	CommentsChanged func(comments []catalog.Comment)
	RatingChanged   func(rating float64)
}

// Thread is the comment workflow for one movie: it holds the visible
// comment list, applies mutations optimistically, and keeps the movie's
// aggregate rating in sync after each confirmed mutation.
type Thread struct {
	client  *catalog.Client
	recalc  *Recalculator
	viewer  identity.Viewer
	movieID int64
	events  Events
	log     zerolog.Logger

	mu       sync.Mutex
	comments []catalog.Comment
	tempSeq  int64
}

// NewThread creates a thread for one movie. Call Load before mutating.
func NewThread(client *catalog.Client, viewer identity.Viewer, movieID int64, events Events) *Thread {
	return &Thread{
		client:  client,
		recalc:  NewRecalculator(client),
		viewer:  viewer,
		movieID: movieID,
		events:  events,
		log: log.WithComponent("comments").With().
			Int64("movieID", movieID).
			Logger(),
	}
}

// Load fetches the confirmed comment list from the backend.
func (t *Thread) Load(ctx context.Context) error {
	comments, err := t.client.CommentsByMovie(ctx, t.movieID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.comments = comments
	t.mu.Unlock()
	t.notifyComments()
	return nil
}

// Comments returns a copy of the visible list, optimistic entries
// included, newest first.
func (t *Thread) Comments() []catalog.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]catalog.Comment, len(t.comments))
	copy(out, t.comments)
	return out
}

// Post creates a comment. The list shows it immediately under a temporary
// id; the backend response replaces it with the durable record, and the
// aggregate rating is recomputed before Post returns.
func (t *Thread) Post(ctx context.Context, text string, ratingValue float64) (*catalog.Comment, error) {
	if err := t.validate(text, ratingValue); err != nil {
		return nil, err
	}

	temp := catalog.Comment{
		ID:        t.nextTempID(),
		MovieID:   t.movieID,
		UserID:    t.viewer.UserID,
		UserName:  t.viewer.Name,
		Text:      strings.TrimSpace(text),
		Rating:    ratingValue,
		CreatedAt: time.Now().UTC(),
	}

	t.mu.Lock()
	t.comments = append([]catalog.Comment{temp}, t.comments...)
	t.mu.Unlock()
	t.notifyComments()

	confirmed, err := t.client.CreateComment(ctx, catalog.Comment{
		MovieID:  t.movieID,
		UserID:   t.viewer.UserID,
		UserName: t.viewer.Name,
		Text:     temp.Text,
		Rating:   ratingValue,
	})
	if err != nil {
		t.removeLocal(temp.ID)
		t.notifyComments()
		t.log.Warn().Err(err).Msg("comment create failed, rolled back")
		return nil, err
	}

	t.replaceLocal(temp.ID, *confirmed)
	t.notifyComments()
	t.recompute(ctx)
	return confirmed, nil
}

// Edit updates a comment's text and rating, then recomputes the aggregate.
func (t *Thread) Edit(ctx context.Context, id int64, text string, ratingValue float64) (*catalog.Comment, error) {
	if err := t.validate(text, ratingValue); err != nil {
		return nil, err
	}

	t.mu.Lock()
	prev, ok := t.find(id)
	if ok {
		updated := prev
		updated.Text = strings.TrimSpace(text)
		updated.Rating = ratingValue
		t.replace(id, updated)
	}
	t.mu.Unlock()
	if ok {
		t.notifyComments()
	}

	confirmed, err := t.client.UpdateComment(ctx, id, strings.TrimSpace(text), ratingValue)
	if err != nil {
		if ok {
			t.mu.Lock()
			t.replace(id, prev)
			t.mu.Unlock()
			t.notifyComments()
		}
		t.log.Warn().Err(err).Int64("commentID", id).Msg("comment edit failed, rolled back")
		return nil, err
	}

	t.replaceLocal(id, *confirmed)
	t.notifyComments()
	t.recompute(ctx)
	return confirmed, nil
}

// Delete removes a comment, then recomputes the aggregate. A failed
// delete restores the comment at its chronological position.
func (t *Thread) Delete(ctx context.Context, id int64) error {
	if !t.viewer.Authenticated() {
		return ErrAuthRequired
	}

	t.mu.Lock()
	prev, ok := t.find(id)
	if ok {
		t.remove(id)
	}
	t.mu.Unlock()
	if ok {
		t.notifyComments()
	}

	if err := t.client.DeleteComment(ctx, id); err != nil {
		if ok {
			t.mu.Lock()
			t.comments = append(t.comments, prev)
			sort.Slice(t.comments, func(i, j int) bool {
				return t.comments[i].CreatedAt.After(t.comments[j].CreatedAt)
			})
			t.mu.Unlock()
			t.notifyComments()
		}
		t.log.Warn().Err(err).Int64("commentID", id).Msg("comment delete failed, restored")
		return err
	}

	t.recompute(ctx)
	return nil
}

func (t *Thread) validate(text string, ratingValue float64) error {
	if !t.viewer.Authenticated() {
		return ErrAuthRequired
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if ratingValue < 1 || ratingValue > 10 {
		return ErrInvalidRating
	}
	return nil
}

// recompute refreshes the aggregate after a confirmed mutation. The
// mutation itself already succeeded, so a recompute failure is logged and
// surfaced through the metrics outcome rather than failing the call.
func (t *Thread) recompute(ctx context.Context) {
	value, err := t.recalc.Recompute(ctx, t.movieID)
	if err != nil {
		t.log.Warn().Err(err).Msg("rating recompute failed")
		return
	}
	if t.events.RatingChanged != nil {
		t.events.RatingChanged(value)
	}
}

// Temporary ids are negative so they can never collide with backend ids.
func (t *Thread) nextTempID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tempSeq--
	return t.tempSeq
}

// find, replace and remove require t.mu held.
func (t *Thread) find(id int64) (catalog.Comment, bool) {
	for _, c := range t.comments {
		if c.ID == id {
			return c, true
		}
	}
	return catalog.Comment{}, false
}

func (t *Thread) replace(id int64, c catalog.Comment) {
	for i := range t.comments {
		if t.comments[i].ID == id {
			t.comments[i] = c
			return
		}
	}
}

func (t *Thread) remove(id int64) {
	for i := range t.comments {
		if t.comments[i].ID == id {
			t.comments = append(t.comments[:i], t.comments[i+1:]...)
			return
		}
	}
}

func (t *Thread) replaceLocal(id int64, c catalog.Comment) {
	t.mu.Lock()
	t.replace(id, c)
	t.mu.Unlock()
}

func (t *Thread) removeLocal(id int64) {
	t.mu.Lock()
	t.remove(id)
	t.mu.Unlock()
}

func (t *Thread) notifyComments() {
	if t.events.CommentsChanged != nil {
		t.events.CommentsChanged(t.Comments())
	}
}
