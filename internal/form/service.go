package form

import (
	"context"
	"errors"
	"sync"
	"time"

	appLog "eventcal/internal/log"
	"eventcal/internal/media"
	"eventcal/internal/model"
	"eventcal/internal/store"
)

// ErrInFlight is returned when the same form is submitted again before the
// first submission finished.
var ErrInFlight = errors.New("form: submission already in progress")

// Guard tracks form tokens with a submission in progress.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{inflight: make(map[string]struct{})}
}

// Acquire marks token busy; false means it already was. An empty token
// cannot be tracked and is always admitted.
func (g *Guard) Acquire(token string) bool {
	if token == "" {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[token]; busy {
		return false
	}
	g.inflight[token] = struct{}{}
	return true
}

func (g *Guard) Release(token string) {
	if token == "" {
		return
	}
	g.mu.Lock()
	delete(g.inflight, token)
	g.mu.Unlock()
}

// Service turns a Submission into an uploaded image plus one event row.
// The two writes are sequential: a failed insert leaves the image behind.
type Service struct {
	store   store.Store
	bucket  media.Bucket
	loc     *time.Location
	multi   bool
	guard   *Guard
	newPath func(filename string) string
}

func NewService(st store.Store, bucket media.Bucket, loc *time.Location, multi bool) *Service {
	return &Service{
		store:   st,
		bucket:  bucket,
		loc:     loc,
		multi:   multi,
		guard:   NewGuard(),
		newPath: media.NewObjectPath,
	}
}

// Submit validates sub and writes it. token identifies the form instance
// for duplicate-submit protection.
func (s *Service) Submit(ctx context.Context, token string, sub Submission) (model.Event, error) {
	if !s.guard.Acquire(token) {
		return model.Event{}, ErrInFlight
	}
	defer s.guard.Release(token)

	sub = sub.Normalized()
	start, end, err := sub.Validate(s.loc, s.multi)
	if err != nil {
		return model.Event{}, err
	}

	var imagePath string
	if sub.Image != nil && sub.Image.Body != nil {
		if s.bucket == nil {
			return model.Event{}, &AlertError{Message: MsgUploadFailed, Err: errors.New("no media bucket configured")}
		}
		imagePath = s.newPath(sub.Image.Filename)
		if err := s.bucket.Upload(ctx, imagePath, sub.Image.Body, sub.Image.ContentType); err != nil {
			appLog.Error("image upload failed", err, "path", imagePath)
			return model.Event{}, &AlertError{Message: MsgUploadFailed, Err: err}
		}
		appLog.Info("image uploaded", "path", imagePath)
	}

	ev, err := s.store.InsertEvent(ctx, model.Event{
		Title:     sub.Title,
		Detail:    sub.Detail,
		Start:     start.UTC(),
		End:       ptr(end.UTC()),
		Tags:      sub.Tags,
		Status:    model.StatusPublished,
		ImagePath: imagePath,
	})
	if err != nil {
		appLog.Error("event insert failed", err, "title", sub.Title, "image_path", imagePath)
		return model.Event{}, &AlertError{Message: MsgInsertFailed, Err: err}
	}

	appLog.Info("event created", "id", ev.ID, "title", ev.Title, "start", ev.Start.Format(time.RFC3339), "tags", ev.TagRef())
	return ev, nil
}

func ptr[T any](v T) *T { return &v }
