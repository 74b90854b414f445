package form

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"eventcal/internal/model"
	"eventcal/internal/store/storetest"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
	entered chan struct{}
	block   chan struct{}
}

func (b *fakeBucket) Upload(ctx context.Context, objectPath string, r io.Reader, _ string) error {
	if b.entered != nil {
		close(b.entered)
	}
	if b.block != nil {
		<-b.block
	}
	if b.err != nil {
		return b.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = map[string]string{}
	}
	b.objects[objectPath] = string(data)
	return nil
}

func (b *fakeBucket) PublicURL(objectPath string) string { return "/media/" + objectPath }

func (b *fakeBucket) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func valid() Submission {
	return Submission{
		Title:   "Go勉強会",
		Date:    "2026-03-10",
		Time:    "19:00",
		EndTime: "21:00",
		Detail:  "第3回",
		Tags:    []string{"勉強会"},
	}
}

func TestValidateOrder(t *testing.T) {
	loc := tokyo(t)
	cases := []struct {
		name   string
		mutate func(*Submission)
		want   string
	}{
		{"everything missing", func(s *Submission) { *s = Submission{} }, MsgTitleRequired},
		{"blank title", func(s *Submission) { s.Title = "   " }, MsgTitleRequired},
		{"no date", func(s *Submission) { s.Date = ""; s.Time = "" }, MsgDateRequired},
		{"no time", func(s *Submission) { s.Time = ""; s.Tags = nil }, MsgTimeRequired},
		{"no tag", func(s *Submission) { s.Tags = []string{" "}; s.EndTime = "" }, MsgTagRequired},
		{"two tags in single mode", func(s *Submission) { s.Tags = []string{"a", "b"} }, MsgSingleTagOnly},
		{"bad date", func(s *Submission) { s.Date = "2026/03/10" }, MsgDateInvalid},
		{"bad time", func(s *Submission) { s.Time = "7pm" }, MsgTimeInvalid},
		{"no end", func(s *Submission) { s.EndTime = "" }, MsgEndRequired},
		{"end equals start", func(s *Submission) { s.EndTime = "19:00" }, MsgEndBeforeStart},
		{"end before start", func(s *Submission) { s.EndTime = "18:30" }, MsgEndBeforeStart},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := valid()
			tc.mutate(&s)
			_, _, err := s.Validate(loc, false)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Message != tc.want {
				t.Fatalf("message = %q, want %q", ve.Message, tc.want)
			}
		})
	}
}

func TestValidateInterpretsWallClockInLocation(t *testing.T) {
	loc := tokyo(t)
	start, end, err := valid().Validate(loc, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := start.UTC().Format(time.RFC3339); got != "2026-03-10T10:00:00Z" {
		t.Fatalf("start = %s", got)
	}
	if end.Sub(start) != 2*time.Hour {
		t.Fatalf("duration = %s", end.Sub(start))
	}
}

func TestValidateMultiAllowsSeveralTags(t *testing.T) {
	s := valid()
	s.Tags = []string{"勉強会", "ほっと一息", "勉強会"}
	if _, _, err := s.Validate(tokyo(t), true); err != nil {
		t.Fatal(err)
	}
	if got := s.Normalized().Tags; len(got) != 2 {
		t.Fatalf("tags = %v, want duplicates dropped", got)
	}
}

func TestSubmitWithoutImage(t *testing.T) {
	st := storetest.New()
	b := &fakeBucket{}
	svc := NewService(st, b, tokyo(t), false)

	ev, err := svc.Submit(context.Background(), "tok", valid())
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID == 0 || ev.Status != model.StatusPublished || ev.ImagePath != "" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.End == nil || !ev.End.After(ev.Start) {
		t.Fatalf("end not stored: %+v", ev)
	}
	if b.count() != 0 {
		t.Fatalf("no upload expected")
	}
}

func TestSubmitWithImage(t *testing.T) {
	st := storetest.New()
	b := &fakeBucket{}
	svc := NewService(st, b, tokyo(t), false)

	s := valid()
	s.Image = &Image{Filename: "my photo!.png", ContentType: "image/png", Body: strings.NewReader("png")}
	ev, err := svc.Submit(context.Background(), "", s)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ev.ImagePath, "events/") || !strings.HasSuffix(ev.ImagePath, "-my_photo_.png") {
		t.Fatalf("image path = %q", ev.ImagePath)
	}
	if b.objects[ev.ImagePath] != "png" {
		t.Fatalf("uploaded object missing")
	}
}

func TestSubmitValidationHasNoSideEffects(t *testing.T) {
	st := storetest.New()
	b := &fakeBucket{}
	svc := NewService(st, b, tokyo(t), false)

	s := valid()
	s.Title = ""
	s.Image = &Image{Filename: "a.png", Body: strings.NewReader("x")}
	_, err := svc.Submit(context.Background(), "tok", s)
	if AlertMessage(err) != MsgTitleRequired {
		t.Fatalf("alert = %q", AlertMessage(err))
	}
	if st.Inserts != 0 || b.count() != 0 {
		t.Fatalf("validation failure must not write anything")
	}
}

func TestSubmitUploadFailureSkipsInsert(t *testing.T) {
	st := storetest.New()
	b := &fakeBucket{err: errors.New("bucket down")}
	svc := NewService(st, b, tokyo(t), false)

	s := valid()
	s.Image = &Image{Filename: "a.png", Body: strings.NewReader("x")}
	_, err := svc.Submit(context.Background(), "tok", s)
	if AlertMessage(err) != MsgUploadFailed {
		t.Fatalf("alert = %q", AlertMessage(err))
	}
	if st.Inserts != 0 {
		t.Fatalf("insert must not run after a failed upload")
	}
}

func TestSubmitInsertFailureKeepsImage(t *testing.T) {
	st := storetest.New()
	st.InsertErr = errors.New("disk I/O error")
	b := &fakeBucket{}
	svc := NewService(st, b, tokyo(t), false)

	s := valid()
	s.Image = &Image{Filename: "a.png", Body: strings.NewReader("x")}
	_, err := svc.Submit(context.Background(), "tok", s)
	if AlertMessage(err) != MsgInsertFailed {
		t.Fatalf("alert = %q", AlertMessage(err))
	}
	if b.count() != 1 {
		t.Fatalf("uploaded image is not rolled back, want 1 object, got %d", b.count())
	}
}

func TestSubmitRejectsConcurrentDuplicate(t *testing.T) {
	st := storetest.New()
	b := &fakeBucket{entered: make(chan struct{}), block: make(chan struct{})}
	svc := NewService(st, b, tokyo(t), false)

	s := valid()
	s.Image = &Image{Filename: "a.png", Body: strings.NewReader("x")}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), "same", s)
		done <- err
	}()

	select {
	case <-b.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never reached the upload")
	}

	if _, err := svc.Submit(context.Background(), "same", valid()); !errors.Is(err, ErrInFlight) {
		t.Fatalf("err = %v, want ErrInFlight", err)
	}
	close(b.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if st.Inserts != 1 {
		t.Fatalf("inserts = %d, want 1", st.Inserts)
	}

	// The token is free again once the first call returns.
	b.entered = nil
	if _, err := svc.Submit(context.Background(), "same", valid()); err != nil {
		t.Fatal(err)
	}
}

func TestAlertMessageFallback(t *testing.T) {
	if AlertMessage(nil) != "" {
		t.Fatal("nil error should have no alert")
	}
	if AlertMessage(errors.New("boom")) != MsgUnexpectedError {
		t.Fatal("unknown errors get the generic alert")
	}
}
