package form

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// User-facing alert messages, one per failing check.
const (
	MsgTitleRequired   = "イベント名を入力してください"
	MsgDateRequired    = "日付を選択してください"
	MsgTimeRequired    = "時刻を入力してください"
	MsgTagRequired     = "タグを選択してください"
	MsgEndRequired     = "終了時間を入力してください"
	MsgEndBeforeStart  = "終了時間は開始時間より後にしてください"
	MsgDateInvalid     = "日付の形式が正しくありません"
	MsgTimeInvalid     = "時刻の形式が正しくありません"
	MsgSingleTagOnly   = "タグは1つだけ選択してください"
	MsgUploadFailed    = "画像アップロードに失敗しました"
	MsgInsertFailed    = "イベント登録に失敗しました（DB）"
	MsgInFlight        = "送信処理中です。しばらくお待ちください"
	MsgUnexpectedError = "エラーが発生しました"
)

// ValidationError is a failed input check. Message is shown verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// Image is an optional attachment.
type Image struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Submission is the raw creation form input.
type Submission struct {
	Title   string
	Date    string // YYYY-MM-DD
	Time    string // HH:MM
	EndTime string // HH:MM
	Detail  string
	Tags    []string
	Image   *Image
}

// Normalized returns a copy with surrounding whitespace trimmed and blank or
// repeated tags removed.
func (s Submission) Normalized() Submission {
	out := s
	out.Title = strings.TrimSpace(s.Title)
	out.Date = strings.TrimSpace(s.Date)
	out.Time = strings.TrimSpace(s.Time)
	out.EndTime = strings.TrimSpace(s.EndTime)
	out.Detail = strings.TrimSpace(s.Detail)
	out.Tags = nil
	seen := make(map[string]bool, len(s.Tags))
	for _, t := range s.Tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out.Tags = append(out.Tags, t)
	}
	return out
}

// Validate runs the checks in order and stops at the first failure:
// title, date, start time, tag, end time, end after start. The wall-clock
// date and times are read in loc.
func (s Submission) Validate(loc *time.Location, multi bool) (start, end time.Time, err error) {
	s = s.Normalized()
	if loc == nil {
		loc = time.Local
	}

	switch {
	case s.Title == "":
		return start, end, invalid("title", MsgTitleRequired)
	case s.Date == "":
		return start, end, invalid("date", MsgDateRequired)
	case s.Time == "":
		return start, end, invalid("time", MsgTimeRequired)
	case len(s.Tags) == 0:
		return start, end, invalid("tag", MsgTagRequired)
	case !multi && len(s.Tags) > 1:
		return start, end, invalid("tag", MsgSingleTagOnly)
	}

	day, err := time.ParseInLocation("2006-01-02", s.Date, loc)
	if err != nil {
		return start, end, invalid("date", MsgDateInvalid)
	}
	if start, err = atClock(day, s.Time); err != nil {
		return start, end, invalid("time", MsgTimeInvalid)
	}

	if s.EndTime == "" {
		return start, end, invalid("end_time", MsgEndRequired)
	}
	if end, err = atClock(day, s.EndTime); err != nil {
		return start, end, invalid("end_time", MsgTimeInvalid)
	}
	if !end.After(start) {
		return start, end, invalid("end_time", MsgEndBeforeStart)
	}
	return start, end, nil
}

// atClock combines a midnight date with an HH:MM or HH:MM:SS clock value.
func atClock(day time.Time, clock string) (time.Time, error) {
	var (
		t   time.Time
		err error
	)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err = time.Parse(layout, clock); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, day.Location()), nil
}

// AlertMessage returns the text to show the user for err.
func AlertMessage(err error) string {
	var ve *ValidationError
	var ae *AlertError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Message
	case errors.As(err, &ae):
		return ae.Message
	case errors.Is(err, ErrInFlight):
		return MsgInFlight
	default:
		return MsgUnexpectedError
	}
}

// AlertError wraps a remote failure with the message shown to the user.
type AlertError struct {
	Message string
	Err     error
}

func (e *AlertError) Error() string {
	return e.Message + ": " + e.Err.Error()
}

func (e *AlertError) Unwrap() error { return e.Err }
