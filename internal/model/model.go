package model

import (
	"strings"
	"time"
)

// StatusPublished is the only event status the calendar reads.
const StatusPublished = "published"

// DayKeyLayout is the zero-padded layout used for day buckets, holiday sets
// and the ?date= query parameter.
const DayKeyLayout = "2006-01-02"

// TagSeparator joins multiple tag names in the stored tag reference.
const TagSeparator = ","

// Category is a named, colored tag. Name is unique and acts as the key.
type Category struct {
	ID        int64     `json:"id,omitempty"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Event is a single calendar entry as stored in the events table.
type Event struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Detail string `json:"detail"`

	// Start is always set; End is nil for rows written without an end time.
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`

	// Tags holds the associated category names in order.
	Tags []string `json:"tags"`

	Status    string    `json:"status"`
	ImagePath string    `json:"image_path,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// TagRef returns the stored form of the tag association.
func (e Event) TagRef() string {
	return JoinTags(e.Tags)
}

// Published reports whether the calendar should display the event.
func (e Event) Published() bool {
	return e.Status == StatusPublished
}

// SplitTags parses a stored tag reference. Blank entries are dropped and
// duplicates collapse onto their first occurrence.
func SplitTags(ref string) []string {
	if strings.TrimSpace(ref) == "" {
		return nil
	}
	parts := strings.Split(ref, TagSeparator)
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func JoinTags(tags []string) string {
	return strings.Join(tags, TagSeparator)
}

// DayKey returns the bucket key of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayKeyLayout)
}
