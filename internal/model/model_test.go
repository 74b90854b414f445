package model

import (
	"reflect"
	"testing"
	"time"
)

func TestSplitTags(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"勉強会", []string{"勉強会"}},
		{"a, b ,,c", []string{"a", "b", "c"}},
		{"a,b,a", []string{"a", "b"}},
	}
	for _, c := range cases {
		if got := SplitTags(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("SplitTags(%q) = %#v, want %#v", c.in, got, c.want)
		}
	}
}

func TestDayKeyUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 2026-01-31 20:00 UTC is already February 1st in Tokyo.
	ts := time.Date(2026, 1, 31, 20, 0, 0, 0, time.UTC)

	if got := DayKey(ts, time.UTC); got != "2026-01-31" {
		t.Fatalf("utc key = %s", got)
	}
	if got := DayKey(ts, tokyo); got != "2026-02-01" {
		t.Fatalf("tokyo key = %s", got)
	}
}
