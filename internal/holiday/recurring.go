package holiday

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// expandRecurring evaluates RRULE strings within year. A rule may carry a
// display name as "Name|RRULE".
func expandRecurring(rules []string, year int) Set {
	out := make(Set)
	if len(rules) == 0 {
		return out
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)

	for _, raw := range rules {
		name, rule := splitRule(raw)
		r, err := rrule.StrToRRule(rule)
		if err != nil {
			appLog.Error("holiday rule invalid", err, "rule", raw)
			continue
		}
		r.DTStart(start)
		for _, t := range r.Between(start, end, true) {
			out[t.Format(model.DayKeyLayout)] = name
		}
	}
	return out
}

func splitRule(raw string) (name, rule string) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "|"); i >= 0 {
		return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+1:])
	}
	return "", raw
}
