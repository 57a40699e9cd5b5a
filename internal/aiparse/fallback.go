package aiparse

import (
	"regexp"
	"strings"
	"time"
)

// Label lines recognized by the line-heuristic fallback. This is a weak,
// deliberately lossy strategy of last resort: it only fires when the model
// answered in prose instead of JSON.
var (
	titleLabelRe    = regexp.MustCompile(`(?i)^\s*(?:title|event|meeting|appointment)\s*:\s*(.+)$`)
	startLabelRe    = regexp.MustCompile(`(?i)^\s*(?:start|begin|from)\s*:\s*(.+)$`)
	endLabelRe      = regexp.MustCompile(`(?i)^\s*(?:end|until|to)\s*:\s*(.+)$`)
	locationLabelRe = regexp.MustCompile(`(?i)^\s*(?:location|place|where)\s*:\s*(.+)$`)
)

// parseEventLines folds over the input lines keeping a single running
// partial event. A new title line flushes the previous partial; partials
// without a title are discarded.
func parseEventLines(text string) []RawEvent {
	var out []RawEvent
	var cur RawEvent

	flush := func() {
		if cur.Title != nil && strings.TrimSpace(*cur.Title) != "" {
			out = append(out, cur)
		}
		cur = RawEvent{}
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case titleLabelRe.MatchString(line):
			flush()
			v := strings.TrimSpace(titleLabelRe.FindStringSubmatch(line)[1])
			cur.Title = &v
		case startLabelRe.MatchString(line):
			v := strings.TrimSpace(startLabelRe.FindStringSubmatch(line)[1])
			cur.Start = &v
		case endLabelRe.MatchString(line):
			v := strings.TrimSpace(endLabelRe.FindStringSubmatch(line)[1])
			cur.End = &v
		case locationLabelRe.MatchString(line):
			v := strings.TrimSpace(locationLabelRe.FindStringSubmatch(line)[1])
			cur.Location = &v
		}
	}
	flush()

	return out
}

// Accepted timestamp layouts, tried in order. Zoneless layouts are
// interpreted in the parser's fallback timezone.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04",
	"2006-01-02",
}

// parseFlexibleDate parses a timestamp permissively: ISO-8601 first, then a
// handful of common layouts, then a bare HH:mm assumed to be today.
func parseFlexibleDate(s string, now time.Time, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.ParseInLocation("15:04", s, loc); err == nil {
		day := now.In(loc)
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), true
	}
	return time.Time{}, false
}
