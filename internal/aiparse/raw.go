package aiparse

import (
	"strings"
	"time"

	"github.com/fernhollow/almanac/internal/model"
)

// RawEvent is the unvalidated shape extracted from model output. Every field
// is optional; location and description may legitimately arrive as JSON null.
// Nothing of this type flows past the validation boundary.
type RawEvent struct {
	ID          any      `json:"id,omitempty"`
	Title       *string  `json:"title"`
	Start       *string  `json:"start"`
	End         *string  `json:"end"`
	StartDate   *string  `json:"startDate"`
	EndDate     *string  `json:"endDate"`
	Timezone    *string  `json:"timezone"`
	Location    *string  `json:"location"`
	Description *string  `json:"description"`
	Attendees   []string `json:"attendees"`
	Organizer   *string  `json:"organizer"`
	Color       *string  `json:"color"`
	CalendarID  *string  `json:"calendarId"`
}

func (r RawEvent) empty() bool {
	return r.ID == nil && r.Title == nil && r.Start == nil && r.End == nil &&
		r.StartDate == nil && r.EndDate == nil && r.Timezone == nil &&
		r.Location == nil && r.Description == nil && r.Attendees == nil &&
		r.Organizer == nil && r.Color == nil && r.CalendarID == nil
}

// startText returns the best available start field.
func (r RawEvent) startText() string {
	if r.Start != nil {
		return *r.Start
	}
	if r.StartDate != nil {
		return *r.StartDate
	}
	return ""
}

func (r RawEvent) endText() string {
	if r.End != nil {
		return *r.End
	}
	if r.EndDate != nil {
		return *r.EndDate
	}
	return ""
}

// usable reports whether the raw event could survive validation: a missing
// title gets a default, but a present-and-blank title is always dropped.
func (r RawEvent) usable() bool {
	return r.Title == nil || strings.TrimSpace(*r.Title) != ""
}

// Parsing method names, in fallback order.
const (
	MethodJSON       = "json"
	MethodStructured = "structured"
	MethodFallback   = "fallback"
)

// ParsedResponse is the parser's result. Events is always non-nil; Warnings
// records every degradation taken on the way to it.
type ParsedResponse struct {
	Events        []model.CalendarEvent `json:"events"`
	RawResponse   string                `json:"rawResponse"`
	ParsingMethod string                `json:"parsingMethod"`
	Warnings      []string              `json:"warnings"`
}

// Options tune normalization defaults. The zero value is usable: local
// timezone, one hour default duration, wall-clock now.
type Options struct {
	// FallbackTimezone is the IANA zone applied to events that arrive
	// without one, and the zone zoneless timestamps are interpreted in.
	FallbackTimezone string

	// DefaultDuration is applied when an event has no end, or an end that
	// is not after its start.
	DefaultDuration time.Duration

	// Now is the clock used for dates that default to "now". Overridable
	// for tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.FallbackTimezone == "" {
		o.FallbackTimezone = time.Local.String()
	}
	if o.DefaultDuration <= 0 {
		o.DefaultDuration = time.Hour
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) location() *time.Location {
	loc, err := time.LoadLocation(o.FallbackTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}
