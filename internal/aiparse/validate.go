package aiparse

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fernhollow/almanac/internal/model"
)

const defaultTitle = "Untitled Event"

// convertRaw turns a raw extracted event into a canonical CalendarEvent,
// filling defaults for anything the model left out. It never fails; every
// substitution it makes is reported as a warning.
func convertRaw(raw RawEvent, opts Options, loc *time.Location) (model.CalendarEvent, []string) {
	var warnings []string
	now := opts.Now()

	title := defaultTitle
	if raw.Title != nil {
		title = *raw.Title
	}

	start := now
	if text := raw.startText(); text != "" {
		if t, ok := parseFlexibleDate(text, now, loc); ok {
			start = t
		} else {
			warnings = append(warnings, fmt.Sprintf("unparseable start date %q for event %q, defaulting to now", text, displayTitle(title)))
		}
	}

	end := start.Add(opts.DefaultDuration)
	if text := raw.endText(); text != "" {
		if t, ok := parseFlexibleDate(text, now, loc); ok {
			end = t
		} else {
			warnings = append(warnings, fmt.Sprintf("unparseable end date %q for event %q, defaulting to start plus %s", text, displayTitle(title), opts.DefaultDuration))
		}
	}

	tz := opts.FallbackTimezone
	if raw.Timezone != nil && strings.TrimSpace(*raw.Timezone) != "" {
		tz = strings.TrimSpace(*raw.Timezone)
	}

	id := ""
	switch v := raw.ID.(type) {
	case string:
		id = v
	case float64:
		id = fmt.Sprintf("%.0f", v)
	}
	if id == "" {
		id = uuid.NewString()
	}

	attendees := raw.Attendees
	if attendees == nil {
		attendees = []string{}
	}

	return model.CalendarEvent{
		ID:          id,
		Title:       title,
		StartDate:   start,
		EndDate:     end,
		Timezone:    tz,
		Description: deref(raw.Description),
		Location:    deref(raw.Location),
		Attendees:   attendees,
		Organizer:   deref(raw.Organizer),
		Color:       deref(raw.Color),
		CalendarID:  deref(raw.CalendarID),
	}, warnings
}

// ValidateEvents enforces per-event invariants on already-converted events:
// non-empty trimmed title, end strictly after start, no null-ish optional
// fields. Failures are isolated per event; a bad event is skipped with a
// warning instead of aborting the batch.
func ValidateEvents(events []model.CalendarEvent, opts Options) ([]model.CalendarEvent, []string) {
	opts = opts.withDefaults()
	out := make([]model.CalendarEvent, 0, len(events))
	var warnings []string

	for _, ev := range events {
		validated, warns, ok := validateOne(ev, opts)
		warnings = append(warnings, warns...)
		if ok {
			out = append(out, validated)
		}
	}
	return out, warnings
}

func validateOne(ev model.CalendarEvent, opts Options) (validated model.CalendarEvent, warnings []string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			warnings = append(warnings, fmt.Sprintf("skipping event %q: %v", displayTitle(ev.Title), r))
			ok = false
		}
	}()

	ev.Title = strings.TrimSpace(ev.Title)
	if ev.Title == "" {
		return ev, []string{"dropping event with empty title"}, false
	}

	ev.Description = strings.TrimSpace(ev.Description)
	ev.Location = strings.TrimSpace(ev.Location)
	if ev.Attendees == nil {
		ev.Attendees = []string{}
	}
	if ev.Timezone == "" {
		ev.Timezone = opts.FallbackTimezone
	}

	if !ev.EndDate.After(ev.StartDate) {
		ev.EndDate = ev.StartDate.Add(opts.DefaultDuration)
		warnings = append(warnings, fmt.Sprintf("adjusted end time for event %q: end was not after start", ev.Title))
	}

	return ev, warnings, true
}

func displayTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return "untitled"
	}
	return strings.TrimSpace(title)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
