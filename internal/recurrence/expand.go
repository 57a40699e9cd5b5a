package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/fernhollow/almanac/internal/model"
)

// Safety cap so a COUNT-less daily rule cannot flood a wide query window.
const maxOccurrencesPerEvent = 1000

// Expand materializes the occurrences of a recurring event that overlap
// [rangeStart, rangeEnd). Non-recurring events are returned as-is when they
// overlap the window. Each occurrence keeps the base event's fields with
// shifted start/end times and an instance-suffixed ID.
func Expand(ev model.CalendarEvent, rangeStart, rangeEnd time.Time) ([]model.CalendarEvent, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, fmt.Errorf("expand: range end %v before start %v", rangeEnd, rangeStart)
	}

	if ev.RRule == "" {
		if ev.Overlaps(rangeStart, rangeEnd) {
			return []model.CalendarEvent{ev}, nil
		}
		return nil, nil
	}

	opt, err := rrule.StrToROption(ev.RRule)
	if err != nil {
		return nil, fmt.Errorf("expand: parsing rule %q: %w", ev.RRule, err)
	}
	opt.Dtstart = ev.StartDate
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("expand: building rule %q: %w", ev.RRule, err)
	}

	// Query starts one duration early so an occurrence straddling rangeStart
	// is still found.
	duration := ev.Duration()
	starts := rule.Between(rangeStart.Add(-duration), rangeEnd, true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}

	var out []model.CalendarEvent
	for _, start := range starts {
		occ := ev
		occ.StartDate = start
		occ.EndDate = start.Add(duration)
		if !occ.Overlaps(rangeStart, rangeEnd) {
			continue
		}
		if !start.Equal(ev.StartDate) {
			occ.ID = instanceID(ev.ID, start)
		}
		out = append(out, occ)
	}
	return out, nil
}

// ExpandAll expands every event in the slice across the window, dropping
// events whose rule fails to parse rather than failing the whole query.
// Parse failures are reported alongside the good occurrences.
func ExpandAll(events []model.CalendarEvent, rangeStart, rangeEnd time.Time) ([]model.CalendarEvent, []error) {
	var out []model.CalendarEvent
	var errs []error
	for _, ev := range events {
		occ, err := Expand(ev, rangeStart, rangeEnd)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", ev.ID, err))
			continue
		}
		out = append(out, occ...)
	}
	return out, errs
}

func instanceID(baseID string, start time.Time) string {
	return fmt.Sprintf("%s:%s", baseID, start.UTC().Format("20060102T150405Z"))
}

// Describe renders a rule as a short human-readable phrase for the UI, e.g.
// "Repeats weekly on Mon, Wed".
func Describe(rruleStr string) string {
	if rruleStr == "" {
		return ""
	}
	opt, err := rrule.StrToROption(rruleStr)
	if err != nil {
		return ""
	}

	var phrase string
	switch opt.Freq {
	case rrule.DAILY:
		phrase = pluralEvery(opt.Interval, "day", "Repeats daily")
	case rrule.WEEKLY:
		phrase = pluralEvery(opt.Interval, "week", "Repeats weekly")
		if len(opt.Byweekday) > 0 {
			names := make([]string, 0, len(opt.Byweekday))
			for _, wd := range opt.Byweekday {
				names = append(names, weekdayName(wd))
			}
			phrase += " on " + joinComma(names)
		}
	case rrule.MONTHLY:
		phrase = pluralEvery(opt.Interval, "month", "Repeats monthly")
	case rrule.YEARLY:
		phrase = pluralEvery(opt.Interval, "year", "Repeats yearly")
	default:
		return ""
	}
	return phrase
}

func pluralEvery(interval int, unit, simple string) string {
	if interval > 1 {
		return fmt.Sprintf("Repeats every %d %ss", interval, unit)
	}
	return simple
}

func weekdayName(wd rrule.Weekday) string {
	names := map[int]string{0: "Mon", 1: "Tue", 2: "Wed", 3: "Thu", 4: "Fri", 5: "Sat", 6: "Sun"}
	return names[wd.Day()]
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
