package conflict

import (
	"fmt"
	"sort"
	"time"

	"github.com/fernhollow/almanac/internal/model"
)

const maxSuggestions = 3

// generateSuggestions produces remediations in a fixed order — earlier slot,
// later slot, shorten, next day, split — and keeps the top three. Generation
// order is the ranking.
func generateSuggestions(newEv model.CalendarEvent, colliding []model.CalendarEvent, opts Options) []Suggestion {
	var out []Suggestion

	buffer := time.Duration(opts.BufferMinutes) * time.Minute
	duration := newEv.Duration()
	loc := opts.Location

	sorted := make([]model.CalendarEvent, len(colliding))
	copy(sorted, colliding)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartDate.Before(sorted[j].StartDate)
	})

	day := newEv.StartDate.In(loc)
	workStart := time.Date(day.Year(), day.Month(), day.Day(), opts.WorkingHours.Start, 0, 0, 0, loc)
	workEnd := time.Date(day.Year(), day.Month(), day.Day(), opts.WorkingHours.End, 0, 0, 0, loc)

	// Earlier slot: a gap that ends a buffer before the first conflict.
	earlierEnd := sorted[0].StartDate.Add(-buffer)
	earlierStart := earlierEnd.Add(-duration)
	if !earlierStart.Before(workStart) {
		out = append(out, Suggestion{
			Type:             SuggestTimeAdjustment,
			Description:      fmt.Sprintf("Move earlier to %s-%s", clock(earlierStart, loc), clock(earlierEnd, loc)),
			SuggestedTime:    timePtr(earlierStart),
			SuggestedEndTime: timePtr(earlierEnd),
			Reason:           "the slot before your first conflict is free within working hours",
		})
	}

	// Later slot: a gap that starts a buffer after the last conflict ends.
	latestEnd := sorted[0].EndDate
	for _, ex := range sorted[1:] {
		if ex.EndDate.After(latestEnd) {
			latestEnd = ex.EndDate
		}
	}
	laterStart := latestEnd.Add(buffer)
	laterEnd := laterStart.Add(duration)
	if !laterEnd.After(workEnd) {
		out = append(out, Suggestion{
			Type:             SuggestTimeAdjustment,
			Description:      fmt.Sprintf("Move later to %s-%s", clock(laterStart, loc), clock(laterEnd, loc)),
			SuggestedTime:    timePtr(laterStart),
			SuggestedEndTime: timePtr(laterEnd),
			Reason:           "the slot after your last conflict is free within working hours",
		})
	}

	// Shorten: only worthwhile for events over an hour.
	if duration > time.Hour {
		shortened := duration - 30*time.Minute
		if shortened < 30*time.Minute {
			shortened = 30 * time.Minute
		}
		shortEnd := newEv.StartDate.Add(shortened)
		out = append(out, Suggestion{
			Type:             SuggestDurationChange,
			Description:      fmt.Sprintf("Shorten to %d minutes, ending at %s", int(shortened.Minutes()), clock(shortEnd, loc)),
			SuggestedTime:    timePtr(newEv.StartDate),
			SuggestedEndTime: timePtr(shortEnd),
			Reason:           "a shorter meeting reduces the overlap",
		})
	}

	// Next day: same time of day, advisory only.
	nextStart := newEv.StartDate.AddDate(0, 0, 1)
	nextEnd := newEv.EndDate.AddDate(0, 0, 1)
	out = append(out, Suggestion{
		Type:             SuggestDateChange,
		Description:      fmt.Sprintf("Move to %s at %s", nextStart.In(loc).Format("Mon Jan 2"), clock(nextStart, loc)),
		SuggestedTime:    timePtr(nextStart),
		SuggestedEndTime: timePtr(nextEnd),
		Reason:           "same time tomorrow; that day has not been checked for conflicts",
	})

	// Split: only for long events.
	if duration > 2*time.Hour {
		half := duration / 2
		firstEnd := newEv.StartDate.Add(half)
		out = append(out, Suggestion{
			Type:             SuggestSplitEvent,
			Description:      fmt.Sprintf("Split into two %d-minute sessions, the first ending at %s", int(half.Minutes()), clock(firstEnd, loc)),
			SuggestedTime:    timePtr(newEv.StartDate),
			SuggestedEndTime: timePtr(firstEnd),
			Reason:           "two shorter sessions are easier to fit around the conflicts",
		})
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func clock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

func timePtr(t time.Time) *time.Time { return &t }
