package conflict

import (
	"fmt"
	"math"
	"time"

	"github.com/fernhollow/almanac/internal/model"
)

// OverlapType classifies how a proposed event collides with the existing
// schedule.
type OverlapType string

const (
	// OverlapPartial means the intervals intersect without containment.
	OverlapPartial OverlapType = "partial"
	// OverlapComplete means the new event sits entirely inside an existing one.
	OverlapComplete OverlapType = "complete"
	// OverlapSurrounding means the new event entirely contains an existing one.
	OverlapSurrounding OverlapType = "surrounding"
)

// Severity is the qualitative impact tier of a conflict.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for comparison: low < medium < high.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Suggestion is one ranked remediation for a detected conflict.
type Suggestion struct {
	Type             string     `json:"type"`
	Description      string     `json:"description"`
	SuggestedTime    *time.Time `json:"suggestedTime,omitempty"`
	SuggestedEndTime *time.Time `json:"suggestedEndTime,omitempty"`
	Reason           string     `json:"reason"`
}

// Suggestion types.
const (
	SuggestTimeAdjustment = "time_adjustment"
	SuggestDateChange     = "date_change"
	SuggestDurationChange = "duration_change"
	SuggestSplitEvent     = "split_event"
)

// DetailedConflict describes every collision a single proposed event has
// with the existing schedule. ConflictingEvents is never empty.
type DetailedConflict struct {
	NewEvent                model.CalendarEvent   `json:"newEvent"`
	ConflictingEvents       []model.CalendarEvent `json:"conflictingEvents"`
	OverlapType             OverlapType           `json:"overlapType"`
	ConflictDurationMinutes int                   `json:"conflictDurationMinutes"`
	ConflictPercentage      int                   `json:"conflictPercentage"`
	Severity                Severity              `json:"severity"`
	Suggestion              string                `json:"suggestion"`
	Suggestions             []Suggestion          `json:"suggestions"`
}

// WorkingHours bounds the day for slot suggestions, in whole hours.
type WorkingHours struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Options tune conflict detection. Use DefaultOptions as the base; a zero
// BufferMinutes passed explicitly means no buffer.
type Options struct {
	BufferMinutes int
	WorkingHours  WorkingHours
	Location      *time.Location
}

// DefaultOptions returns the standard tuning: 15 minute buffer, 09:00-18:00
// working hours, local timezone.
func DefaultOptions() Options {
	return Options{
		BufferMinutes: 15,
		WorkingHours:  WorkingHours{Start: 9, End: 18},
		Location:      time.Local,
	}
}

func (o Options) normalized() Options {
	if o.WorkingHours.Start == 0 && o.WorkingHours.End == 0 {
		o.WorkingHours = WorkingHours{Start: 9, End: 18}
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// DetectConflicts checks each proposed event against the existing schedule
// and returns a DetailedConflict per colliding event, in input order.
// Results are a deterministic function of input order.
//
// Unlike the parsing pipeline this operates on data the system already
// validated, so unexpected failures surface as calendar errors rather than
// degrading silently.
func DetectConflicts(newEvents, existing []model.CalendarEvent, opts Options) (conflicts []DetailedConflict, err error) {
	const op = "detectSchedulingConflicts"
	defer func() {
		if r := recover(); r != nil {
			err = model.NewCalendarError(op, fmt.Errorf("%v", r), false)
		}
	}()

	opts = opts.normalized()
	buffer := time.Duration(opts.BufferMinutes) * time.Minute

	conflicts = []DetailedConflict{}
	for _, newEv := range newEvents {
		if !newEv.EndDate.After(newEv.StartDate) {
			return nil, model.NewCalendarError(op,
				fmt.Errorf("event %q has non-positive duration", newEv.Title), false)
		}

		var colliding []model.CalendarEvent
		for _, ex := range existing {
			if EventsConflict(newEv, ex, buffer) {
				colliding = append(colliding, ex)
			}
		}
		if len(colliding) == 0 {
			continue
		}

		minutes := overlapMinutes(newEv, colliding)
		percentage := int(math.Round(float64(minutes) / newEv.Duration().Minutes() * 100))
		severity := classifySeverity(percentage, len(colliding))
		suggestions := generateSuggestions(newEv, colliding, opts)

		dc := DetailedConflict{
			NewEvent:                newEv,
			ConflictingEvents:       colliding,
			OverlapType:             classifyOverlap(newEv, colliding),
			ConflictDurationMinutes: minutes,
			ConflictPercentage:      percentage,
			Severity:                severity,
			Suggestions:             suggestions,
		}
		if len(suggestions) > 0 {
			dc.Suggestion = suggestions[0].Description
		}
		conflicts = append(conflicts, dc)
	}

	return conflicts, nil
}

// EventsConflict reports whether two events collide once each interval is
// padded by the buffer on both sides. The test is symmetric.
func EventsConflict(a, b model.CalendarEvent, buffer time.Duration) bool {
	return a.StartDate.Add(-buffer).Before(b.EndDate) &&
		a.EndDate.Add(buffer).After(b.StartDate)
}

// classifyOverlap checks colliding events in input order and returns on the
// first containment found; anything else is a partial overlap.
func classifyOverlap(newEv model.CalendarEvent, colliding []model.CalendarEvent) OverlapType {
	for _, ex := range colliding {
		if !newEv.StartDate.Before(ex.StartDate) && !newEv.EndDate.After(ex.EndDate) {
			return OverlapComplete
		}
		if !ex.StartDate.Before(newEv.StartDate) && !ex.EndDate.After(newEv.EndDate) {
			return OverlapSurrounding
		}
	}
	return OverlapPartial
}

// overlapMinutes sums the raw (unbuffered) overlap with each colliding event
// independently. When colliding events themselves overlap each other the
// shared minutes are counted once per event; consumers rely on that, so the
// sum is deliberately not deduplicated.
func overlapMinutes(newEv model.CalendarEvent, colliding []model.CalendarEvent) int {
	total := 0
	for _, ex := range colliding {
		start := maxTime(newEv.StartDate, ex.StartDate)
		end := minTime(newEv.EndDate, ex.EndDate)
		if end.After(start) {
			total += int(end.Sub(start).Minutes())
		}
	}
	return total
}

// classifySeverity applies the tier rules high-first.
func classifySeverity(percentage, conflictCount int) Severity {
	switch {
	case percentage >= 80 || conflictCount >= 3:
		return SeverityHigh
	case percentage >= 40 || conflictCount >= 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
