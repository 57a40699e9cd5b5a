package conflict

import (
	"errors"
	"testing"
	"time"

	"github.com/fernhollow/almanac/internal/model"
)

func event(title string, start, end time.Time) model.CalendarEvent {
	return model.CalendarEvent{ID: title, Title: title, StartDate: start, EndDate: end, Timezone: "UTC"}
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 2, hour, minute, 0, 0, time.UTC)
}

func utcOptions(bufferMinutes int) Options {
	return Options{
		BufferMinutes: bufferMinutes,
		WorkingHours:  WorkingHours{Start: 9, End: 18},
		Location:      time.UTC,
	}
}

func TestDetectConflictsPartialOverlap(t *testing.T) {
	newEv := event("New", at(10, 0), at(11, 0))
	existing := event("Existing", at(10, 30), at(11, 30))

	conflicts, err := DetectConflicts([]model.CalendarEvent{newEv}, []model.CalendarEvent{existing}, utcOptions(0))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}

	c := conflicts[0]
	if c.OverlapType != OverlapPartial {
		t.Errorf("overlap type = %q, want partial", c.OverlapType)
	}
	if c.ConflictDurationMinutes != 30 {
		t.Errorf("conflict minutes = %d, want 30", c.ConflictDurationMinutes)
	}
	if c.ConflictPercentage != 50 {
		t.Errorf("conflict percentage = %d, want 50", c.ConflictPercentage)
	}
	if c.Severity != SeverityMedium {
		t.Errorf("severity = %q, want medium (50%% >= 40)", c.Severity)
	}
	if len(c.ConflictingEvents) != 1 {
		t.Errorf("conflicting events = %d, want 1", len(c.ConflictingEvents))
	}
}

func TestDetectConflictsCompleteOverlap(t *testing.T) {
	newEv := event("New", at(10, 0), at(10, 30))
	existing := event("Existing", at(9, 0), at(12, 0))

	conflicts, err := DetectConflicts([]model.CalendarEvent{newEv}, []model.CalendarEvent{existing}, utcOptions(0))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	if conflicts[0].OverlapType != OverlapComplete {
		t.Errorf("overlap type = %q, want complete", conflicts[0].OverlapType)
	}
	if conflicts[0].ConflictPercentage != 100 {
		t.Errorf("conflict percentage = %d, want 100", conflicts[0].ConflictPercentage)
	}
}

func TestDetectConflictsSurroundingOverlap(t *testing.T) {
	newEv := event("New", at(9, 0), at(12, 0))
	existing := event("Existing", at(10, 0), at(10, 30))

	conflicts, err := DetectConflicts([]model.CalendarEvent{newEv}, []model.CalendarEvent{existing}, utcOptions(0))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	if conflicts[0].OverlapType != OverlapSurrounding {
		t.Errorf("overlap type = %q, want surrounding", conflicts[0].OverlapType)
	}
}

func TestDetectConflictsNoOverlap(t *testing.T) {
	newEv := event("New", at(10, 0), at(11, 0))
	existing := event("Existing", at(14, 0), at(15, 0))

	conflicts, err := DetectConflicts([]model.CalendarEvent{newEv}, []model.CalendarEvent{existing}, utcOptions(0))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("got %d conflicts, want 0", len(conflicts))
	}
}

func TestDetectConflictsBufferExtendsOverlap(t *testing.T) {
	// Back to back: 10:00-11:00 and 11:00-12:00. No raw overlap, but a
	// 15-minute buffer makes them collide.
	newEv := event("New", at(10, 0), at(11, 0))
	existing := event("Existing", at(11, 0), at(12, 0))

	conflicts, err := DetectConflicts([]model.CalendarEvent{newEv}, []model.CalendarEvent{existing}, utcOptions(0))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("zero buffer: got %d conflicts, want 0", len(conflicts))
	}

	conflicts, err = DetectConflicts([]model.CalendarEvent{newEv}, []model.CalendarEvent{existing}, utcOptions(15))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("15m buffer: got %d conflicts, want 1", len(conflicts))
	}
	if conflicts[0].ConflictDurationMinutes != 0 {
		t.Errorf("buffered-only collision should have 0 raw overlap minutes, got %d", conflicts[0].ConflictDurationMinutes)
	}
}

func TestEventsConflictSymmetry(t *testing.T) {
	pairs := []struct {
		a, b model.CalendarEvent
	}{
		{event("A", at(10, 0), at(11, 0)), event("B", at(10, 30), at(11, 30))},
		{event("A", at(10, 0), at(11, 0)), event("B", at(12, 0), at(13, 0))},
		{event("A", at(10, 0), at(11, 0)), event("B", at(11, 0), at(12, 0))},
		{event("A", at(9, 0), at(17, 0)), event("B", at(12, 0), at(12, 30))},
	}
	for _, buffer := range []time.Duration{0, 15 * time.Minute} {
		for _, p := range pairs {
			if EventsConflict(p.a, p.b, buffer) != EventsConflict(p.b, p.a, buffer) {
				t.Errorf("asymmetric conflict for %v vs %v at buffer %v", p.a.Title, p.b.Title, buffer)
			}
		}
	}
}

func TestSeverityRules(t *testing.T) {
	tests := []struct {
		percentage int
		count      int
		want       Severity
	}{
		{10, 1, SeverityLow},
		{39, 1, SeverityLow},
		{40, 1, SeverityMedium},
		{50, 1, SeverityMedium},
		{10, 2, SeverityMedium},
		{79, 1, SeverityMedium},
		{80, 1, SeverityHigh},
		{100, 1, SeverityHigh},
		{10, 3, SeverityHigh},
		{200, 5, SeverityHigh},
	}
	for _, tt := range tests {
		if got := classifySeverity(tt.percentage, tt.count); got != tt.want {
			t.Errorf("classifySeverity(%d, %d) = %q, want %q", tt.percentage, tt.count, got, tt.want)
		}
	}
}

func TestSeverityMonotonicInPercentage(t *testing.T) {
	for count := 1; count <= 4; count++ {
		prev := 0
		for pct := 0; pct <= 200; pct += 5 {
			rank := classifySeverity(pct, count).Rank()
			if rank < prev {
				t.Fatalf("severity rank decreased at pct=%d count=%d", pct, count)
			}
			prev = rank
		}
	}
}

func TestDetectConflictsDoubleCountedMinutes(t *testing.T) {
	// Two existing events occupy the same hour as the new event. The summed
	// minutes intentionally double-count: 60 + 60, not a 60-minute union.
	newEv := event("New", at(10, 0), at(11, 0))
	existing := []model.CalendarEvent{
		event("A", at(10, 0), at(11, 0)),
		event("B", at(10, 0), at(11, 0)),
	}

	conflicts, err := DetectConflicts([]model.CalendarEvent{newEv}, existing, utcOptions(0))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	if conflicts[0].ConflictDurationMinutes != 120 {
		t.Errorf("conflict minutes = %d, want 120 (double-counted)", conflicts[0].ConflictDurationMinutes)
	}
	if conflicts[0].ConflictPercentage != 200 {
		t.Errorf("conflict percentage = %d, want 200", conflicts[0].ConflictPercentage)
	}
	if conflicts[0].Severity != SeverityHigh {
		t.Errorf("severity = %q, want high", conflicts[0].Severity)
	}
}

func TestDetectConflictsDeterministicOrder(t *testing.T) {
	a := event("A", at(10, 0), at(11, 0))
	b := event("B", at(14, 0), at(15, 0))
	existing := []model.CalendarEvent{
		event("X", at(10, 30), at(11, 30)),
		event("Y", at(14, 30), at(15, 30)),
	}

	conflicts, err := DetectConflicts([]model.CalendarEvent{a, b}, existing, utcOptions(0))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(conflicts) != 2 {
		t.Fatalf("got %d conflicts, want 2", len(conflicts))
	}
	if conflicts[0].NewEvent.Title != "A" || conflicts[1].NewEvent.Title != "B" {
		t.Errorf("conflicts out of input order: %q then %q", conflicts[0].NewEvent.Title, conflicts[1].NewEvent.Title)
	}
}

func TestDetectConflictsRejectsNonPositiveDuration(t *testing.T) {
	bad := event("Bad", at(10, 0), at(10, 0))
	_, err := DetectConflicts([]model.CalendarEvent{bad}, nil, utcOptions(0))
	if err == nil {
		t.Fatal("expected a calendar error for zero-duration event")
	}
	var calErr *model.CalendarError
	if !errors.As(err, &calErr) {
		t.Fatalf("error type = %T, want *model.CalendarError", err)
	}
	if calErr.Op != "detectSchedulingConflicts" {
		t.Errorf("op = %q, want detectSchedulingConflicts", calErr.Op)
	}
}

func TestDetectConflictsLegacySuggestionMirror(t *testing.T) {
	newEv := event("New", at(10, 0), at(11, 0))
	existing := event("Existing", at(10, 30), at(11, 30))

	conflicts, err := DetectConflicts([]model.CalendarEvent{newEv}, []model.CalendarEvent{existing}, utcOptions(0))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	c := conflicts[0]
	if len(c.Suggestions) == 0 {
		t.Fatal("expected at least one suggestion")
	}
	if c.Suggestion != c.Suggestions[0].Description {
		t.Errorf("legacy suggestion %q does not mirror first suggestion %q", c.Suggestion, c.Suggestions[0].Description)
	}
}
