package recurrence

import (
	"testing"
	"time"

	"github.com/fernhollow/almanac/internal/model"
)

func baseEvent(rule string) model.CalendarEvent {
	return model.CalendarEvent{
		ID:        "42",
		Title:     "Standup",
		StartDate: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), // a Monday
		EndDate:   time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC),
		RRule:     rule,
	}
}

func TestExpandNonRecurring(t *testing.T) {
	ev := baseEvent("")
	rangeStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	occ, err := Expand(ev, rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(occ) != 1 {
		t.Fatalf("got %d occurrences, want 1", len(occ))
	}
	if occ[0].ID != "42" {
		t.Errorf("non-recurring occurrence should keep its ID, got %q", occ[0].ID)
	}

	outside, err := Expand(ev, rangeEnd, rangeEnd.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(outside) != 0 {
		t.Errorf("event outside window expanded to %d occurrences, want 0", len(outside))
	}
}

func TestExpandDaily(t *testing.T) {
	ev := baseEvent("FREQ=DAILY")
	rangeStart := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)

	occ, err := Expand(ev, rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(occ) != 3 {
		t.Fatalf("got %d occurrences, want 3 (Jun 2, 3, 4)", len(occ))
	}
	for i, o := range occ {
		wantStart := ev.StartDate.AddDate(0, 0, i)
		if !o.StartDate.Equal(wantStart) {
			t.Errorf("occurrence %d start = %v, want %v", i, o.StartDate, wantStart)
		}
		if o.EndDate.Sub(o.StartDate) != 15*time.Minute {
			t.Errorf("occurrence %d duration = %v, want 15m", i, o.EndDate.Sub(o.StartDate))
		}
	}
	if occ[0].ID != "42" {
		t.Errorf("first occurrence should keep the base ID, got %q", occ[0].ID)
	}
	if occ[1].ID == "42" || occ[1].ID == occ[2].ID {
		t.Errorf("later occurrences need distinct instance IDs, got %q and %q", occ[1].ID, occ[2].ID)
	}
}

func TestExpandWeeklyByDay(t *testing.T) {
	ev := baseEvent("FREQ=WEEKLY;BYDAY=MO,WE")
	rangeStart := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)

	occ, err := Expand(ev, rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(occ) != 2 {
		t.Fatalf("got %d occurrences, want 2 (Mon + Wed)", len(occ))
	}
	if occ[0].StartDate.Weekday() != time.Monday || occ[1].StartDate.Weekday() != time.Wednesday {
		t.Errorf("weekdays = %v, %v; want Monday, Wednesday", occ[0].StartDate.Weekday(), occ[1].StartDate.Weekday())
	}
}

func TestExpandCountLimit(t *testing.T) {
	ev := baseEvent("FREQ=DAILY;COUNT=2")
	rangeStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	occ, err := Expand(ev, rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(occ) != 2 {
		t.Errorf("got %d occurrences, want 2 (COUNT=2)", len(occ))
	}
}

func TestExpandInvalidRule(t *testing.T) {
	ev := baseEvent("FREQ=SOMETIMES")
	_, err := Expand(ev, time.Now(), time.Now().Add(time.Hour))
	if err == nil {
		t.Fatal("expected an error for an unparseable rule")
	}
}

func TestExpandAllSkipsBadRules(t *testing.T) {
	good := baseEvent("FREQ=DAILY;COUNT=1")
	bad := baseEvent("not a rule")
	bad.ID = "43"

	rangeStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	occ, errs := ExpandAll([]model.CalendarEvent{good, bad}, rangeStart, rangeEnd)
	if len(occ) != 1 {
		t.Errorf("got %d occurrences, want 1 from the valid event", len(occ))
	}
	if len(errs) != 1 {
		t.Errorf("got %d errors, want 1 for the bad rule", len(errs))
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		rule string
		want string
	}{
		{"", ""},
		{"FREQ=DAILY", "Repeats daily"},
		{"FREQ=DAILY;INTERVAL=3", "Repeats every 3 days"},
		{"FREQ=WEEKLY;BYDAY=MO,WE", "Repeats weekly on Mon, Wed"},
		{"FREQ=WEEKLY;INTERVAL=2", "Repeats every 2 weeks"},
		{"FREQ=MONTHLY", "Repeats monthly"},
		{"FREQ=YEARLY", "Repeats yearly"},
		{"garbage", ""},
	}
	for _, tt := range tests {
		if got := Describe(tt.rule); got != tt.want {
			t.Errorf("Describe(%q) = %q, want %q", tt.rule, got, tt.want)
		}
	}
}
