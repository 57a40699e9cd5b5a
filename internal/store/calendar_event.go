package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fernhollow/almanac/internal/model"
	"github.com/fernhollow/almanac/internal/recurrence"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventColumns = `id, title, description, location, start_time, end_time, timezone, attendees, organizer, color, calendar_id, rrule, created_at, updated_at`

func (s *EventStore) Create(ev model.CalendarEvent) (*model.CalendarEvent, error) {
	attendees, err := marshalAttendees(ev.Attendees)
	if err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO calendar_events (title, description, location, start_time, end_time, timezone, attendees, organizer, color, calendar_id, rrule)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Title, ev.Description, ev.Location, ev.StartDate.UTC(), ev.EndDate.UTC(),
		ev.Timezone, attendees, ev.Organizer, ev.Color, ev.CalendarID, ev.RRule,
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(strconv.FormatInt(id, 10))
}

func (s *EventStore) GetByID(id string) (*model.CalendarEvent, error) {
	rowID, err := parseRowID(id)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(
		`SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`, rowID,
	)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query calendar event: %w", err)
	}
	return ev, nil
}

// ListByDateRange returns stored rows overlapping [start, end), plus every
// recurring event regardless of its base start, since occurrences may fall
// inside the window even when the base row does not.
func (s *EventStore) ListByDateRange(start, end time.Time) ([]model.CalendarEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+eventColumns+`
		 FROM calendar_events
		 WHERE (start_time < ? AND end_time > ?) OR rrule != ''
		 ORDER BY start_time ASC`,
		end.UTC(), start.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// EventsInRange expands recurring events into concrete occurrences within
// [start, end). Unparseable rules are logged and skipped so one bad row does
// not hide the rest of the schedule.
func (s *EventStore) EventsInRange(start, end time.Time) ([]model.CalendarEvent, error) {
	events, err := s.ListByDateRange(start, end)
	if err != nil {
		return nil, err
	}

	expanded, errs := recurrence.ExpandAll(events, start, end)
	for _, err := range errs {
		slog.Warn("skipping event with bad recurrence rule", "error", err)
	}
	return expanded, nil
}

func (s *EventStore) Update(ev model.CalendarEvent) (*model.CalendarEvent, error) {
	rowID, err := parseRowID(ev.ID)
	if err != nil {
		return nil, err
	}
	attendees, err := marshalAttendees(ev.Attendees)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`UPDATE calendar_events
		 SET title = ?, description = ?, location = ?, start_time = ?, end_time = ?, timezone = ?, attendees = ?, organizer = ?, color = ?, calendar_id = ?, rrule = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		ev.Title, ev.Description, ev.Location, ev.StartDate.UTC(), ev.EndDate.UTC(),
		ev.Timezone, attendees, ev.Organizer, ev.Color, ev.CalendarID, ev.RRule, rowID,
	)
	if err != nil {
		return nil, fmt.Errorf("update calendar event: %w", err)
	}

	return s.GetByID(ev.ID)
}

func (s *EventStore) Delete(id string) error {
	rowID, err := parseRowID(id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM calendar_events WHERE id = ?", rowID); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.CalendarEvent, error) {
	var ev model.CalendarEvent
	var rowID int64
	var attendees string

	err := row.Scan(&rowID, &ev.Title, &ev.Description, &ev.Location, &ev.StartDate, &ev.EndDate,
		&ev.Timezone, &attendees, &ev.Organizer, &ev.Color, &ev.CalendarID, &ev.RRule,
		&ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, err
	}

	ev.ID = strconv.FormatInt(rowID, 10)
	if err := json.Unmarshal([]byte(attendees), &ev.Attendees); err != nil {
		return nil, fmt.Errorf("decode attendees: %w", err)
	}
	if ev.Attendees == nil {
		ev.Attendees = []string{}
	}
	return &ev, nil
}

func marshalAttendees(attendees []string) (string, error) {
	if attendees == nil {
		attendees = []string{}
	}
	b, err := json.Marshal(attendees)
	if err != nil {
		return "", fmt.Errorf("encode attendees: %w", err)
	}
	return string(b), nil
}

func parseRowID(id string) (int64, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid event id %q: %w", id, err)
	}
	return rowID, nil
}
