package model

import "time"

// CalendarEvent is the canonical event shape used everywhere past the
// validation boundary. Description and Location are never null on the wire;
// absent values are normalized to "".
type CalendarEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Timezone    string    `json:"timezone"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Attendees   []string  `json:"attendees"`
	Organizer   string    `json:"organizer,omitempty"`
	Color       string    `json:"color,omitempty"`
	CalendarID  string    `json:"calendarId,omitempty"`
	RRule       string    `json:"rrule,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// Duration returns the event's length.
func (e CalendarEvent) Duration() time.Duration {
	return e.EndDate.Sub(e.StartDate)
}

// Overlaps reports whether the event's interval intersects [start, end).
func (e CalendarEvent) Overlaps(start, end time.Time) bool {
	return e.StartDate.Before(end) && e.EndDate.After(start)
}
