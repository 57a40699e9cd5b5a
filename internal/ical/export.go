package ical

import (
	"fmt"

	ics "github.com/arran4/golang-ical"

	"github.com/fernhollow/almanac/internal/model"
)

const prodID = "-//Fernhollow//Almanac//EN"

// BuildCalendar serializes the events as an iCalendar feed. Recurring events
// carry their RRULE so subscribing clients expand occurrences themselves.
func BuildCalendar(events []model.CalendarEvent) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(prodID)
	cal.SetCalscale("GREGORIAN")

	for _, ev := range events {
		ve := cal.AddEvent(uid(ev))
		ve.SetStartAt(ev.StartDate.UTC())
		ve.SetEndAt(ev.EndDate.UTC())
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.RRule != "" {
			ve.AddRrule(ev.RRule)
		}
		if ev.Organizer != "" {
			ve.SetOrganizer("mailto:" + ev.Organizer)
		}
		for _, attendee := range ev.Attendees {
			ve.AddAttendee(attendee)
		}
		if !ev.CreatedAt.IsZero() {
			ve.SetDtStampTime(ev.CreatedAt.UTC())
		}
	}

	return cal.Serialize()
}

func uid(ev model.CalendarEvent) string {
	return fmt.Sprintf("%s@almanac", ev.ID)
}
