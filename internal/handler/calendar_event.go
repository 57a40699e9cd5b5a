package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fernhollow/almanac/internal/calctx"
	"github.com/fernhollow/almanac/internal/model"
	"github.com/fernhollow/almanac/internal/store"
	"github.com/fernhollow/almanac/internal/websocket"
)

type CalendarEventHandler struct {
	store  *store.EventStore
	hub    *websocket.Hub
	reader *calctx.Reader
	logger *slog.Logger
}

func NewCalendarEventHandler(s *store.EventStore, hub *websocket.Hub, reader *calctx.Reader, logger *slog.Logger) *CalendarEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarEventHandler{store: s, hub: hub, reader: reader, logger: logger}
}

type eventRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Timezone    string   `json:"timezone"`
	Attendees   []string `json:"attendees"`
	Organizer   string   `json:"organizer"`
	Color       string   `json:"color"`
	CalendarID  string   `json:"calendar_id"`
	RRule       string   `json:"rrule"`
}

func (h *CalendarEventHandler) parseAndValidate(w http.ResponseWriter, r *http.Request) (model.CalendarEvent, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return model.CalendarEvent{}, false
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return model.CalendarEvent{}, false
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be RFC3339 format")
		return model.CalendarEvent{}, false
	}

	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_time must be RFC3339 format")
		return model.CalendarEvent{}, false
	}

	if !startTime.Before(endTime) {
		writeError(w, http.StatusBadRequest, "start_time must be before end_time")
		return model.CalendarEvent{}, false
	}

	if req.Timezone == "" {
		req.Timezone = "UTC"
	} else if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeError(w, http.StatusBadRequest, "timezone must be a valid IANA zone")
		return model.CalendarEvent{}, false
	}

	return model.CalendarEvent{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartDate:   startTime,
		EndDate:     endTime,
		Timezone:    req.Timezone,
		Attendees:   req.Attendees,
		Organizer:   req.Organizer,
		Color:       req.Color,
		CalendarID:  req.CalendarID,
		RRule:       req.RRule,
	}, true
}

func (h *CalendarEventHandler) Create(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	created, err := h.store.Create(ev)
	if err != nil {
		h.logger.Error("create calendar event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	h.reader.Invalidate()
	h.hub.Broadcast(websocket.NewMessage("event", "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, created)
}

func (h *CalendarEventHandler) List(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}

	start, err := parseFlexibleTime(startStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
		return
	}

	end, err := parseFlexibleTime(endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
		return
	}

	events, err := h.store.EventsInRange(start, end)
	if err != nil {
		h.logger.Error("list calendar events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.CalendarEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *CalendarEventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, ok := h.fetchByPathID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *CalendarEventHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.fetchByPathID(w, r)
	if !ok {
		return
	}

	ev, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}
	ev.ID = existing.ID

	updated, err := h.store.Update(ev)
	if err != nil {
		h.logger.Error("update calendar event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	h.reader.Invalidate()
	h.hub.Broadcast(websocket.NewMessage("event", "updated", updated.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *CalendarEventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.fetchByPathID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(existing.ID); err != nil {
		h.logger.Error("delete calendar event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	h.reader.Invalidate()
	h.hub.Broadcast(websocket.NewMessage("event", "deleted", existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// fetchByPathID loads the event named by the {id} path segment, writing the
// error response itself when the lookup fails.
func (h *CalendarEventHandler) fetchByPathID(w http.ResponseWriter, r *http.Request) (*model.CalendarEvent, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	event, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return nil, false
	}
	return event, true
}
