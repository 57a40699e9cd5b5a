package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fernhollow/almanac/internal/ai"
	"github.com/fernhollow/almanac/internal/aiparse"
	"github.com/fernhollow/almanac/internal/calctx"
	"github.com/fernhollow/almanac/internal/conflict"
	"github.com/fernhollow/almanac/internal/model"
	"github.com/fernhollow/almanac/internal/store"
	"github.com/fernhollow/almanac/internal/websocket"
)

const defaultProposalWindow = 7 * 24 * time.Hour

// AssistantHandler turns free-form scheduling requests into structured,
// conflict-checked event proposals.
type AssistantHandler struct {
	generator    ai.Generator
	parser       *aiparse.Parser
	reader       *calctx.Reader
	store        *store.EventStore
	hub          *websocket.Hub
	conflictOpts conflict.Options
	logger       *slog.Logger
	now          func() time.Time
}

func NewAssistantHandler(gen ai.Generator, parser *aiparse.Parser, reader *calctx.Reader, s *store.EventStore, hub *websocket.Hub, conflictOpts conflict.Options, logger *slog.Logger) *AssistantHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssistantHandler{
		generator:    gen,
		parser:       parser,
		reader:       reader,
		store:        s,
		hub:          hub,
		conflictOpts: conflictOpts,
		logger:       logger,
		now:          time.Now,
	}
}

type proposeRequest struct {
	Text        string `json:"text"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
}

type parseRequest struct {
	Response string `json:"response"`
}

type proposalMetadata struct {
	ParsingMethod string                      `json:"parsing_method"`
	Warnings      []string                    `json:"warnings"`
	Conflicts     []conflict.DetailedConflict `json:"conflicts"`
}

type proposalResponse struct {
	Events   []model.CalendarEvent `json:"events"`
	Metadata proposalMetadata      `json:"metadata"`
}

// Propose sends the user's request to the model together with a digest of
// the existing schedule, parses the response, and conflict-checks the result.
func (h *AssistantHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	windowStart, windowEnd, err := h.resolveWindow(req.WindowStart, req.WindowEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	digest, err := h.reader.FormatEventsForAI(windowStart, windowEnd)
	if err != nil {
		h.logger.Error("format schedule context", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read calendar context")
		return
	}

	raw, err := h.generator.GenerateText(r.Context(), buildPrompt(req.Text, digest, h.now()))
	if err != nil {
		h.logger.Error("generate proposal", "error", err)
		writeError(w, http.StatusBadGateway, "assistant is unavailable")
		return
	}

	h.respondWithProposal(w, raw, windowStart, windowEnd, true)
}

// Parse runs the extraction pipeline over a caller-supplied model response,
// skipping generation. Useful for replaying transcripts and debugging.
func (h *AssistantHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Response == "" {
		writeError(w, http.StatusBadRequest, "response is required")
		return
	}

	windowStart, windowEnd, _ := h.resolveWindow("", "")
	h.respondWithProposal(w, req.Response, windowStart, windowEnd, false)
}

type confirmRequest struct {
	Events []eventRequest `json:"events"`
}

// Confirm persists proposed events the user accepted and notifies clients.
func (h *AssistantHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "events are required")
		return
	}

	created := make([]model.CalendarEvent, 0, len(req.Events))
	for _, er := range req.Events {
		ev, err := eventFromRequest(er)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		stored, err := h.store.Create(ev)
		if err != nil {
			h.logger.Error("confirm proposed event", "error", err, "title", ev.Title)
			writeError(w, http.StatusInternalServerError, "failed to save events")
			return
		}
		created = append(created, *stored)
	}

	h.reader.Invalidate()
	for _, ev := range created {
		h.hub.Broadcast(websocket.NewMessage("event", "created", ev.ID, nil))
	}
	writeJSON(w, http.StatusCreated, map[string]any{"events": created})
}

func (h *AssistantHandler) respondWithProposal(w http.ResponseWriter, raw string, windowStart, windowEnd time.Time, notify bool) {
	parsed, err := h.parser.Parse(raw)
	if err != nil {
		h.logger.Error("parse model response", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "could not process the model response")
		return
	}

	existing, err := h.reader.GetEventsInRange(windowStart, windowEnd)
	if err != nil {
		h.logger.Error("read existing events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read calendar context")
		return
	}

	conflicts, err := conflict.DetectConflicts(parsed.Events, existing, h.conflictOpts)
	if err != nil {
		h.logger.Error("detect conflicts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check conflicts")
		return
	}
	if conflicts == nil {
		conflicts = []conflict.DetailedConflict{}
	}

	if notify {
		h.hub.Broadcast(websocket.NewMessage("proposal", "ready", "", map[string]any{
			"events":    len(parsed.Events),
			"conflicts": len(conflicts),
		}))
	}

	writeJSON(w, http.StatusOK, proposalResponse{
		Events: parsed.Events,
		Metadata: proposalMetadata{
			ParsingMethod: parsed.ParsingMethod,
			Warnings:      parsed.Warnings,
			Conflicts:     conflicts,
		},
	})
}

func (h *AssistantHandler) resolveWindow(startStr, endStr string) (time.Time, time.Time, error) {
	now := h.now()
	start := now
	end := now.Add(defaultProposalWindow)

	if startStr != "" {
		t, err := parseFlexibleTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("window_start must be RFC3339 or YYYY-MM-DD format")
		}
		start = t
	}
	if endStr != "" {
		t, err := parseFlexibleTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("window_end must be RFC3339 or YYYY-MM-DD format")
		}
		end = t
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("window_start must be before window_end")
	}
	return start, end, nil
}

func eventFromRequest(er eventRequest) (model.CalendarEvent, error) {
	title := strings.TrimSpace(er.Title)
	if title == "" {
		return model.CalendarEvent{}, fmt.Errorf("event title is required")
	}
	start, err := time.Parse(time.RFC3339, er.StartTime)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("event %q: start_time must be RFC3339 format", title)
	}
	end, err := time.Parse(time.RFC3339, er.EndTime)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("event %q: end_time must be RFC3339 format", title)
	}
	if !start.Before(end) {
		return model.CalendarEvent{}, fmt.Errorf("event %q: start_time must be before end_time", title)
	}
	tz := er.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return model.CalendarEvent{
		Title:       title,
		Description: er.Description,
		Location:    er.Location,
		StartDate:   start,
		EndDate:     end,
		Timezone:    tz,
		Attendees:   er.Attendees,
		Organizer:   er.Organizer,
		Color:       er.Color,
		CalendarID:  er.CalendarID,
		RRule:       er.RRule,
	}, nil
}

func buildPrompt(text, scheduleDigest string, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are a scheduling assistant. Extract calendar events from the request below.\n")
	b.WriteString("Respond with a JSON array of events. Each event has: title, startDate and endDate ")
	b.WriteString("(RFC3339), and optionally description, location, timezone, attendees.\n\n")
	fmt.Fprintf(&b, "Current time: %s\n\n", now.Format(time.RFC3339))
	b.WriteString(scheduleDigest)
	b.WriteString("\n\nRequest: ")
	b.WriteString(text)
	return b.String()
}
