package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fernhollow/almanac/internal/ical"
	"github.com/fernhollow/almanac/internal/store"
)

// Feed covers a year back and two forward so subscribed clients see history
// and upcoming recurrences without unbounded expansion.
const (
	feedLookback  = 365 * 24 * time.Hour
	feedLookahead = 2 * 365 * 24 * time.Hour
)

type ExportHandler struct {
	store  *store.EventStore
	logger *slog.Logger
}

func NewExportHandler(s *store.EventStore, logger *slog.Logger) *ExportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportHandler{store: s, logger: logger}
}

// Calendar serves the whole schedule as an iCalendar feed. Recurring events
// keep their RRULE, so the feed lists base rows rather than expanded
// occurrences.
func (h *ExportHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	events, err := h.store.ListByDateRange(now.Add(-feedLookback), now.Add(feedLookahead))
	if err != nil {
		h.logger.Error("export calendar", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="almanac.ics"`)
	w.Write([]byte(ical.BuildCalendar(events)))
}
