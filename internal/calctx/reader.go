package calctx

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fernhollow/almanac/internal/model"
)

const defaultCacheTTL = 5 * time.Minute

// EventSource supplies the stored schedule. The event store implements this;
// tests substitute fakes.
type EventSource interface {
	EventsInRange(start, end time.Time) ([]model.CalendarEvent, error)
}

// Reader serves the existing-event window for conflict checks and formats it
// as natural-language context for the next model prompt. It keeps a
// time-boxed cache per window; refreshes are serialized and a failed refresh
// degrades to stale data rather than failing the caller.
type Reader struct {
	source EventSource
	ttl    time.Duration
	logger *slog.Logger

	mu          sync.RWMutex
	cached      []model.CalendarEvent
	cachedStart time.Time
	cachedEnd   time.Time
	lastRefresh time.Time
}

func NewReader(source EventSource, ttl time.Duration, logger *slog.Logger) *Reader {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{source: source, ttl: ttl, logger: logger}
}

// GetEventsInRange returns the stored events overlapping [start, end).
func (r *Reader) GetEventsInRange(start, end time.Time) ([]model.CalendarEvent, error) {
	const op = "getEventsInRange"
	if end.Before(start) {
		return nil, model.NewCalendarError(op, fmt.Errorf("range end %v before start %v", end, start), false)
	}

	r.mu.RLock()
	if r.fresh(start, end) {
		events := r.cached
		r.mu.RUnlock()
		return events, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock; another request may have
	// refreshed the same window already.
	if r.fresh(start, end) {
		return r.cached, nil
	}

	events, err := r.source.EventsInRange(start, end)
	if err != nil {
		if r.sameWindow(start, end) && r.cached != nil {
			r.logger.Warn("event source refresh failed, serving stale data", "error", err)
			return r.cached, nil
		}
		return nil, model.NewCalendarError(op, err, true)
	}
	if events == nil {
		events = []model.CalendarEvent{}
	}

	r.cached = events
	r.cachedStart = start
	r.cachedEnd = end
	r.lastRefresh = time.Now()
	return events, nil
}

// FormatEventsForAI renders the window as a plain-language schedule digest
// suitable for inclusion in a model prompt.
func (r *Reader) FormatEventsForAI(start, end time.Time) (string, error) {
	const op = "formatEventsForAI"
	events, err := r.GetEventsInRange(start, end)
	if err != nil {
		return "", model.NewCalendarError(op, err, true)
	}

	if len(events) == 0 {
		return fmt.Sprintf("The user has no events scheduled between %s and %s.",
			start.Format("Mon Jan 2"), end.Format("Mon Jan 2")), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The user has %d event(s) scheduled between %s and %s:\n",
		len(events), start.Format("Mon Jan 2"), end.Format("Mon Jan 2"))
	for _, ev := range events {
		fmt.Fprintf(&b, "- %s: %s-%s %s",
			ev.StartDate.Format("Mon Jan 2"),
			ev.StartDate.Format("15:04"),
			ev.EndDate.Format("15:04"),
			ev.Title)
		if ev.Location != "" {
			fmt.Fprintf(&b, " (at %s)", ev.Location)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Invalidate drops the cache so the next read refreshes. Called after writes
// to the event store.
func (r *Reader) Invalidate() {
	r.mu.Lock()
	r.lastRefresh = time.Time{}
	r.mu.Unlock()
}

// fresh reports whether the cache covers exactly this window and is inside
// the TTL. Callers hold at least a read lock.
func (r *Reader) fresh(start, end time.Time) bool {
	return r.cached != nil && r.sameWindow(start, end) && time.Since(r.lastRefresh) < r.ttl
}

func (r *Reader) sameWindow(start, end time.Time) bool {
	return r.cachedStart.Equal(start) && r.cachedEnd.Equal(end)
}
