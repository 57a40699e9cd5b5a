package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fernhollow/almanac/internal/ai"
	"github.com/fernhollow/almanac/internal/aiparse"
	"github.com/fernhollow/almanac/internal/calctx"
	"github.com/fernhollow/almanac/internal/conflict"
	"github.com/fernhollow/almanac/internal/handler"
	"github.com/fernhollow/almanac/internal/middleware"
	"github.com/fernhollow/almanac/internal/store"
	ws "github.com/fernhollow/almanac/internal/websocket"
)

// Config carries the server-level knobs resolved from the environment.
type Config struct {
	// AccessCodeHash is a bcrypt hash gating the API. Empty disables the gate.
	AccessCodeHash string

	// DefaultTimezone is applied to parsed events that arrive without one.
	DefaultTimezone string

	// DefaultDuration is applied to parsed events with no usable end time.
	DefaultDuration time.Duration

	// Conflict tunes buffered-overlap detection for proposals.
	Conflict conflict.Options

	// ContextTTL bounds how long the schedule context cache is served.
	ContextTTL time.Duration
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	eventH      *handler.CalendarEventHandler
	assistantH  *handler.AssistantHandler
	exportH     *handler.ExportHandler
	rateLimiter *middleware.RateLimiter
	cfg         Config
	logger      *slog.Logger
}

func New(db *sql.DB, generator ai.Generator, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	eventStore := store.NewEventStore(db)
	reader := calctx.NewReader(eventStore, cfg.ContextTTL, logger.With("component", "calctx"))
	parser := aiparse.NewParser(aiparse.Options{
		FallbackTimezone: cfg.DefaultTimezone,
		DefaultDuration:  cfg.DefaultDuration,
	}, logger.With("component", "aiparse"))

	return &Server{
		db:          db,
		hub:         hub,
		eventH:      handler.NewCalendarEventHandler(eventStore, hub, reader, logger.With("component", "calendar")),
		assistantH:  handler.NewAssistantHandler(generator, parser, reader, eventStore, hub, cfg.Conflict, logger.With("component", "assistant")),
		exportH:     handler.NewExportHandler(eventStore, logger.With("component", "export")),
		rateLimiter: middleware.NewRateLimiter(),
		cfg:         cfg,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with the access-code middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	accessMiddleware := middleware.RequireAccessCode(s.cfg.AccessCodeHash)
	outerMux.Handle("/", accessMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// rateLimitedHandler throttles by client IP. Assistant routes get it because
// every call can fan out to a paid model API.
func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Calendar event API routes
	mux.HandleFunc("POST /api/events", s.eventH.Create)
	mux.HandleFunc("GET /api/events", s.eventH.List)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)

	// Assistant routes
	mux.HandleFunc("POST /api/assistant/propose", s.rateLimitedHandler(s.assistantH.Propose))
	mux.HandleFunc("POST /api/assistant/parse", s.rateLimitedHandler(s.assistantH.Parse))
	mux.HandleFunc("POST /api/assistant/confirm", s.assistantH.Confirm)

	// iCalendar feed
	mux.HandleFunc("GET /api/calendar.ics", s.exportH.Calendar)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
