package aiparse

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fernhollow/almanac/internal/model"
)

// Parser turns raw generative-model output into validated calendar events.
// It is resilience-first: malformed input degrades through strategies and
// produces warnings, never an error. The only returned error is an internal
// bug surfacing through a recovered panic.
type Parser struct {
	opts   Options
	loc    *time.Location
	logger *slog.Logger
}

func NewParser(opts Options, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &Parser{opts: opts, loc: opts.location(), logger: logger}
}

// A strategy is one ordered attempt at extracting raw events. Attempts
// return a tagged failure instead of panicking so the pipeline stays a clean
// first-success-wins state machine.
type strategy struct {
	name    string
	attempt func(raw string) ([]RawEvent, error)
}

// Parse runs the fallback chain: direct JSON, structured extraction from
// mixed content, then line heuristics. It always returns a ParsedResponse
// with a non-nil Events slice; the error is non-nil only for catastrophic
// internal failure unrelated to input shape.
func (p *Parser) Parse(raw string) (resp ParsedResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ai processing error: %v", r)
		}
	}()

	resp = ParsedResponse{
		Events:      []model.CalendarEvent{},
		RawResponse: raw,
		Warnings:    []string{},
	}

	strategies := []strategy{
		{MethodJSON, p.attemptDirect},
		{MethodStructured, p.attemptStructured},
		{MethodFallback, p.attemptHeuristic},
	}

	var rawEvents []RawEvent
	for _, st := range strategies {
		events, aerr := st.attempt(raw)
		if aerr != nil {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("%s parsing failed: %v", st.name, aerr))
			continue
		}
		if len(events) == 0 {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("%s parsing produced no events", st.name))
			continue
		}
		rawEvents = events
		resp.ParsingMethod = st.name
		break
	}

	if resp.ParsingMethod == "" {
		resp.ParsingMethod = MethodFallback
		resp.Warnings = append(resp.Warnings, "no events could be extracted from the response")
		p.logger.Debug("ai response yielded no events", "length", len(raw))
		return resp, nil
	}

	var convertWarnings []string
	converted := make([]model.CalendarEvent, 0, len(rawEvents))
	for _, re := range rawEvents {
		ev, warns := convertRaw(re, p.opts, p.loc)
		converted = append(converted, ev)
		convertWarnings = append(convertWarnings, warns...)
	}

	validated, validateWarnings := ValidateEvents(converted, p.opts)
	resp.Events = validated
	resp.Warnings = append(resp.Warnings, convertWarnings...)
	resp.Warnings = append(resp.Warnings, validateWarnings...)

	p.logger.Debug("parsed ai response",
		"method", resp.ParsingMethod,
		"events", len(resp.Events),
		"warnings", len(resp.Warnings))
	return resp, nil
}

// attemptDirect repairs the whole response and decodes it as JSON.
func (p *Parser) attemptDirect(raw string) ([]RawEvent, error) {
	return decodeEvents(Repair(raw))
}

// attemptStructured scans the raw text for bracket-delimited fragments and
// runs the direct strategy on each, accepting the first fragment that yields
// at least one usable event.
func (p *Parser) attemptStructured(raw string) ([]RawEvent, error) {
	for _, candidate := range extractCandidates(raw) {
		events, err := decodeEvents(Repair(candidate))
		if err != nil || len(events) == 0 {
			continue
		}
		for _, ev := range events {
			if ev.usable() {
				return events, nil
			}
		}
	}
	return nil, errors.New("no parseable JSON fragment found")
}

// attemptHeuristic parses label-style lines out of prose.
func (p *Parser) attemptHeuristic(raw string) ([]RawEvent, error) {
	return parseEventLines(raw), nil
}

// decodeEvents normalizes the three accepted payload shapes: a top-level
// array, an {"events": [...]} wrapper, and a single bare event object.
func decodeEvents(payload string) ([]RawEvent, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" || trimmed == "[]" {
		return nil, nil
	}

	var arr []RawEvent
	if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
		return arr, nil
	}

	var wrapper struct {
		Events []RawEvent `json:"events"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err == nil && wrapper.Events != nil {
		return wrapper.Events, nil
	}

	var single RawEvent
	if err := json.Unmarshal([]byte(trimmed), &single); err == nil {
		if single.empty() {
			return nil, nil
		}
		return []RawEvent{single}, nil
	}

	return nil, errors.New("response is not valid JSON in any recognized shape")
}

// extractCandidates returns every balanced bracket- or brace-delimited
// substring of the raw text, outermost first.
func extractCandidates(raw string) []string {
	var candidates []string
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' && raw[i] != '[' {
			continue
		}
		end, ok := scanValue(raw, i)
		if !ok {
			continue
		}
		candidates = append(candidates, raw[i:end])
		i = end - 1
	}
	return candidates
}
