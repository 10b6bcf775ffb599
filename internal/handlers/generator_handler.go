package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/config"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/services"
)

// maxGenerateCount caps one generate request
const maxGenerateCount = 100000

// Stream event types for NDJSON response
type streamEvent struct {
	Event   string `json:"event"`
	Count   int    `json:"count,omitempty"`
	Total   int    `json:"total,omitempty"`
	Message string `json:"message,omitempty"`
}

// GeneratorHandler handles POST /api/generate requests
type GeneratorHandler struct {
	generator    *services.Generator
	defaultCount int
	logger       *slog.Logger
}

// NewGeneratorHandler creates a new GeneratorHandler instance
func NewGeneratorHandler(generator *services.Generator, defaultCount int, logger *slog.Logger) *GeneratorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultCount <= 0 {
		defaultCount = 100
	}
	return &GeneratorHandler{generator: generator, defaultCount: defaultCount, logger: logger.With("component", "api")}
}

// GenerateRequest represents the request body for generate endpoint
type GenerateRequest struct {
	Count     int    `json:"count,omitempty"`     // Optional: number of readings. Default from handler.
	Start     string `json:"start,omitempty"`     // Optional: start time (ISO 8601). Default: so the last reading lands now.
	Interval  string `json:"interval,omitempty"`  // Optional: ISO 8601 or Go duration. Overrides frequency.
	Frequency string `json:"frequency,omitempty"` // Optional: 1min, 5min, 15min, 30min, 1hour. Default 1min.
}

// Handle handles the generate request
func (h *GeneratorHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// Parse request body (optional)
	var req GenerateRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // empty or invalid body keeps the defaults
	}

	count := req.Count
	if count <= 0 {
		count = h.defaultCount
	}
	if count > maxGenerateCount {
		writeError(w, http.StatusBadRequest, "count is too large")
		return
	}

	interval := frequencyInterval(req.Frequency)
	if req.Interval != "" {
		d, err := config.ParseDuration(req.Interval)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if d <= 0 {
			writeError(w, http.StatusBadRequest, "interval must be positive")
			return
		}
		interval = d
	}

	start := time.Now().UTC().Add(-time.Duration(count-1) * interval)
	if req.Start != "" {
		t, err := iso8601.ParseString(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
			return
		}
		start = t.UTC()
	}

	h.logger.Info("POST /api/generate", "count", count, "interval", interval, "start", start.Format(time.RFC3339))

	// Stream NDJSON: set headers and prepare flusher
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	var flusher http.Flusher
	if f, ok := w.(http.Flusher); ok {
		flusher = f
	}
	writeEvent := func(ev streamEvent) {
		data, _ := json.Marshal(ev)
		w.Write(append(data, '\n'))
		if flusher != nil {
			flusher.Flush()
		}
	}

	onProgress := func(done int) {
		writeEvent(streamEvent{Event: "progress", Count: done, Total: count})
	}

	done, err := h.generator.GenerateAndIngest(r.Context(), start, count, interval, onProgress)
	if err != nil {
		writeEvent(streamEvent{Event: "error", Count: done, Message: err.Error()})
		return
	}
	writeEvent(streamEvent{Event: "done", Count: done, Total: count})
}

// frequencyInterval parses 1min, 5min, 15min, 30min, 1hour (case-insensitive). Default 1min.
func frequencyInterval(s string) time.Duration {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "5min":
		return 5 * time.Minute
	case "15min":
		return 15 * time.Minute
	case "30min":
		return 30 * time.Minute
	case "1hour":
		return time.Hour
	default:
		return time.Minute
	}
}
