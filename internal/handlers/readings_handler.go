package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/services"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/store"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/thresholds"
)

// ReadingsHandler handles ingestion and queries under /api/readings
type ReadingsHandler struct {
	ingestor *services.Ingestor
	query    *services.QueryService
	store    services.ReadingSource
	logger   *slog.Logger
}

// NewReadingsHandler creates a new ReadingsHandler instance
func NewReadingsHandler(ingestor *services.Ingestor, query *services.QueryService, store services.ReadingSource, logger *slog.Logger) *ReadingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingsHandler{ingestor: ingestor, query: query, store: store, logger: logger.With("component", "api")}
}

// IngestRequest is the body of POST /api/readings: either one reading or {"readings": [...]}
type IngestRequest struct {
	Readings []models.Reading `json:"readings"`
	models.Reading
}

// IngestBatchResponse is returned for a batch ingest
type IngestBatchResponse struct {
	Success bool              `json:"success"`
	Count   int               `json:"count"`
	Results []services.Result `json:"results"`
	Error   string            `json:"error,omitempty"`
}

// ReadingsResponse is the response of GET /api/readings
type ReadingsResponse struct {
	Items []models.ClassifiedReading `json:"items"`
	Total int                        `json:"total"`
}

// HandlePost ingests one reading or a batch (POST /api/readings)
func (h *ReadingsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if req.Readings == nil {
		res, err := h.ingestor.Ingest(r.Context(), req.Reading)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, res)
		return
	}

	h.logger.Info("POST /api/readings", "batch", len(req.Readings))
	results, err := h.ingestor.IngestBatch(r.Context(), req.Readings)
	resp := IngestBatchResponse{Success: err == nil, Count: len(results), Results: results}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// HandleList returns classified readings matching the filter (GET /api/readings?...).
// limit keeps only the newest matches; items stay in ascending ID order.
func (h *ReadingsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items := slices.Collect(h.query.Search(r.Context(), f))
	if items == nil {
		items = []models.ClassifiedReading{}
	}
	total := len(items)
	if limit > 0 && total > limit {
		items = items[total-limit:]
	}
	writeJSON(w, http.StatusOK, ReadingsResponse{Items: items, Total: total})
}

// HandleLatest returns the newest reading (GET /api/readings/latest)
func (h *ReadingsHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	cr, ok := h.query.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no readings stored")
		return
	}
	writeJSON(w, http.StatusOK, cr)
}

// HandleRange returns readings by inclusive ID range (GET /api/readings/range/{from}/{to})
func (h *ReadingsHandler) HandleRange(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	from, err := strconv.ParseInt(vars["from"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid from id %q", vars["from"]))
		return
	}
	to, err := strconv.ParseInt(vars["to"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid to id %q", vars["to"]))
		return
	}

	items := slices.Collect(h.query.Classify(h.store.Range(from, to)))
	if items == nil {
		items = []models.ClassifiedReading{}
	}
	writeJSON(w, http.StatusOK, ReadingsResponse{Items: items, Total: len(items)})
}

// HandleAggregate returns stats of one metric over the filtered readings
// (GET /api/readings/aggregate?metric=temperature&...)
func (h *ReadingsHandler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	metric, err := models.ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := services.Aggregate(h.query.Search(r.Context(), f), metric)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleSummary returns dashboard stats over the filtered readings (GET /api/readings/summary).
// An empty selection yields a zero summary rather than an error.
func (h *ReadingsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := services.Summarize(h.query.Search(r.Context(), f))
	if err != nil && !errors.Is(err, services.ErrEmptySelection) {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleExport streams the filtered readings as CSV (GET /api/readings/export.csv)
func (h *ReadingsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sensor-logs.csv"`)
	count, err := services.ExportCSV(w, h.query.Search(r.Context(), f))
	if err != nil {
		// headers are already sent
		h.logger.Error("export failed", "rows", count, "error", err)
		return
	}
	h.logger.Info("GET /api/readings/export.csv", "rows", count)
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNonMonotonicReading):
		return http.StatusConflict
	case errors.Is(err, services.ErrEmptySelection), errors.Is(err, thresholds.ErrInvalidBounds),
		errors.Is(err, services.ErrMissingZone):
		return http.StatusUnprocessableEntity
	case errors.Is(err, thresholds.ErrUnknownMetric), errors.Is(err, services.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
