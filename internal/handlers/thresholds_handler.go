package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/thresholds"
)

// ThresholdsHandler reads and updates the threshold table
type ThresholdsHandler struct {
	table  *thresholds.Table
	logger *slog.Logger
}

// NewThresholdsHandler creates a new ThresholdsHandler instance
func NewThresholdsHandler(table *thresholds.Table, logger *slog.Logger) *ThresholdsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThresholdsHandler{table: table, logger: logger.With("component", "api")}
}

// HandleList returns the whole table (GET /api/thresholds)
func (h *ThresholdsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.table.Snapshot())
}

// HandleGet returns one metric's bounds (GET /api/thresholds/{metric})
func (h *ThresholdsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	b, err := h.table.Get(models.Metric(mux.Vars(r)["metric"]))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandlePut replaces one metric's bounds (PUT /api/thresholds/{metric}).
// An omitted side means no limit on that side.
func (h *ThresholdsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	metric := models.Metric(mux.Vars(r)["metric"])
	var b models.Bounds
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := h.table.Set(metric, b); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.logger.Info("thresholds updated", "metric", metric,
		"warning_low", b.WarningLow, "warning_high", b.WarningHigh,
		"critical_low", b.CriticalLow, "critical_high", b.CriticalHigh)
	writeJSON(w, http.StatusOK, b)
}
