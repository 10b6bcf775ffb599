package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/services"
)

// AlertsHandler handles the alert log under /api/alerts
type AlertsHandler struct {
	projector *services.AlertProjector
	ingestor  *services.Ingestor
}

// NewAlertsHandler creates a new AlertsHandler instance.
// Acknowledgements go through the ingestor so sinks see the change.
func NewAlertsHandler(projector *services.AlertProjector, ingestor *services.Ingestor) *AlertsHandler {
	return &AlertsHandler{projector: projector, ingestor: ingestor}
}

// AlertsResponse is the response for GET /api/alerts
type AlertsResponse struct {
	Items []models.Alert `json:"items"`
	Total int            `json:"total"`
}

// HandleList returns alerts newest first (GET /api/alerts?state=&severity=&metric=&zone=&q=)
func (h *AlertsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := services.AlertFilter{
		Zone: strings.TrimSpace(q.Get("zone")),
		Text: strings.TrimSpace(q.Get("q")),
	}
	if s := q.Get("state"); s != "" {
		state, ok := models.ParseAlertState(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid state (must be active, acknowledged or resolved)")
			return
		}
		f.State = state
	}
	if s := q.Get("severity"); s != "" {
		severity, err := models.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Severity = severity
	}
	if s := q.Get("metric"); s != "" {
		metric, err := models.ParseMetric(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Metric = metric
	}

	items := h.projector.List(f)
	writeJSON(w, http.StatusOK, AlertsResponse{Items: items, Total: len(items)})
}

// HandleStats returns alert counters (GET /api/alerts/stats)
func (h *AlertsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.projector.Stats())
}

// HandleGet returns one alert (GET /api/alerts/{id})
func (h *AlertsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.projector.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleAcknowledge acknowledges an alert (POST /api/alerts/{id}/ack)
func (h *AlertsHandler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	a, err := h.ingestor.Acknowledge(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}
