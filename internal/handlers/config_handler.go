package handlers

import (
	"net/http"

	"github.com/sosodev/duration"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/config"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/thresholds"
)

// ConfigHandler handles GET /api/config to expose server settings for the dashboard.
type ConfigHandler struct {
	cfg   *config.Config
	table *thresholds.Table
}

// NewConfigHandler creates a new ConfigHandler from the loaded config and the live table.
func NewConfigHandler(cfg *config.Config, table *thresholds.Table) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, table: table}
}

// StoreSettings is the JSON shape of the store section.
type StoreSettings struct {
	Capacity  int    `json:"capacity"`
	Retention string `json:"retention,omitempty"` // ISO 8601
}

// SimulatorSettings is the JSON shape of the simulator section.
type SimulatorSettings struct {
	Enabled  bool    `json:"enabled"`
	Interval string  `json:"interval"` // ISO 8601
	Jitter   float64 `json:"jitter"`
}

// ConfigResponse is the JSON response for GET /api/config.
type ConfigResponse struct {
	Store      StoreSettings                   `json:"store"`
	Simulator  SimulatorSettings               `json:"simulator"`
	Thresholds map[models.Metric]models.Bounds `json:"thresholds"`
	Metrics    []models.Metric                 `json:"metrics"`
}

// Handle responds with the effective settings. Durations are rendered in ISO 8601.
func (h *ConfigHandler) Handle(w http.ResponseWriter, r *http.Request) {
	resp := ConfigResponse{
		Store: StoreSettings{Capacity: h.cfg.Store.Capacity},
		Simulator: SimulatorSettings{
			Enabled:  h.cfg.Simulator.Enabled,
			Interval: duration.Format(h.cfg.Simulator.Tick),
			Jitter:   h.cfg.Simulator.Jitter,
		},
		Thresholds: h.table.Snapshot(),
		Metrics:    models.Metrics,
	}
	if h.cfg.Store.RetentionWindow > 0 {
		resp.Store.Retention = duration.Format(h.cfg.Store.RetentionWindow)
	}
	writeJSON(w, http.StatusOK, resp)
}
