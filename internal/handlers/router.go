package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// Handlers groups everything NewRouter mounts. Nil entries are not routed.
type Handlers struct {
	Readings   *ReadingsHandler
	Upload     *UploadHandler
	Load       *LoadHandler
	Zones      *ZonesHandler
	Alerts     *AlertsHandler
	Thresholds *ThresholdsHandler
	Generator  *GeneratorHandler
	Config     *ConfigHandler
	WS         http.HandlerFunc
	Metrics    http.Handler
}

// Endpoints lists the routes NewRouter can mount, for the startup log
var Endpoints = []string{
	"POST /api/readings",
	"GET  /api/readings?q=&zone=&status=&<metric>_status=&<metric>_min=&<metric>_max=&from=&to=&limit=",
	"GET  /api/readings/latest",
	"GET  /api/readings/range/{from}/{to}",
	"GET  /api/readings/aggregate?metric=<metric>",
	"GET  /api/readings/summary",
	"GET  /api/readings/export.csv",
	"POST /api/readings/import",
	"POST /api/load",
	"POST /api/generate",
	"GET  /api/zones",
	"GET  /api/zones/names",
	"GET  /api/alerts?state=&severity=&metric=&zone=&q=",
	"GET  /api/alerts/stats",
	"GET  /api/alerts/{id}",
	"POST /api/alerts/{id}/ack",
	"GET  /api/thresholds",
	"GET  /api/thresholds/{metric}",
	"PUT  /api/thresholds/{metric}",
	"GET  /api/config",
	"GET  /ws",
	"GET  /metrics",
	"GET  /health",
}

// NewRouter builds the HTTP routes and wraps them in the CORS middleware
func NewRouter(h Handlers) http.Handler {
	router := mux.NewRouter()
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	// API routes
	api := router.PathPrefix("/api").Subrouter()
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	if h.Readings != nil {
		api.HandleFunc("/readings", h.Readings.HandlePost).Methods("POST")
		api.HandleFunc("/readings", h.Readings.HandleList).Methods("GET")
		api.HandleFunc("/readings/latest", h.Readings.HandleLatest).Methods("GET")
		api.HandleFunc("/readings/range/{from}/{to}", h.Readings.HandleRange).Methods("GET")
		api.HandleFunc("/readings/aggregate", h.Readings.HandleAggregate).Methods("GET")
		api.HandleFunc("/readings/summary", h.Readings.HandleSummary).Methods("GET")
		api.HandleFunc("/readings/export.csv", h.Readings.HandleExport).Methods("GET")
	}
	if h.Upload != nil {
		api.HandleFunc("/readings/import", h.Upload.Handle).Methods("POST")
	}
	if h.Load != nil {
		api.HandleFunc("/load", h.Load.Handle).Methods("POST")
	}
	if h.Generator != nil {
		api.HandleFunc("/generate", h.Generator.Handle).Methods("POST")
	}
	if h.Zones != nil {
		api.HandleFunc("/zones/names", h.Zones.HandleListNames).Methods("GET")
		api.HandleFunc("/zones", h.Zones.HandleGet).Methods("GET")
	}
	if h.Alerts != nil {
		api.HandleFunc("/alerts", h.Alerts.HandleList).Methods("GET")
		api.HandleFunc("/alerts/stats", h.Alerts.HandleStats).Methods("GET")
		api.HandleFunc("/alerts/{id}", h.Alerts.HandleGet).Methods("GET")
		api.HandleFunc("/alerts/{id}/ack", h.Alerts.HandleAcknowledge).Methods("POST")
	}
	if h.Thresholds != nil {
		api.HandleFunc("/thresholds", h.Thresholds.HandleList).Methods("GET")
		api.HandleFunc("/thresholds/{metric}", h.Thresholds.HandleGet).Methods("GET")
		api.HandleFunc("/thresholds/{metric}", h.Thresholds.HandlePut).Methods("PUT")
	}
	if h.Config != nil {
		api.HandleFunc("/config", h.Config.Handle).Methods("GET")
	}

	if h.WS != nil {
		router.HandleFunc("/ws", h.WS).Methods("GET")
	}
	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics).Methods("GET")
	}

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}).Methods("GET")

	return corsMiddleware(router)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// corsMiddleware allows all origins in dev
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
