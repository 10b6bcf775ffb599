package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/services"
)

// ZonesHandler handles GET /api/zones and GET /api/zones/names
type ZonesHandler struct {
	zonesService *services.ZonesService
}

// NewZonesHandler creates a new ZonesHandler
func NewZonesHandler(zonesService *services.ZonesService) *ZonesHandler {
	return &ZonesHandler{zonesService: zonesService}
}

// ZonesListResponse is the paginated response for GET /api/zones
type ZonesListResponse struct {
	Items []services.ZoneInfo `json:"items"`
	Total int                 `json:"total"`
}

// ZonesNamesResponse is the response for GET /api/zones/names
type ZonesNamesResponse struct {
	Zones []string `json:"zones"`
}

// HandleGet returns a page of zones (GET /api/zones?page=1&limit=9&search=)
func (h *ZonesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 9
	}
	if limit > 100 {
		limit = 100
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	items, total := h.zonesService.ListZonesPaginated(r.Context(), page, limit, search)
	writeJSON(w, http.StatusOK, ZonesListResponse{Items: items, Total: total})
}

// HandleListNames returns all zone labels (GET /api/zones/names)
func (h *ZonesHandler) HandleListNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ZonesNamesResponse{Zones: h.zonesService.ListZoneNames()})
}
