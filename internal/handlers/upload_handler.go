package handlers

import (
	"net/http"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/services"
)

// UploadHandler handles POST /api/readings/import (multipart: file).
type UploadHandler struct {
	uploadService *services.UploadService
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(uploadService *services.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// UploadResponse is the JSON response for the CSV import.
type UploadResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Count         int    `json:"count,omitempty"`
	ZonesAffected int    `json:"zones_affected,omitempty"`
}

// Handle imports a sensor log CSV in the export format.
func (h *UploadHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// Limit body size (e.g. 50MB)
	r.ParseMultipartForm(50 << 20)

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, UploadResponse{
			Success: false,
			Message: "missing or invalid file: " + err.Error(),
		})
		return
	}
	defer file.Close()

	result, err := h.uploadService.ImportFromCSV(r.Context(), file)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		resp := UploadResponse{Success: false, Message: err.Error()}
		if result != nil {
			resp.Count = result.Count
			resp.ZonesAffected = result.ZonesAffected
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success:       true,
		Message:       "CSV imported successfully",
		Count:         result.Count,
		ZonesAffected: result.ZonesAffected,
	})
}
