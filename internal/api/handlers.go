// Package api is the HTTP surface of the inventory server: device and
// category reads plus the staged spreadsheet import pipeline.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/onliops/inventoryd/internal/ai"
	"github.com/onliops/inventoryd/internal/log"
	"github.com/onliops/inventoryd/internal/model"
	"github.com/onliops/inventoryd/internal/session"
	"github.com/onliops/inventoryd/internal/spreadsheet"
	"github.com/onliops/inventoryd/internal/storage"
	"github.com/onliops/inventoryd/internal/worker"
)

// Handler handles HTTP requests
type Handler struct {
	storage   storage.Storage
	sessions  *session.Store
	ai        *ai.Client
	pool      *worker.WorkerPool
	patterns  *spreadsheet.PatternTable
	uploadDir string
}

// NewHandler creates a new API handler
func NewHandler(s storage.Storage, sessions *session.Store, aiClient *ai.Client, pool *worker.WorkerPool, patterns *spreadsheet.PatternTable, uploadDir string) *Handler {
	if patterns == nil {
		patterns = spreadsheet.DefaultPatterns()
	}
	return &Handler{
		storage:   s,
		sessions:  sessions,
		ai:        aiClient,
		pool:      pool,
		patterns:  patterns,
		uploadDir: uploadDir,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Import pipeline
	mux.HandleFunc("POST /api/import/upload", h.withProject(h.uploadWorkbook))
	mux.HandleFunc("GET /api/import/{id}", h.getImportSession)
	mux.HandleFunc("POST /api/import/{id}/analyze-ips", h.analyzeIPs)
	mux.HandleFunc("POST /api/import/{id}/correct-ips", h.correctIPs)
	mux.HandleFunc("POST /api/import/{id}/check-duplicates", h.checkDuplicates)
	mux.HandleFunc("POST /api/import/{id}/preview", h.previewImport)
	mux.HandleFunc("POST /api/import/{id}/confirm", h.confirmImport)

	// Model server
	mux.HandleFunc("GET /api/ai/status", h.aiStatus)
	mux.HandleFunc("POST /api/ai/chat", h.aiChat)
	mux.HandleFunc("POST /api/ai/stream/analyze", h.streamAnalyze)
	mux.HandleFunc("POST /api/ai/stream/categorize", h.streamCategorize)

	// Inventory reads
	mux.HandleFunc("GET /api/devices", h.withProject(h.listDevices))
	mux.HandleFunc("GET /api/devices/{id}", h.getDevice)
	mux.HandleFunc("DELETE /api/devices/{id}", h.deleteDevice)
	mux.HandleFunc("GET /api/categories", h.listCategories)

	mux.HandleFunc("GET /api/health", h.health)
}

// health handles GET /api/health
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// internalError logs the error and writes a generic 500 response
func (h *Handler) internalError(w http.ResponseWriter, err error) {
	log.Error("Internal server error", "error", err)
	h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

// sessionError maps session store failures onto HTTP statuses.
func (h *Handler) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		h.writeError(w, http.StatusNotFound, "import session not found or expired")
		return
	}
	if errors.Is(err, model.ErrStateRegression) {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.internalError(w, err)
}

// generateID generates a UUIDv7 for sessions and uploads
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
