package api

import (
	"errors"
	"net/http"

	"github.com/onliops/inventoryd/internal/model"
	"github.com/onliops/inventoryd/internal/storage"
)

// listDevices handles GET /api/devices
func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	filter := &model.DeviceFilter{
		ProjectID:  projectID(r),
		Status:     r.URL.Query().Get("status"),
		DeviceType: r.URL.Query().Get("type"),
	}

	devices, err := h.storage.ListDevices(filter)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if devices == nil {
		devices = []model.Device{}
	}

	h.writeJSON(w, http.StatusOK, devices)
}

// getDevice handles GET /api/devices/{id}
func (h *Handler) getDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "device ID required")
		return
	}

	device, err := h.storage.GetDevice(id)
	if err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			h.writeError(w, http.StatusNotFound, "device not found")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, device)
}

// deleteDevice handles DELETE /api/devices/{id}
func (h *Handler) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "device ID required")
		return
	}

	if err := h.storage.DeleteDevice(id); err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			h.writeError(w, http.StatusNotFound, "device not found")
			return
		}
		h.internalError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listCategories handles GET /api/categories
func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.storage.ListCategories()
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, categories)
}
