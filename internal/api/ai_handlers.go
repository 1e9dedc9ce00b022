package api

import (
	"encoding/json"
	"net/http"

	"github.com/onliops/inventoryd/internal/ai"
)

// aiStatus handles GET /api/ai/status
func (h *Handler) aiStatus(w http.ResponseWriter, r *http.Request) {
	available := h.ai.IsAvailable(r.Context())

	status := map[string]interface{}{
		"available":     available,
		"url":           h.ai.BaseURL(),
		"default_model": h.ai.DefaultModel(),
	}

	if available {
		if models, err := h.ai.Models(r.Context()); err == nil {
			status["models"] = models
		}
	}

	h.writeJSON(w, http.StatusOK, status)
}

type chatRequest struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// aiChat handles POST /api/ai/chat, a single-turn assistant reply about
// the inventory.
func (h *Handler) aiChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if !h.ai.IsAvailable(r.Context()) {
		h.writeError(w, http.StatusServiceUnavailable, "model server unavailable")
		return
	}

	prompt, err := ai.LoadPrompt(ai.PromptAssistantChat, map[string]interface{}{
		"message": req.Message,
		"context": req.Context,
	})
	if err != nil {
		h.internalError(w, err)
		return
	}

	result, err := h.ai.Generate(r.Context(), prompt.Content, ai.GenerateOptions{
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	})
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"response": result.Response,
		"model":    result.Model,
	})
}
