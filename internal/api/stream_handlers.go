package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/onliops/inventoryd/internal/ai"
	"github.com/onliops/inventoryd/internal/log"
	"github.com/onliops/inventoryd/internal/model"
	"github.com/onliops/inventoryd/internal/validation"
)

// sseWriter emits server-sent events. Every stream carries events of type
// status, token, result or error, and always finishes with end.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) send(event map[string]interface{}) {
	raw, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.w.Write([]byte("data: "))
	s.w.Write(raw)
	s.w.Write([]byte("\n\n"))
	s.flusher.Flush()
}

func (s *sseWriter) status(message string) {
	s.send(map[string]interface{}{"type": "status", "message": message})
}

func (s *sseWriter) token(content string) {
	s.send(map[string]interface{}{"type": "token", "content": content})
}

func (s *sseWriter) result(data interface{}) {
	s.send(map[string]interface{}{"type": "result", "data": data})
}

func (s *sseWriter) error(message string) {
	s.send(map[string]interface{}{"type": "error", "message": message})
}

func (s *sseWriter) end() {
	s.send(map[string]interface{}{"type": "end"})
}

type streamRequest struct {
	SessionID string `json:"session_id"`
}

// runStream executes one streaming generation and relays tokens as SSE
// events, returning the assembled response text.
func (h *Handler) runStream(r *http.Request, sse *sseWriter, prompt *ai.Prompt) (string, bool) {
	events, errs := h.ai.GenerateStream(r.Context(), prompt.Content, ai.GenerateOptions{
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	})

	var full strings.Builder
	for ev := range events {
		if ev.Done {
			continue
		}
		full.WriteString(ev.Content)
		sse.token(ev.Content)
	}
	if err := <-errs; err != nil {
		log.Warn("Model stream failed", "error", err)
		sse.error(err.Error())
		return "", false
	}
	return full.String(), true
}

// streamAnalyze handles POST /api/ai/stream/analyze. The model's sheet
// analysis is streamed token by token and the parsed result is saved
// into the session as a suggestion next to the auto-detected mapping.
func (h *Handler) streamAnalyze(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		h.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	sess, err := h.sessions.Get(req.SessionID)
	if err != nil {
		h.sessionError(w, err)
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	defer sse.end()

	if !h.ai.IsAvailable(r.Context()) {
		sse.error("model server unavailable")
		return
	}

	prompt, err := ai.BuildAnalyzePrompt(sess.Sheets)
	if err != nil {
		sse.error(err.Error())
		return
	}

	sse.status("analyzing workbook")
	full, ok := h.runStream(r, sse, prompt)
	if !ok {
		return
	}

	analysis, err := ai.ParseWorkbookAnalysis(full)
	if err != nil {
		sse.error("model returned no parseable analysis")
		return
	}

	if _, err := h.sessions.Update(req.SessionID, func(sess *model.ImportSession) error {
		for i := range sess.Sheets {
			sheet := analysis.Sheet(sess.Sheets[i].Name)
			if sheet == nil {
				continue
			}
			raw, err := json.Marshal(sheet)
			if err != nil {
				continue
			}
			sess.Sheets[i].AISuggestion = raw
		}
		return nil
	}); err != nil {
		log.Warn("Failed to save sheet analysis", "session_id", req.SessionID, "error", err)
	}

	sse.result(analysis)
}

// streamCategorize handles POST /api/ai/stream/categorize. The model
// suggests a category per record in the session's working set.
func (h *Handler) streamCategorize(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		h.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	sess, err := h.sessions.Get(req.SessionID)
	if err != nil {
		h.sessionError(w, err)
		return
	}

	records, err := sessionRecords(sess)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if len(records) == 0 {
		h.writeError(w, http.StatusBadRequest, "session has no device records")
		return
	}

	// Only records without a pre-assigned category that pass validation go
	// to the model. indices maps batch positions back to working-set
	// positions so the suggestions line up with the full record set.
	var indices []int
	var summaries []ai.DeviceSummary
	for i := range records {
		if records[i].Categorization != nil && records[i].Categorization.Slug != "" {
			continue
		}
		v := records[i].Validation
		if v == nil {
			res := validation.Validate(&records[i])
			v = &res
		}
		if !v.Valid {
			continue
		}
		indices = append(indices, i)
		summaries = append(summaries, ai.Summarize(&records[i]))
	}
	if len(summaries) == 0 {
		h.writeError(w, http.StatusBadRequest, "no records need categorization")
		return
	}

	categories, err := h.storage.ListCategories()
	if err != nil {
		h.internalError(w, err)
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	defer sse.end()

	if !h.ai.IsAvailable(r.Context()) {
		sse.error("model server unavailable")
		return
	}

	prompt, err := ai.BuildCategorizePrompt(summaries, categories)
	if err != nil {
		sse.error(err.Error())
		return
	}

	sse.status("categorizing devices")
	full, ok := h.runStream(r, sse, prompt)
	if !ok {
		return
	}

	suggestions, err := ai.ParseCategorizations(full)
	if err != nil {
		sse.error("model returned no parseable categorization")
		return
	}

	for i := range suggestions {
		if suggestions[i].OriginalIndex >= 0 && suggestions[i].OriginalIndex < len(indices) {
			suggestions[i].OriginalIndex = indices[suggestions[i].OriginalIndex]
		}
	}

	sse.result(suggestions)
}
