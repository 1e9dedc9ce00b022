package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onliops/inventoryd/internal/model"
)

// fakeModelServer streams the answer as NDJSON, one rune chunk at a time.
func fakeModelServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			fmt.Fprint(w, `{"models": [{"name": "llama3.2", "size": 1}]}`)
		case "/api/generate":
			flusher := w.(http.Flusher)
			for _, chunk := range splitChunks(answer, 12) {
				raw, _ := json.Marshal(map[string]interface{}{"response": chunk, "done": false})
				w.Write(raw)
				w.Write([]byte("\n"))
				flusher.Flush()
			}
			fmt.Fprintln(w, `{"done": true}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func splitChunks(s string, size int) []string {
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

type sseEvent struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func readSSE(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	defer resp.Body.Close()

	var events []sseEvent
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev sseEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("undecodable SSE event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading SSE stream: %v", err)
	}
	return events
}

func uploadSession(t *testing.T, srvURL string) string {
	t.Helper()
	resp := uploadFile(t, srvURL, writeImportWorkbook(t))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201", resp.StatusCode)
	}
	var uploaded struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, resp, &uploaded)
	return uploaded.SessionID
}

func TestStreamCategorize(t *testing.T) {
	answer := "```json\n[{\"original_index\": 0, \"suggested_category\": \"camera\", \"confidence\": \"high\", \"reason\": \"camera model\"}]\n```"
	modelSrv := fakeModelServer(t, answer)
	defer modelSrv.Close()

	srv, _ := newTestServer(t, newMockStorage(), modelSrv.URL)
	sessionID := uploadSession(t, srv.URL)

	resp := postJSON(t, srv.URL+"/api/ai/stream/categorize", map[string]string{"session_id": sessionID})
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	events := readSSE(t, resp)
	if len(events) < 3 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	if events[0].Type != "status" {
		t.Errorf("first event type = %q, want status", events[0].Type)
	}
	if events[len(events)-1].Type != "end" {
		t.Errorf("last event type = %q, want end", events[len(events)-1].Type)
	}

	var tokens strings.Builder
	var result json.RawMessage
	for _, ev := range events {
		switch ev.Type {
		case "token":
			tokens.WriteString(ev.Content)
		case "result":
			result = ev.Data
		}
	}
	if tokens.String() != answer {
		t.Errorf("streamed tokens do not reassemble the answer:\n%q\n%q", tokens.String(), answer)
	}

	var suggestions []model.Categorization
	if err := json.Unmarshal(result, &suggestions); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].Slug != "camera" {
		t.Errorf("suggestions = %+v", suggestions)
	}
}

func TestStreamCategorizeSkipsInvalidRecords(t *testing.T) {
	// The workbook's middle record carries the unparseable IP "105", so it
	// stays out of the model batch. The model's second batch entry must map
	// back to the third record of the working set.
	answer := `[{"original_index": 1, "suggested_category": "camera", "confidence": "high", "reason": "camera model"}]`
	modelSrv := fakeModelServer(t, answer)
	defer modelSrv.Close()

	srv, _ := newTestServer(t, newMockStorage(), modelSrv.URL)
	sessionID := uploadSession(t, srv.URL)

	resp := postJSON(t, srv.URL+"/api/ai/stream/categorize", map[string]string{"session_id": sessionID})
	events := readSSE(t, resp)

	var result json.RawMessage
	for _, ev := range events {
		if ev.Type == "result" {
			result = ev.Data
		}
	}
	if result == nil {
		t.Fatalf("no result event in %+v", events)
	}

	var suggestions []model.Categorization
	if err := json.Unmarshal(result, &suggestions); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].OriginalIndex != 2 {
		t.Errorf("suggestions = %+v, want original index 2", suggestions)
	}
}

func TestStreamAnalyzeSavesSuggestion(t *testing.T) {
	answer := `{"sheets": [{"name": "Devices", "is_device_sheet": true, "suggested_category": "camera", "estimated_device_count": 3}]}`
	modelSrv := fakeModelServer(t, answer)
	defer modelSrv.Close()

	srv, _ := newTestServer(t, newMockStorage(), modelSrv.URL)
	sessionID := uploadSession(t, srv.URL)

	resp := postJSON(t, srv.URL+"/api/ai/stream/analyze", map[string]string{"session_id": sessionID})
	events := readSSE(t, resp)
	if events[len(events)-1].Type != "end" {
		t.Fatalf("last event type = %q, want end", events[len(events)-1].Type)
	}

	var sawResult bool
	for _, ev := range events {
		if ev.Type == "result" {
			sawResult = true
		}
	}
	if !sawResult {
		t.Fatalf("no result event in %+v", events)
	}

	// The suggestion is stored on the session's sheet.
	getResp, err := http.Get(srv.URL + "/api/import/" + sessionID)
	if err != nil {
		t.Fatalf("GET session error = %v", err)
	}
	var sess model.ImportSession
	decodeBody(t, getResp, &sess)
	if len(sess.Sheets) != 1 || len(sess.Sheets[0].AISuggestion) == 0 {
		t.Errorf("session sheets missing AI suggestion: %+v", sess.Sheets)
	}
	if !bytes.Contains(sess.Sheets[0].AISuggestion, []byte("camera")) {
		t.Errorf("suggestion = %s", sess.Sheets[0].AISuggestion)
	}
}

func TestStreamModelUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, newMockStorage(), "http://localhost:0")
	sessionID := uploadSession(t, srv.URL)

	resp := postJSON(t, srv.URL+"/api/ai/stream/analyze", map[string]string{"session_id": sessionID})
	events := readSSE(t, resp)

	if len(events) != 2 || events[0].Type != "error" || events[1].Type != "end" {
		t.Errorf("events = %+v, want error then end", events)
	}
}

func TestStreamUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t, newMockStorage(), "http://localhost:0")

	resp := postJSON(t, srv.URL+"/api/ai/stream/categorize", map[string]string{"session_id": "missing"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
