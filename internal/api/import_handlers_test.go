package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/onliops/inventoryd/internal/model"
	"github.com/onliops/inventoryd/internal/storage"
)

// writeImportWorkbook builds a workbook with one device sheet holding a
// valid IP, a malformed numeric IP and a record without any IP.
func writeImportWorkbook(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", "Devices")
	rows := [][]interface{}{
		{"IP Address", "Serial Number", "Model"},
		{"192.168.1.50", "DS-AAA1234567", "DS-2CD2087"},
		{"105", "ABC12345678", "DS-7608NI"},
		{"", "CAM-7", "XNO-6080R"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Devices", cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "inventory.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	return path
}

func uploadFile(t *testing.T, url, path string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	src, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer src.Close()
	if _, err := io.Copy(fw, src); err != nil {
		t.Fatalf("copying workbook: %v", err)
	}
	mw.Close()

	resp, err := http.Post(url+"/api/import/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /api/import/upload error = %v", err)
	}
	return resp
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return resp
}

func TestImportFlow(t *testing.T) {
	store, err := storage.NewSQLiteStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	defer store.Close()

	// An existing row at the workbook's valid IP, for duplicate detection.
	existing := &model.Device{IPAddress: "192.168.1.50", Status: "active", ProjectID: storage.DefaultProjectID}
	if err := store.UpsertDevice(existing); err != nil {
		t.Fatalf("UpsertDevice() error = %v", err)
	}

	srv, h := newTestServer(t, store, "http://localhost:0")
	workbook := writeImportWorkbook(t)

	// Upload.
	resp := uploadFile(t, srv.URL, workbook)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201", resp.StatusCode)
	}
	var uploaded struct {
		SessionID string            `json:"session_id"`
		Sheets    []model.SheetInfo `json:"sheets"`
	}
	decodeBody(t, resp, &uploaded)
	if uploaded.SessionID == "" {
		t.Fatal("upload returned no session id")
	}
	if len(uploaded.Sheets) != 1 || !uploaded.Sheets[0].IsDeviceSheet {
		t.Fatalf("sheets = %+v", uploaded.Sheets)
	}
	if uploaded.Sheets[0].AutoMapping[model.FieldIPAddress] != "IP Address" {
		t.Errorf("auto mapping = %+v", uploaded.Sheets[0].AutoMapping)
	}

	base := srv.URL + "/api/import/" + uploaded.SessionID

	// Analyze malformed IPs.
	resp = postJSON(t, base+"/analyze-ips", map[string]interface{}{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analyze-ips status = %d, want 200", resp.StatusCode)
	}
	var analysis struct {
		HasMalformed   bool `json:"has_malformed"`
		MalformedCount int  `json:"malformed_count"`
	}
	decodeBody(t, resp, &analysis)
	if !analysis.HasMalformed || analysis.MalformedCount != 1 {
		t.Errorf("analysis = %+v", analysis)
	}

	// Correct IPs against a chosen prefix.
	resp = postJSON(t, base+"/correct-ips", map[string]string{"prefix": "10.0.5"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("correct-ips status = %d, want 200", resp.StatusCode)
	}
	var corrected struct {
		Stats   struct{ Corrected, Skipped int }
		Records []model.DeviceRecord `json:"records"`
	}
	decodeBody(t, resp, &corrected)
	if corrected.Stats.Corrected != 2 || corrected.Stats.Skipped != 1 {
		t.Errorf("correction stats = %+v", corrected.Stats)
	}
	byn := map[string]string{}
	for _, rec := range corrected.Records {
		byn[rec.Serial()] = rec.IP()
	}
	// The serial's numeric tail becomes the host part verbatim, even when
	// the result is not a routable address.
	if byn["ABC12345678"] != "10.0.5.678" {
		t.Errorf("serial-derived IP = %q, want 10.0.5.678", byn["ABC12345678"])
	}
	if byn["CAM-7"] != "10.0.5.7" {
		t.Errorf("short-tail IP = %q, want 10.0.5.7", byn["CAM-7"])
	}

	// Duplicate check sees the pre-existing row.
	resp = postJSON(t, base+"/check-duplicates", map[string]interface{}{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check-duplicates status = %d, want 200", resp.StatusCode)
	}
	var dupes struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &dupes)
	if dupes.Count != 1 {
		t.Errorf("duplicate count = %d, want 1", dupes.Count)
	}

	// Preview validates the corrected working set. The 10.0.5.678 record
	// fails strict IP validation: correction repairs, it never validates.
	resp = postJSON(t, base+"/preview", map[string]interface{}{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview status = %d, want 200", resp.StatusCode)
	}
	var preview struct {
		Total   int `json:"total"`
		Valid   int `json:"valid"`
		Invalid int `json:"invalid"`
	}
	decodeBody(t, resp, &preview)
	if preview.Total != 3 || preview.Valid != 2 || preview.Invalid != 1 {
		t.Errorf("preview = %+v", preview)
	}

	// Confirm imports the valid records and discards the session.
	resp = postJSON(t, base+"/confirm", map[string]interface{}{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm status = %d, want 200", resp.StatusCode)
	}
	var outcome model.ImportOutcome
	decodeBody(t, resp, &outcome)
	if outcome.Success != 2 || outcome.Failed != 1 {
		t.Errorf("outcome = %+v", outcome)
	}

	devices, err := store.ListDevices(&model.DeviceFilter{ProjectID: storage.DefaultProjectID})
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	// The pre-existing 192.168.1.50 row was updated in place, 10.0.5.7 was
	// added, 10.0.5.678 failed validation.
	if len(devices) != 2 {
		t.Errorf("stored %d devices, want 2", len(devices))
	}

	// The session is gone after confirm.
	getResp, err := http.Get(base)
	if err != nil {
		t.Fatalf("GET session error = %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("session after confirm status = %d, want 404", getResp.StatusCode)
	}

	// The uploaded copy was removed with the session.
	entries, err := os.ReadDir(h.uploadDir)
	if err != nil {
		t.Fatalf("reading upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir still holds %d files", len(entries))
	}
}

// writeWorkbook builds a single-sheet workbook from literal rows.
func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheet)
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "inventory.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	return path
}

func TestPreviewReappliesSheetSelection(t *testing.T) {
	srv, _ := newTestServer(t, newMockStorage(), "http://localhost:0")

	resp := uploadFile(t, srv.URL, writeImportWorkbook(t))
	var uploaded struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, resp, &uploaded)

	base := srv.URL + "/api/import/" + uploaded.SessionID

	var preview struct {
		Total int `json:"total"`
	}
	resp = postJSON(t, base+"/preview", map[string]interface{}{})
	decodeBody(t, resp, &preview)
	if preview.Total != 3 {
		t.Fatalf("first preview total = %d, want 3", preview.Total)
	}

	// Disabling the sheet on a repeat preview must shrink the working set,
	// not replay the stored one.
	resp = postJSON(t, base+"/preview", map[string]interface{}{
		"sheets": []map[string]interface{}{{"sheet_name": "Devices", "enabled": false}},
	})
	decodeBody(t, resp, &preview)
	if preview.Total != 0 {
		t.Errorf("second preview total = %d, want 0", preview.Total)
	}
}

func TestPreviewDropsRowsWithoutMappedData(t *testing.T) {
	srv, _ := newTestServer(t, newMockStorage(), "http://localhost:0")

	workbook := writeWorkbook(t, "Devices", [][]interface{}{
		{"IP Address", "Serial Number", "Extra Notes"},
		{"10.1.1.5", "DS-AAA0000001", "ok"},
		{"", "", "legacy unit, replace next quarter"},
	})
	resp := uploadFile(t, srv.URL, workbook)
	var uploaded struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, resp, &uploaded)

	resp = postJSON(t, srv.URL+"/api/import/"+uploaded.SessionID+"/preview", map[string]interface{}{})
	var preview struct {
		Total   int `json:"total"`
		Valid   int `json:"valid"`
		Invalid int `json:"invalid"`
		Dropped int `json:"dropped_rows"`
	}
	decodeBody(t, resp, &preview)
	// The second data row only holds a value in the unmapped notes column;
	// it is filtered out rather than surfacing as a validation failure.
	if preview.Total != 1 || preview.Valid != 1 || preview.Invalid != 0 {
		t.Errorf("preview = %+v", preview)
	}
	if preview.Dropped != 1 {
		t.Errorf("dropped rows = %d, want 1", preview.Dropped)
	}
}

func TestUploadSheetWithoutIdentityColumnsIsDeviceSheet(t *testing.T) {
	srv, _ := newTestServer(t, newMockStorage(), "http://localhost:0")

	workbook := writeWorkbook(t, "Switches", [][]interface{}{
		{"Hostname", "Model"},
		{"sw-core-01", "C9300-48T"},
	})
	resp := uploadFile(t, srv.URL, workbook)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201", resp.StatusCode)
	}
	var uploaded struct {
		Sheets []model.SheetInfo `json:"sheets"`
	}
	decodeBody(t, resp, &uploaded)
	if len(uploaded.Sheets) != 1 {
		t.Fatalf("sheets = %+v", uploaded.Sheets)
	}
	// Any mapped canonical column qualifies the sheet, not just IP or
	// serial columns.
	if !uploaded.Sheets[0].IsDeviceSheet {
		t.Errorf("sheet with hostname and model columns not marked as device sheet: %+v", uploaded.Sheets[0])
	}
}

func TestCorrectIPsAfterPreviewConflicts(t *testing.T) {
	srv, _ := newTestServer(t, newMockStorage(), "http://localhost:0")

	resp := uploadFile(t, srv.URL, writeImportWorkbook(t))
	var uploaded struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, resp, &uploaded)

	base := srv.URL + "/api/import/" + uploaded.SessionID
	resp = postJSON(t, base+"/preview", map[string]interface{}{})
	resp.Body.Close()

	// Correction is an earlier pipeline stage; running it after preview is
	// a sequencing mistake, not a server fault.
	resp = postJSON(t, base+"/correct-ips", map[string]string{"prefix": "10.0.5"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestUploadRejectsUnknownExtension(t *testing.T) {
	srv, _ := newTestServer(t, newMockStorage(), "http://localhost:0")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "devices.pdf")
	fmt.Fprint(fw, "not a spreadsheet")
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/import/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	srv, _ := newTestServer(t, newMockStorage(), "http://localhost:0")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/import/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestImportSessionNotFound(t *testing.T) {
	srv, _ := newTestServer(t, newMockStorage(), "http://localhost:0")

	resp := postJSON(t, srv.URL+"/api/import/missing/correct-ips", map[string]string{"prefix": "10.0.0"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCorrectIPsRejectsBadPrefix(t *testing.T) {
	store := newMockStorage()
	srv, _ := newTestServer(t, store, "http://localhost:0")

	resp := uploadFile(t, srv.URL, writeImportWorkbook(t))
	var uploaded struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, resp, &uploaded)

	resp = postJSON(t, srv.URL+"/api/import/"+uploaded.SessionID+"/correct-ips",
		map[string]string{"prefix": "not.a.prefix"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
