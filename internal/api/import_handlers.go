package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/onliops/inventoryd/internal/correction"
	"github.com/onliops/inventoryd/internal/importer"
	"github.com/onliops/inventoryd/internal/log"
	"github.com/onliops/inventoryd/internal/model"
	"github.com/onliops/inventoryd/internal/spreadsheet"
	"github.com/onliops/inventoryd/internal/validation"
)

const maxUploadSize = 50 << 20 // 50MB

var allowedExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".csv":  true,
}

// uploadWorkbook handles POST /api/import/upload. The workbook is saved
// under the upload directory, parsed on the worker pool, and a new import
// session is created around it.
func (h *Handler) uploadWorkbook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file upload required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		h.writeError(w, http.StatusBadRequest, "only .xlsx, .xls and .csv files are allowed")
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		h.internalError(w, err)
		return
	}

	sessionID := generateID()
	destPath := filepath.Join(h.uploadDir, sessionID+"-"+filepath.Base(header.Filename))
	dest, err := os.Create(destPath)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if _, err := io.Copy(dest, file); err != nil {
		dest.Close()
		os.Remove(destPath)
		h.internalError(w, err)
		return
	}
	dest.Close()

	var info *model.WorkbookInfo
	err = h.pool.SubmitWait(r.Context(), "parse-"+sessionID, func(ctx context.Context) error {
		var parseErr error
		info, parseErr = spreadsheet.ParseWorkbook(destPath)
		return parseErr
	})
	if err != nil {
		os.Remove(destPath)
		var perr *spreadsheet.ParseError
		if errors.As(err, &perr) {
			h.writeError(w, http.StatusBadRequest, "unreadable workbook: "+perr.Error())
			return
		}
		h.internalError(w, err)
		return
	}

	var configs []model.SheetConfig
	for i := range info.Sheets {
		sheet := &info.Sheets[i]
		sheet.AutoMapping = h.patterns.Detect(sheet.Headers)
		sheet.IsDeviceSheet = sheet.RowCount > 0 && len(sheet.AutoMapping) > 0

		configs = append(configs, model.SheetConfig{
			SheetName:     sheet.Name,
			Enabled:       sheet.IsDeviceSheet,
			ColumnMapping: sheet.AutoMapping,
		})
	}

	sess := &model.ImportSession{
		ID:         sessionID,
		FileName:   header.Filename,
		FilePath:   destPath,
		ProjectID:  projectID(r),
		State:      model.StateUploaded,
		Sheets:     info.Sheets,
		Configs:    configs,
		UploadedAt: time.Now(),
	}
	if err := h.sessions.Create(sess); err != nil {
		os.Remove(destPath)
		h.internalError(w, err)
		return
	}

	log.Info("Workbook uploaded",
		"session_id", sessionID,
		"file", header.Filename,
		"sheets", info.SheetCount)

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id":  sessionID,
		"file_name":   header.Filename,
		"sheet_count": info.SheetCount,
		"sheets":      info.Sheets,
	})
}

// getImportSession handles GET /api/import/{id}
func (h *Handler) getImportSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.sessionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

// extractRecords projects every enabled sheet through its column mapping.
func extractRecords(sess *model.ImportSession) ([]model.DeviceRecord, error) {
	var records []model.DeviceRecord
	for _, cfg := range sess.Configs {
		if !cfg.Enabled {
			continue
		}
		sheetRecords, err := spreadsheet.ExtractSheet(sess.FilePath, cfg.SheetName, cfg.ColumnMapping)
		if err != nil {
			return nil, fmt.Errorf("extracting sheet %q: %w", cfg.SheetName, err)
		}
		if cfg.Category != "" {
			for i := range sheetRecords {
				sheetRecords[i].Categorization = &model.Categorization{Slug: cfg.Category}
			}
		}
		records = append(records, sheetRecords...)
	}
	return records, nil
}

type sheetSelection struct {
	Sheets []model.SheetConfig `json:"sheets"`
}

// applySelection replaces the session's sheet configs with the caller's,
// keeping the auto-detected mapping for sheets submitted without one.
func applySelection(sess *model.ImportSession, selection []model.SheetConfig) {
	if len(selection) == 0 {
		return
	}
	auto := map[string]model.ColumnMapping{}
	for _, s := range sess.Sheets {
		auto[s.Name] = s.AutoMapping
	}
	for i := range selection {
		if len(selection[i].ColumnMapping) == 0 {
			selection[i].ColumnMapping = auto[selection[i].SheetName]
		}
	}
	sess.Configs = selection
}

// analyzeIPs handles POST /api/import/{id}/analyze-ips. It reports which
// records carry malformed numeric IPs and suggests a correction prefix.
func (h *Handler) analyzeIPs(w http.ResponseWriter, r *http.Request) {
	var req sheetSelection
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	var analysis *correction.Analysis
	_, err := h.sessions.Update(r.PathValue("id"), func(sess *model.ImportSession) error {
		applySelection(sess, req.Sheets)

		records, err := extractRecords(sess)
		if err != nil {
			return err
		}
		analysis = correction.Analyze(records)
		return sess.Advance(model.StateAnalyzed)
	})
	if err != nil {
		h.sessionError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, analysis)
}

type correctRequest struct {
	Prefix     string `json:"prefix"`
	HostDigits int    `json:"host_digits,omitempty"`
}

// correctIPs handles POST /api/import/{id}/correct-ips. Corrected records
// are stored in the session so preview and confirm see the repaired IPs,
// and the allocator's used host numbers persist for repeat calls.
func (h *Handler) correctIPs(w http.ResponseWriter, r *http.Request) {
	var req correctRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prefix == "" {
		h.writeError(w, http.StatusBadRequest, "prefix is required")
		return
	}

	var result *correction.Result
	_, err := h.sessions.Update(r.PathValue("id"), func(sess *model.ImportSession) error {
		records, err := extractRecords(sess)
		if err != nil {
			return err
		}

		result, err = correction.Apply(records, correction.Options{
			Prefix:     req.Prefix,
			HostDigits: req.HostDigits,
			UsedHosts:  sess.UsedHosts,
		})
		if err != nil {
			return err
		}

		sess.Corrected = result.Records
		sess.UsedHosts = result.UsedHosts
		sess.CorrectionApplied = true
		sess.CorrectionPrefix = req.Prefix
		return sess.Advance(model.StateCorrected)
	})
	if err != nil {
		if errors.Is(err, correction.ErrInvalidPrefix) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.sessionError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":   result.Stats,
		"records": result.Records,
	})
}

// sessionRecords returns the session's working set: corrected records
// when correction ran, a fresh extraction otherwise.
func sessionRecords(sess *model.ImportSession) ([]model.DeviceRecord, error) {
	if len(sess.Corrected) > 0 {
		return sess.Corrected, nil
	}
	return extractRecords(sess)
}

// checkDuplicates handles POST /api/import/{id}/check-duplicates. It
// reports inventory rows that already hold one of the session's IPs or
// serial numbers.
func (h *Handler) checkDuplicates(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.sessionError(w, err)
		return
	}

	records, err := sessionRecords(sess)
	if err != nil {
		h.internalError(w, err)
		return
	}

	var ips, serials []string
	for i := range records {
		if ip := records[i].IP(); ip != "" {
			ips = append(ips, ip)
		}
		if s := records[i].Serial(); s != "" {
			serials = append(serials, s)
		}
	}

	existing, err := h.storage.FindDevices(sess.ProjectID, ips, serials)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if existing == nil {
		existing = []model.Device{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(existing),
		"duplicates": existing,
	})
}

// previewImport handles POST /api/import/{id}/preview. It validates the
// working set and stores it in the session so confirm imports exactly
// what was previewed.
func (h *Handler) previewImport(w http.ResponseWriter, r *http.Request) {
	var req sheetSelection
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	var records []model.DeviceRecord
	var valid, dropped int
	_, err := h.sessions.Update(r.PathValue("id"), func(sess *model.ImportSession) error {
		// A changed sheet selection invalidates the stored working set,
		// unless correction already pinned it.
		if len(req.Sheets) > 0 && !sess.CorrectionApplied {
			applySelection(sess, req.Sheets)
			sess.Corrected = nil
		}

		var err error
		records, err = sessionRecords(sess)
		if err != nil {
			return err
		}

		// Rows whose values all sit in unmapped columns project to empty
		// records; drop them before validation so they do not count as
		// failures.
		kept := records[:0]
		for i := range records {
			if !emptyRecord(&records[i]) {
				kept = append(kept, records[i])
			}
		}
		dropped = len(records) - len(kept)
		records = kept

		valid = validation.Annotate(records)

		sess.Corrected = records
		return sess.Advance(model.StatePreviewed)
	})
	if err != nil {
		h.sessionError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"records":      records,
		"total":        len(records),
		"valid":        valid,
		"invalid":      len(records) - valid,
		"dropped_rows": dropped,
	})
}

// emptyRecord reports whether a record carries no usable identity or
// description at all.
func emptyRecord(rec *model.DeviceRecord) bool {
	for _, field := range []string{
		model.FieldIPAddress, model.FieldSerialNumber, model.FieldMACAddress,
		model.FieldModel, model.FieldHostname,
	} {
		if strings.TrimSpace(rec.Canonical.Get(field)) != "" {
			return false
		}
	}
	return true
}

type confirmRequest struct {
	Categorizations []model.Categorization `json:"categorizations,omitempty"`
}

// confirmImport handles POST /api/import/{id}/confirm. The session's
// working set is committed to inventory and the session is discarded,
// uploaded file included.
func (h *Handler) confirmImport(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	id := r.PathValue("id")
	var outcome *model.ImportOutcome
	_, err := h.sessions.Update(id, func(sess *model.ImportSession) error {
		records, err := sessionRecords(sess)
		if err != nil {
			return err
		}
		for _, cat := range req.Categorizations {
			if cat.OriginalIndex >= 0 && cat.OriginalIndex < len(records) {
				c := cat
				records[cat.OriginalIndex].Categorization = &c
			}
		}

		exec := importer.NewExecutor(h.storage)
		outcome, err = exec.Import(sess.ProjectID, records)
		if err != nil {
			return err
		}
		return sess.Advance(model.StateImported)
	})
	if err != nil {
		h.sessionError(w, err)
		return
	}

	// The session is finished; drop its row and the uploaded workbook.
	if err := h.sessions.Delete(id); err != nil {
		log.Warn("Failed to delete finished import session", "session_id", id, "error", err)
	}

	h.writeJSON(w, http.StatusOK, outcome)
}
