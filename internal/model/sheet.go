package model

import "encoding/json"

// SheetInfo summarizes one parsed sheet: detected header position, canonical
// headers, data-row count and a small sample for preview and model context.
type SheetInfo struct {
	Name           string              `json:"name"`
	Headers        []string            `json:"headers"`
	HeaderRowIndex int                 `json:"header_row_index"`
	RowCount       int                 `json:"row_count"`
	SampleRows     []map[string]string `json:"sample_rows,omitempty"`

	// Filled in after parsing.
	AutoMapping   ColumnMapping   `json:"auto_mapping,omitempty"`
	IsDeviceSheet bool            `json:"is_device_sheet"`
	AISuggestion  json.RawMessage `json:"ai_suggestion,omitempty"`
}

// WorkbookInfo is the result of parsing a spreadsheet file.
type WorkbookInfo struct {
	FileName   string      `json:"file_name"`
	SheetCount int         `json:"sheet_count"`
	Sheets     []SheetInfo `json:"sheets"`
}

// SheetConfig is the caller's per-sheet choice for extraction stages:
// which sheets participate, with which mapping, and an optional category
// applied to every record from that sheet.
type SheetConfig struct {
	SheetName     string        `json:"sheet_name"`
	Enabled       bool          `json:"enabled"`
	ColumnMapping ColumnMapping `json:"column_mapping,omitempty"`
	Category      string        `json:"category,omitempty"`
}
