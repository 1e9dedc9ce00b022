package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/onliops/inventoryd/internal/log"
	"github.com/onliops/inventoryd/internal/model"
)

// ParseError is a structured parse failure for an unreadable or corrupt
// file. It aborts the workbook, not the pipeline.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type rawSheet struct {
	name string
	rows [][]string
}

// loadSheets reads the file into per-sheet cell grids. CSV files become a
// single sheet named after the file.
func loadSheets(path string) ([]rawSheet, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return loadCSV(path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &ParseError{File: filepath.Base(path), Err: err}
	}
	defer f.Close()

	var sheets []rawSheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			// One unreadable sheet does not sink the workbook.
			log.Warn("Skipping unreadable sheet", "sheet", name, "error", err)
			rows = nil
		}
		sheets = append(sheets, rawSheet{name: name, rows: rows})
	}
	return sheets, nil
}

func loadCSV(path string) ([]rawSheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{File: filepath.Base(path), Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &ParseError{File: filepath.Base(path), Err: err}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return []rawSheet{{name: name, rows: rows}}, nil
}

// dataRows returns the rows after the header, dropping empty rows and
// header rows repeated mid-sheet.
func dataRows(rows [][]string, headerIdx int) [][]string {
	if headerIdx+1 >= len(rows) {
		return nil
	}
	var out [][]string
	for _, row := range rows[headerIdx+1:] {
		if isEmptyRow(row) || IsHeaderRow(row) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// ParseWorkbook loads a spreadsheet and summarizes every sheet: header
// position, canonical headers, valid data-row count and up to 3 sample
// rows decoded against the headers.
func ParseWorkbook(path string) (*model.WorkbookInfo, error) {
	sheets, err := loadSheets(path)
	if err != nil {
		return nil, err
	}

	info := &model.WorkbookInfo{
		FileName:   filepath.Base(path),
		SheetCount: len(sheets),
	}

	for _, sheet := range sheets {
		headerIdx, headers := FindHeaderRow(sheet.rows)
		valid := dataRows(sheet.rows, headerIdx)

		var samples []map[string]string
		for _, row := range valid {
			if len(samples) == 3 {
				break
			}
			sample := map[string]string{}
			for i, header := range headers {
				if header == "" || i >= len(row) {
					continue
				}
				if v := strings.TrimSpace(row[i]); v != "" {
					sample[header] = v
				}
			}
			samples = append(samples, sample)
		}

		info.Sheets = append(info.Sheets, model.SheetInfo{
			Name:           sheet.name,
			Headers:        nonEmpty(headers),
			HeaderRowIndex: headerIdx,
			RowCount:       len(valid),
			SampleRows:     samples,
		})
	}

	return info, nil
}

func nonEmpty(headers []string) []string {
	var out []string
	for _, h := range headers {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}
