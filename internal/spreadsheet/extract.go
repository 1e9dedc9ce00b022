package spreadsheet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/onliops/inventoryd/internal/model"
)

// ErrSheetNotFound is returned when extraction targets a sheet the file
// does not contain.
var ErrSheetNotFound = errors.New("sheet not found")

// ExtractSheet projects every data row of one sheet through the column
// mapping into device records. Values are trimmed; unmapped fields are
// left unset. The original row and index are kept for traceability.
func ExtractSheet(path, sheetName string, mapping model.ColumnMapping) ([]model.DeviceRecord, error) {
	sheets, err := loadSheets(path)
	if err != nil {
		return nil, err
	}

	var target *rawSheet
	for i := range sheets {
		if sheets[i].name == sheetName {
			target = &sheets[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheetName)
	}

	headerIdx, headers := FindHeaderRow(target.rows)
	valid := dataRows(target.rows, headerIdx)

	// Invert the mapping to column positions once.
	headerPos := map[string]int{}
	for i, h := range headers {
		if h != "" {
			if _, seen := headerPos[h]; !seen {
				headerPos[h] = i
			}
		}
	}

	records := make([]model.DeviceRecord, 0, len(valid))
	for idx, row := range valid {
		canonical := model.Canonical{}
		for field, header := range mapping {
			pos, ok := headerPos[strings.TrimSpace(header)]
			if !ok || pos >= len(row) {
				continue
			}
			canonical[field] = strings.TrimSpace(row[pos])
		}

		records = append(records, model.DeviceRecord{
			Canonical: canonical,
			Provenance: model.Provenance{
				Sheet:         sheetName,
				OriginalIndex: idx,
				OriginalRow:   trimCells(row),
			},
		})
	}

	return records, nil
}
