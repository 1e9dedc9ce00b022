package spreadsheet

import (
	"math"
	"strings"
)

// IsHeaderRow scores a row's non-empty cells against the header keyword
// vocabulary and the data-shape patterns. A row is a header iff at least
// 30% of its non-empty cells carry a keyword and none of them look like
// actual data (IP, MAC, or a long serial-like token).
func IsHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}

	headerScore := 0
	dataScore := 0
	total := 0

	for _, cell := range row {
		cellStr := strings.ToLower(strings.TrimSpace(cell))
		if cellStr == "" {
			continue
		}
		total++

		if LooksLikeHeaderKeyword(cellStr) {
			headerScore++
		}

		if MatchIPv4(cellStr) || macPattern.MatchString(cellStr) ||
			(serialPattern.MatchString(cellStr) && len(cellStr) > 10) {
			dataScore++
		}
	}

	return total > 0 && headerScore >= int(math.Ceil(float64(total)*0.3)) && dataScore == 0
}

// IsDataRow reports whether a row looks like actual device data: any cell
// with an IP or MAC shape, or a serial-like token of 10+ characters.
func IsDataRow(row []string) bool {
	if len(row) == 0 {
		return false
	}

	for _, cell := range row {
		cellStr := strings.TrimSpace(cell)
		if cellStr == "" {
			continue
		}
		if MatchIPv4(cellStr) || macPattern.MatchString(cellStr) {
			return true
		}
	}

	for _, cell := range row {
		cellStr := strings.TrimSpace(cell)
		if serialPattern.MatchString(cellStr) && len(cellStr) >= 10 {
			return true
		}
	}

	return false
}

// FindHeaderRow scans the first 10 rows for a header. Vendor exports place
// headers near the top; bounding the scan avoids false positives deep in
// data. Falls back to the first non-empty row, then to index 0 with no
// headers for an empty sheet.
func FindHeaderRow(data [][]string) (int, []string) {
	maxSearch := len(data)
	if maxSearch > 10 {
		maxSearch = 10
	}

	for i := 0; i < maxSearch; i++ {
		if IsHeaderRow(data[i]) {
			return i, trimCells(data[i])
		}
	}

	for i := 0; i < maxSearch; i++ {
		if !isEmptyRow(data[i]) {
			return i, trimCells(data[i])
		}
	}

	return 0, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimCells(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(cell)
	}
	return out
}
