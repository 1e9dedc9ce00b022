// Package validation enforces minimum-viable-record rules before import.
// Results gate the import executor and are never persisted.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/onliops/inventoryd/internal/model"
	"github.com/onliops/inventoryd/internal/spreadsheet"
)

// Serial shapes that identify a real device serial rather than a stray
// column title that leaked into the data (vendor prefixes, long numeric or
// alphanumeric runs).
var realSerialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^ds-`),  // Hikvision
	regexp.MustCompile(`(?i)^ipc-`), // HiLook/Dahua
	regexp.MustCompile(`(?i)^dh-`),  // Dahua
	regexp.MustCompile(`(?i)^vip-`), // Intelbras
	regexp.MustCompile(`(?i)^vhd-`), // Intelbras
	regexp.MustCompile(`(?i)^axis`),
	regexp.MustCompile(`^\d{10,}`),
	regexp.MustCompile(`(?i)^[a-z0-9]{15,}$`),
}

// Validate checks one record. A record is importable only with a non-empty
// IP or serial number; a value that itself reads like a header keyword is
// reported as a mis-mapped column title, which needs different remediation
// than a plain format error. A malformed MAC is a warning, never blocking.
func Validate(rec *model.DeviceRecord) model.Validation {
	var errs, warnings []string

	ip := strings.TrimSpace(rec.IP())
	serial := strings.TrimSpace(rec.Serial())

	if ip == "" && serial == "" {
		errs = append(errs, "device must have an IP address or serial number")
	}

	if ip != "" && !spreadsheet.MatchIPv4(ip) {
		if spreadsheet.LooksLikeHeaderKeyword(ip) {
			errs = append(errs, fmt.Sprintf("%q looks like a column title, not an IP address", ip))
		} else {
			errs = append(errs, fmt.Sprintf("invalid IP format: %s", ip))
		}
	}

	if serial != "" && !isRealSerial(serial) && len(serial) < 15 {
		if spreadsheet.LooksLikeHeaderKeyword(serial) {
			errs = append(errs, fmt.Sprintf("%q looks like a column title, not a serial number", serial))
		}
	}

	if mac := strings.TrimSpace(rec.Canonical.Get(model.FieldMACAddress)); mac != "" {
		if !spreadsheet.MatchMAC(mac) {
			warnings = append(warnings, fmt.Sprintf("MAC address may be invalid: %s", mac))
		}
	}

	return model.Validation{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

func isRealSerial(serial string) bool {
	for _, p := range realSerialPatterns {
		if p.MatchString(serial) {
			return true
		}
	}
	return false
}

// Annotate runs Validate over a record set in place and returns how many
// records passed.
func Annotate(records []model.DeviceRecord) int {
	valid := 0
	for i := range records {
		v := Validate(&records[i])
		records[i].Validation = &v
		if v.Valid {
			valid++
		}
	}
	return valid
}
