package correction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/onliops/inventoryd/internal/model"
	"github.com/onliops/inventoryd/internal/spreadsheet"
)

// Suggested actions for an analysis result.
const (
	ActionUseDetectedPrefix = "use_detected_prefix"
	ActionRequestPrefix     = "request_prefix"
	ActionNone              = "none"
)

// Malformed points at one record whose IP value looks like a compressed or
// truncated address.
type Malformed struct {
	Index    int    `json:"index"`
	Original string `json:"original"`
}

// Analysis summarizes the IP health of a record set before correction.
type Analysis struct {
	HasMalformed    bool             `json:"has_malformed"`
	MalformedCount  int              `json:"malformed_count"`
	ValidCount      int              `json:"valid_count"`
	Malformed       []Malformed      `json:"malformed_devices"`
	Samples         map[int][]string `json:"samples,omitempty"`
	DetectedPrefix  string           `json:"detected_prefix,omitempty"`
	SuggestedAction string           `json:"suggested_action"`
}

var numericPattern = regexp.MustCompile(`^\d{1,12}$`)

// DetectMalformed reports whether a value looks like an IP that lost its
// dots: a short number that could be a bare host part, or a longer digit
// run that could be a compressed address.
func DetectMalformed(value string) bool {
	str := strings.TrimSpace(value)
	if !numericPattern.MatchString(str) {
		return false
	}
	if spreadsheet.MatchIPv4(str) {
		return false
	}

	if n, err := strconv.Atoi(str); err == nil && n >= 0 && n <= 255 && len(str) <= 3 {
		return true
	}
	return len(str) >= 4
}

// Analyze scans a record set for malformed IPs and tries to infer the
// network prefix from the valid ones: the dominant /24 prefix wins when it
// covers at least half of the valid addresses.
func Analyze(records []model.DeviceRecord) *Analysis {
	a := &Analysis{Samples: map[int][]string{}}
	var valid []string

	for i := range records {
		ip := strings.TrimSpace(records[i].IP())
		if ip == "" {
			continue
		}
		if DetectMalformed(ip) {
			a.Malformed = append(a.Malformed, Malformed{Index: i, Original: ip})
			if len(a.Samples[len(ip)]) < 5 {
				a.Samples[len(ip)] = append(a.Samples[len(ip)], ip)
			}
		} else if spreadsheet.MatchIPv4(ip) {
			valid = append(valid, ip)
		}
	}

	a.MalformedCount = len(a.Malformed)
	a.HasMalformed = a.MalformedCount > 0
	a.ValidCount = len(valid)

	if len(valid) > 0 {
		counts := map[string]int{}
		for _, ip := range valid {
			parts := strings.Split(ip, ".")
			counts[strings.Join(parts[:3], ".")]++
		}
		best, bestCount := "", 0
		for prefix, count := range counts {
			if count > bestCount || (count == bestCount && prefix < best) {
				best, bestCount = prefix, count
			}
		}
		if bestCount*2 >= len(valid) {
			a.DetectedPrefix = best
		}
	}

	switch {
	case !a.HasMalformed:
		a.SuggestedAction = ActionNone
	case a.DetectedPrefix != "":
		a.SuggestedAction = ActionUseDetectedPrefix
	default:
		a.SuggestedAction = ActionRequestPrefix
	}

	return a
}
