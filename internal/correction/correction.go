// Package correction repairs missing or malformed IP addresses using a
// caller-supplied network prefix. It is a best-effort repair, never a
// validation: a corrected record can still fail validation downstream.
package correction

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/onliops/inventoryd/internal/model"
	"github.com/onliops/inventoryd/internal/spreadsheet"
)

// ErrInvalidPrefix is returned when the network prefix is not three
// dotted octets.
var ErrInvalidPrefix = errors.New("invalid network prefix")

// Method tags for Correction annotations.
const (
	MethodSerialDerived = "serial-derived"
	MethodSequential    = "sequential"
)

// Stats aggregates one correction run.
type Stats struct {
	Total     int `json:"total"`
	Corrected int `json:"corrected"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Result carries the full record set (corrected and untouched), the run
// stats, and the updated host allocation set. Callers persist UsedHosts in
// the session so repeated correction calls stay deterministic.
type Result struct {
	Records   []model.DeviceRecord `json:"records"`
	Stats     Stats                `json:"stats"`
	UsedHosts []int                `json:"used_hosts"`
}

// Options configures a correction run.
type Options struct {
	// Prefix is the first three octets of the target network, e.g.
	// "192.168.50".
	Prefix string
	// HostDigits is how many trailing serial digits form the host part.
	// Zero means the default of 3.
	HostDigits int
	// UsedHosts seeds the sequential allocator with hosts handed out by
	// earlier runs in the same session.
	UsedHosts []int
}

var prefixPattern = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){2}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

var digitsPattern = regexp.MustCompile(`\d+`)

// Apply walks the records and rewrites each absent or malformed IP. The
// replacement host part comes from the numeric tail of the serial number
// when one exists, else from the next unused sequential host number within
// the prefix. Record count and order are preserved.
func Apply(records []model.DeviceRecord, opts Options) (*Result, error) {
	if !prefixPattern.MatchString(opts.Prefix) {
		return nil, fmt.Errorf("%w %q: want three dotted octets", ErrInvalidPrefix, opts.Prefix)
	}
	hostDigits := opts.HostDigits
	if hostDigits <= 0 {
		hostDigits = 3
	}
	if hostDigits > 3 {
		hostDigits = 3
	}

	used := make(map[int]bool, len(opts.UsedHosts))
	for _, h := range opts.UsedHosts {
		used[h] = true
	}
	// Hosts already taken by valid IPs inside the prefix are off limits
	// for the sequential allocator.
	for i := range records {
		ip := records[i].IP()
		if spreadsheet.MatchIPv4(ip) && strings.HasPrefix(ip, opts.Prefix+".") {
			if h, err := strconv.Atoi(ip[len(opts.Prefix)+1:]); err == nil {
				used[h] = true
			}
		}
	}

	out := make([]model.DeviceRecord, len(records))
	copy(out, records)

	stats := Stats{Total: len(records)}
	nextHost := 1

	for i := range out {
		rec := &out[i]
		original := rec.IP()

		if spreadsheet.MatchIPv4(original) {
			rec.Correction = &model.Correction{OriginalIP: original}
			stats.Skipped++
			continue
		}

		if host, confidence, ok := serialHost(rec.Serial(), hostDigits); ok {
			assign(rec, opts.Prefix, host, original, MethodSerialDerived, confidence)
			if n, err := strconv.Atoi(host); err == nil && n <= 255 {
				used[n] = true
			}
			stats.Corrected++
			continue
		}

		host, ok := nextFree(used, &nextHost)
		if !ok {
			rec.Correction = &model.Correction{
				OriginalIP: original,
				Error:      "no free host numbers left in prefix",
			}
			stats.Failed++
			continue
		}
		used[host] = true
		assign(rec, opts.Prefix, strconv.Itoa(host), original, MethodSequential, "low")
		stats.Corrected++
	}

	return &Result{Records: out, Stats: stats, UsedHosts: sortedHosts(used)}, nil
}

// serialHost derives a host part from the numeric tail of a serial number:
// the last hostDigits digits, or the whole tail when it is shorter. A tail
// at least hostDigits long is unambiguous, hence high confidence.
func serialHost(serial string, hostDigits int) (host, confidence string, ok bool) {
	tails := digitsPattern.FindAllString(serial, -1)
	if len(tails) == 0 {
		return "", "", false
	}
	tail := tails[len(tails)-1]

	confidence = "high"
	if len(tail) < hostDigits {
		confidence = "medium"
	} else {
		tail = tail[len(tail)-hostDigits:]
	}

	n, err := strconv.Atoi(tail)
	if err != nil {
		return "", "", false
	}
	return strconv.Itoa(n), confidence, true
}

func assign(rec *model.DeviceRecord, prefix, host, original, method, confidence string) {
	corrected := prefix + "." + host
	// Copy-on-write so the caller's input records keep their old values.
	clone := make(model.Canonical, len(rec.Canonical)+1)
	for k, v := range rec.Canonical {
		clone[k] = v
	}
	clone[model.FieldIPAddress] = corrected
	rec.Canonical = clone
	rec.Correction = &model.Correction{
		OriginalIP:  original,
		CorrectedIP: corrected,
		Method:      method,
		Confidence:  confidence,
		Corrected:   true,
	}
}

// nextFree returns the lowest unused host number in 1..254, resuming from
// the cursor so the scan is linear across a batch.
func nextFree(used map[int]bool, cursor *int) (int, bool) {
	for h := *cursor; h <= 254; h++ {
		if !used[h] {
			*cursor = h + 1
			return h, true
		}
	}
	return 0, false
}

func sortedHosts(used map[int]bool) []int {
	hosts := make([]int, 0, len(used))
	for h := range used {
		hosts = append(hosts, h)
	}
	sort.Ints(hosts)
	return hosts
}
