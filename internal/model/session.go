package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrStateRegression marks an attempt to run a pipeline stage out of
// order, e.g. correcting IPs after a preview was taken.
var ErrStateRegression = errors.New("session state regression")

// SessionState is a stage in the import lifecycle. Transitions are
// one-directional; there is no undo.
type SessionState string

const (
	StateUploaded  SessionState = "uploaded"
	StateAnalyzed  SessionState = "analyzed"
	StateCorrected SessionState = "corrected"
	StatePreviewed SessionState = "previewed"
	StateImported  SessionState = "imported"
)

var stateOrder = map[SessionState]int{
	StateUploaded:  0,
	StateAnalyzed:  1,
	StateCorrected: 2,
	StatePreviewed: 3,
	StateImported:  4,
}

// ImportSession is the staged state between upload and final import,
// keyed by an opaque id that also prefixes the stored upload's filename.
type ImportSession struct {
	ID        string       `json:"id"`
	FileName  string       `json:"file_name"`
	FilePath  string       `json:"file_path"`
	ProjectID string       `json:"project_id"`
	State     SessionState `json:"state"`
	Sheets    []SheetInfo  `json:"sheets"`

	// Per-sheet import settings chosen by the caller, defaulted from the
	// auto-detected mappings at upload.
	Configs []SheetConfig `json:"configs,omitempty"`

	// Correction stage output.
	CorrectionApplied bool           `json:"correction_applied"`
	CorrectionPrefix  string         `json:"correction_prefix,omitempty"`
	Corrected         []DeviceRecord `json:"corrected,omitempty"`
	// Host numbers handed out by the sequential allocator, kept so
	// repeated correction calls within a session stay stable.
	UsedHosts []int `json:"used_hosts,omitempty"`

	UploadedAt time.Time `json:"uploaded_at"`
}

// Advance moves the session to the next state. Moving backwards or skipping
// past imported is rejected; re-entering the current state is a no-op so
// stages can be retried.
func (s *ImportSession) Advance(next SessionState) error {
	cur, ok := stateOrder[s.State]
	if !ok {
		return fmt.Errorf("unknown session state %q", s.State)
	}
	target, ok := stateOrder[next]
	if !ok {
		return fmt.Errorf("unknown session state %q", next)
	}
	if target < cur {
		return fmt.Errorf("%w: cannot move from %s back to %s", ErrStateRegression, s.State, next)
	}
	s.State = next
	return nil
}
