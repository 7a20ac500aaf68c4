package radar

import (
	"time"
)

// VersionRecord is the persisted, last confirmed version of one piece of software.
type VersionRecord struct {
	SoftwareName string    `json:"softwareName"`
	Version      string    `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Format is the expected shape of the selected version string.
type Format string

// Recognised formats. Any other value selects the first candidate unfiltered.
const (
	FormatMajorMinor      Format = "X.Y"
	FormatMajorMinorPatch Format = "X.Y.Z"
	FormatFourPart        Format = "X.Y.Z.W"
	FormatAny             Format = ""
)

// ExtractionConfig describes what to scrape and how to pick a version from it.
type ExtractionConfig struct {
	TargetURL    string
	SoftwareName string
	Selector     string
	Pattern      string
	Format       Format
}

// Outcome reports what DetectAndApply did.
type Outcome struct {
	Changed  bool          `json:"changed"`
	Previous string        `json:"previous,omitempty"`
	Record   VersionRecord `json:"record"`
}

// State is a step of the scrape cycle.
type State string

// Scrape cycle states.
const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateExtracting State = "extracting"
	StateDetecting  State = "detecting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Result summarises one scrape cycle.
type Result struct {
	RunID    string        `json:"run_id"`
	State    State         `json:"state"`
	FailedAt State         `json:"failed_at,omitempty"`
	Version  string        `json:"version,omitempty"`
	Previous string        `json:"previous,omitempty"`
	Changed  bool          `json:"changed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Err      error         `json:"-"`
}

func (r *Result) fail(err error) {
	r.FailedAt = r.State
	r.State = StateFailed
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}
