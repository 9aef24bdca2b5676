// Package pipeline turns raw detector output into the published inspection
// state and schedules when inference actually runs. It sits between the
// capture queue and the presentation/persistence sinks.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/gridwatch/internal/detector"
)

// NoDetectionLabel is the sentinel primary label used when a frame carries
// no defects and as the initial/idle state.
const NoDetectionLabel = "No Detection"

// State is the aggregate detection record published to presentation and
// persistence. It is immutable once published; a new value replaces the old
// one atomically, never a partial update.
type State struct {
	PrimaryLabel       string               `json:"label"`
	PrimaryConfidence  float64              `json:"confidence"`
	PrimaryTemperature float64              `json:"temperature"`
	Detail             []detector.Detection `json:"detail"`
	Timestamp          time.Time            `json:"timestamp"`
	IsMultiple         bool                 `json:"is_multiple"`
}

// NoDetection returns the sentinel state stamped at now.
func NoDetection(now time.Time) State {
	return State{
		PrimaryLabel: NoDetectionLabel,
		Detail:       []detector.Detection{},
		Timestamp:    now,
	}
}

// HasDetections reports whether the state carries at least one defect.
func (s State) HasDetections() bool {
	return len(s.Detail) > 0
}

// Summary renders the per-detection lines shown when several defects are
// visible at once, one numbered line per detection.
func (s State) Summary() string {
	if len(s.Detail) == 0 {
		return ""
	}

	var b strings.Builder
	for i, d := range s.Detail {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s: %.1f%% - %.1f°C", i+1, d.Label, d.Confidence*100, d.Temperature)
	}
	return b.String()
}
