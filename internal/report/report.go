// Package report renders inspection session reports and saves frame
// snapshots for the operator.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/gridwatch/internal/pipeline"
	"github.com/ayusman/gridwatch/internal/store"
)

const fileTimestampLayout = "20060102_150405"

// SessionStats summarizes the running session for report output.
type SessionStats struct {
	TotalDetections   int
	Duration          time.Duration
	CaptureFPS        float64
	ProcessingFPS     float64
	DetectionInterval int
	ProcessingEnabled bool
}

// Report bundles everything a text report needs: the operator form,
// the current detection state, and session statistics.
type Report struct {
	GeneratedAt time.Time
	Meta        store.Metadata
	State       pipeline.State
	Stats       SessionStats
}

// Write renders the report as plain text.
func Write(w io.Writer, r Report) error {
	at := r.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}

	rule := func(n int, c byte) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = c
		}
		return string(b)
	}

	var err error
	p := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	p("%s\n", rule(60, '='))
	p("        POWER LINE INSPECTION REPORT\n")
	p("%s\n\n", rule(60, '='))

	p("SESSION SUMMARY:\n%s\n", rule(40, '-'))
	p("Report Time: %s\n", at.Format("2006-01-02 15:04:05"))
	p("Session Duration: %s\n", formatDuration(r.Stats.Duration))
	p("Total Detections: %d\n", r.Stats.TotalDetections)
	p("Processing FPS: %.1f\n\n", r.Stats.ProcessingFPS)

	p("INSPECTION DETAILS:\n%s\n", rule(40, '-'))
	p("Line Number: %s\n", r.Meta.LineNumber)
	p("Pole Number: %s\n", r.Meta.PoleNumber)
	p("Distance: %.2f m\n", r.Meta.Distance)
	p("Ambient Temperature: %.1f °C\n", r.Meta.AmbientTemperature)
	p("Weather Conditions: %s\n", r.Meta.WeatherConditions)
	p("Inspector Name: %s\n\n", r.Meta.InspectorName)

	p("DETECTION RESULTS:\n%s\n", rule(40, '-'))
	p("Defect Type: %s\n", r.State.PrimaryLabel)
	p("Confidence: %.1f%%\n", r.State.PrimaryConfidence*100)
	p("Temperature: %.1f °C\n", r.State.PrimaryTemperature)
	p("Timestamp: %s\n", r.State.Timestamp.Format("15:04:05"))
	if r.State.IsMultiple {
		p("\nMultiple Detections:\n%s\n", r.State.Summary())
	}
	p("\n")

	p("SYSTEM INFORMATION:\n%s\n", rule(40, '-'))
	p("Detection Interval: %d\n", r.Stats.DetectionInterval)
	enabled := "Disabled"
	if r.Stats.ProcessingEnabled {
		enabled = "Enabled"
	}
	p("Real-time Processing: %s\n", enabled)
	p("Camera FPS: %.1f\n", r.Stats.CaptureFPS)

	return err
}

// Save writes the report to dir as inspection_report_<timestamp>.txt and
// returns the full path.
func Save(dir string, r Report) (string, error) {
	at := r.GeneratedAt
	if at.IsZero() {
		at = time.Now()
		r.GeneratedAt = at
	}

	path := filepath.Join(dir, fmt.Sprintf("inspection_report_%s.txt", at.Format(fileTimestampLayout)))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}

	if err := Write(f, r); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// SaveSnapshot writes an already-encoded JPEG frame to dir as
// snapshot_<timestamp>.jpg and returns the full path.
func SaveSnapshot(dir string, jpeg []byte, at time.Time) (string, error) {
	if len(jpeg) == 0 {
		return "", fmt.Errorf("no frame available for snapshot")
	}
	if at.IsZero() {
		at = time.Now()
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%s.jpg", at.Format(fileTimestampLayout)))
	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
