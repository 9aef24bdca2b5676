package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface. It
// counts calls, serves canned detections, and can be scripted to fail on
// specific calls, which is how the scheduler's skip and recovery behavior
// is verified.
type MockDetector struct {
	mu         sync.Mutex
	detections []Detection
	perCall    [][]Detection
	err        error
	failOn     map[int]error
	calls      int
	lastOpts   Options
}

// NewMockDetector creates an empty MockDetector.
func NewMockDetector() *MockDetector {
	return &MockDetector{failOn: make(map[int]error)}
}

// SetDetections sets the detections returned by every Detect call.
func (m *MockDetector) SetDetections(dets []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = dets
	m.perCall = nil
}

// ScriptDetections queues per-call results; call n returns script[n-1].
// Calls past the end of the script return the last entry.
func (m *MockDetector) ScriptDetections(script [][]Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perCall = script
}

// SetError makes every Detect call fail with err until cleared with nil.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailOnCall makes the n-th Detect call (1-indexed) fail with err.
func (m *MockDetector) FailOnCall(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[n] = err
}

// Detect returns the scripted result for this call.
func (m *MockDetector) Detect(frame *gocv.Mat, opts Options) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.lastOpts = opts

	if err, ok := m.failOn[m.calls]; ok {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}

	if len(m.perCall) > 0 {
		idx := m.calls - 1
		if idx >= len(m.perCall) {
			idx = len(m.perCall) - 1
		}
		return cloneDetections(m.perCall[idx]), nil
	}
	return cloneDetections(m.detections), nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastOptions returns the Options passed to the most recent Detect call.
func (m *MockDetector) LastOptions() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}

// cloneDetections copies the slice so callers mutating results (for example
// attaching temperatures) do not corrupt the script.
func cloneDetections(dets []Detection) []Detection {
	if dets == nil {
		return []Detection{}
	}
	out := make([]Detection, len(dets))
	copy(out, dets)
	return out
}
