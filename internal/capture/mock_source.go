package capture

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockSource plays back a pre-built frame sequence for testing. It mimics
// VideoSource file semantics: with loop enabled the sequence rewinds at the
// end, otherwise reads fail once exhausted.
type MockSource struct {
	mu      sync.Mutex
	frames  []*gocv.Mat
	index   int
	loop    bool
	loops   int
	open    bool
	fps     float64
	readErr error
	seq     uint64
}

// NewMockSource creates a mock source over the given frames.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{
		frames: frames,
		loop:   loop,
		fps:    30,
	}
}

// Open marks the source open and rewinds playback.
func (s *MockSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.index = 0
	return nil
}

// Close marks the source closed.
func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// Read returns a clone of the next frame in the sequence.
func (s *MockSource) Read() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return Frame{}, ErrSourceNotOpen
	}
	if s.readErr != nil {
		return Frame{}, s.readErr
	}
	if len(s.frames) == 0 {
		return Frame{}, fmt.Errorf("%w: no frames available", ErrSourceLost)
	}

	if s.index >= len(s.frames) {
		if !s.loop {
			return Frame{}, fmt.Errorf("%w: sequence exhausted", ErrSourceLost)
		}
		s.index = 0
		s.loops++
	}

	mat := s.frames[s.index].Clone()
	s.index++
	s.seq++

	return Frame{Mat: mat, Timestamp: time.Now(), Seq: s.seq}, nil
}

// IsOpen reports whether Open has been called without a matching Close.
func (s *MockSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// TargetFPS returns the configured playback rate.
func (s *MockSource) TargetFPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps
}

// SetTargetFPS overrides the playback rate reported to the pacer.
func (s *MockSource) SetTargetFPS(fps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fps > 0 {
		s.fps = fps
	}
}

// Descriptor reports the source as a looping file.
func (s *MockSource) Descriptor() Descriptor {
	return Descriptor{Kind: KindFile, Path: "mock", NativeFPS: s.TargetFPS()}
}

// SetReadError forces every subsequent Read to fail with err; nil clears it.
func (s *MockSource) SetReadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// Loops returns how many times playback wrapped back to the first frame.
func (s *MockSource) Loops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loops
}

// Reads returns the number of frames served.
func (s *MockSource) Reads() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
