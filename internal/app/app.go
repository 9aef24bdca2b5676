// Package app provides the main application logic for the power line
// inspection system: it owns the capture source, the frame queue, the
// inference scheduler, and the persistence of detections.
package app

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/gridwatch/internal/capture"
	"github.com/ayusman/gridwatch/internal/detector"
	"github.com/ayusman/gridwatch/internal/pipeline"
	"github.com/ayusman/gridwatch/internal/report"
	"github.com/ayusman/gridwatch/internal/store"
)

// Session lifecycle errors.
var (
	ErrSessionRunning    = errors.New("session already running")
	ErrSessionNotRunning = errors.New("session not running")
)

// SessionState tracks where the inspection session is in its lifecycle.
type SessionState int

const (
	StateIdle SessionState = iota
	StateOpening
	StateRunning
	StatePaused
	StateStopping
)

// String returns the state name for logs and the status API.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Config holds configuration options for the application.
type Config struct {
	Store *store.Store

	// VideoPath selects a recorded video; empty means probe for a camera.
	VideoPath string

	// ModelPath locates the detection model weights.
	ModelPath string

	Pipeline pipeline.Config

	// Metadata is the operator form attached to persisted detections.
	Metadata store.Metadata

	// Source overrides the default video source when set. Used by tests
	// and by callers that build their own source.
	Source capture.Source

	// Detector overrides detector selection when set.
	Detector detector.Detector
}

// Snapshot is the latest presentable frame: the annotated JPEG and the
// detection state it was drawn with. Published atomically; readers never
// see a frame paired with another frame's detections.
type Snapshot struct {
	JPEG      []byte
	State     pipeline.State
	Seq       uint64
	Timestamp time.Time
}

// Session orchestrates acquisition, inference, and persistence for one
// inspection run.
type Session struct {
	config Config

	source capture.Source
	queue  *capture.FrameQueue
	sched  *pipeline.Scheduler

	captureRate *capture.RateCounter
	latest      atomic.Pointer[Snapshot]
	detections  atomic.Uint64
	paused      atomic.Bool

	mu        sync.RWMutex
	state     SessionState
	meta      store.Metadata
	startedAt time.Time
	lastErr   error
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New creates a new Session with the given configuration.
func New(config Config) (*Session, error) {
	if err := config.Pipeline.Validate(); err != nil {
		return nil, err
	}

	src := config.Source
	if src == nil {
		src = capture.NewVideoSource(config.VideoPath, config.Pipeline.TargetFPS)
	}

	s := &Session{
		config:      config,
		source:      src,
		queue:       capture.NewFrameQueue(config.Pipeline.QueueCapacity),
		captureRate: capture.NewRateCounter(),
		state:       StateIdle,
		meta:        config.Metadata,
	}

	// Try the YOLO service first, fall back to the mock detector
	det := config.Detector
	if det == nil {
		if yolo, err := detector.NewYOLOServiceDetector(config.ModelPath); err == nil {
			det = yolo
			log.Println("Using YOLO defect detection")
		} else {
			log.Printf("YOLO service not available (%v), using mock detector", err)
			det = detector.NewMockDetector()
		}
	}

	s.sched = pipeline.NewScheduler(det, detector.NewTemperatureSimulator(), config.Pipeline)
	return s, nil
}

// Start opens the video source and begins the acquisition and inference
// loops.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionRunning
	}
	s.state = StateOpening
	s.mu.Unlock()

	if err := s.source.Open(); err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return fmt.Errorf("failed to open video source: %w", err)
	}

	s.mu.Lock()
	s.stopCh = make(chan struct{})
	s.startedAt = time.Now()
	s.lastErr = nil
	s.state = StateRunning
	stopCh := s.stopCh
	s.mu.Unlock()
	s.paused.Store(false)

	s.wg.Add(2)
	go s.acquireLoop(stopCh)
	go s.inferLoop(stopCh)

	desc := s.source.Descriptor()
	log.Printf("Inspection session started (%s, target %.1f FPS)", desc.Kind, s.source.TargetFPS())
	return nil
}

// Stop halts both loops, drains the queue, and releases the video source.
// Safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateIdle || s.state == StateStopping {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.queue.Clear()
	if err := s.source.Close(); err != nil {
		log.Printf("Error closing video source: %v", err)
	}
	s.sched.Reset()
	s.captureRate.Reset()
	s.paused.Store(false)

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()

	log.Println("Inspection session stopped")
}

// Pause freezes acquisition and inference. The last published detection
// state and snapshot stay up for display until Resume or Stop.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return ErrSessionNotRunning
	}
	s.state = StatePaused
	s.paused.Store(true)
	return nil
}

// Resume restarts both loops after a pause.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return ErrSessionNotRunning
	}
	s.state = StateRunning
	s.paused.Store(false)
	return nil
}

// fail records a terminal error and shuts the session down. Loops call
// this on unrecoverable conditions, so Stop runs on its own goroutine.
func (s *Session) fail(err error) {
	log.Printf("Inspection session aborted: %v", err)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	go s.Stop()
}

// Err returns the error that ended the last session, or nil if it was
// stopped normally. Cleared on the next Start.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Close stops the session and releases the detector.
func (s *Session) Close() error {
	s.Stop()
	return s.sched.Close()
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Latest returns the most recent published snapshot, or nil before the
// first frame has been processed.
func (s *Session) Latest() *Snapshot {
	return s.latest.Load()
}

// CurrentState returns the last published detection state.
func (s *Session) CurrentState() pipeline.State {
	return s.sched.Current()
}

// Scheduler exposes the inference scheduler for runtime adjustments.
func (s *Session) Scheduler() *pipeline.Scheduler {
	return s.sched
}

// Source returns the video source.
func (s *Session) Source() capture.Source {
	return s.source
}

// CaptureFPS returns acquired frames per second over the last second.
func (s *Session) CaptureFPS() float64 {
	return s.captureRate.Rate()
}

// ProcessingFPS returns processed frames per second over the last second.
func (s *Session) ProcessingFPS() float64 {
	return s.sched.ProcessingRate()
}

// QueueDrops returns how many frames were discarded because the queue
// was full.
func (s *Session) QueueDrops() uint64 {
	return s.queue.Drops()
}

// Detections returns how many detections have been persisted this session.
func (s *Session) Detections() uint64 {
	return s.detections.Load()
}

// SetMetadata replaces the operator form attached to new records.
func (s *Session) SetMetadata(m store.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = m
}

// Metadata returns the current operator form.
func (s *Session) Metadata() store.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Stats summarizes the session for reports and the status API.
func (s *Session) Stats() report.SessionStats {
	s.mu.RLock()
	startedAt := s.startedAt
	running := s.state == StateRunning || s.state == StatePaused
	s.mu.RUnlock()

	var duration time.Duration
	if running && !startedAt.IsZero() {
		duration = time.Since(startedAt)
	}

	return report.SessionStats{
		TotalDetections:   int(s.detections.Load()),
		Duration:          duration,
		CaptureFPS:        s.CaptureFPS(),
		ProcessingFPS:     s.ProcessingFPS(),
		DetectionInterval: s.sched.FrameSkipInterval(),
		ProcessingEnabled: s.sched.ProcessingEnabled(),
	}
}

// Report assembles a text report for the current state of the session.
func (s *Session) Report() report.Report {
	return report.Report{
		GeneratedAt: time.Now(),
		Meta:        s.Metadata(),
		State:       s.CurrentState(),
		Stats:       s.Stats(),
	}
}

// SaveSnapshot writes the latest annotated frame to dir.
func (s *Session) SaveSnapshot(dir string) (string, error) {
	snap := s.Latest()
	if snap == nil {
		return "", fmt.Errorf("no frame available for snapshot")
	}
	return report.SaveSnapshot(dir, snap.JPEG, snap.Timestamp)
}

// persistDetections writes one record per detection in the state.
func (s *Session) persistDetections(st pipeline.State) {
	if s.config.Store == nil || !st.HasDetections() {
		return
	}

	meta := s.Metadata()
	repo := s.config.Store.Records()
	for _, d := range st.Detail {
		rec := &store.InspectionRecord{
			ID:                 uuid.New().String(),
			Timestamp:          st.Timestamp,
			DefectType:         d.Label,
			Confidence:         d.Confidence,
			Temperature:        d.Temperature,
			Distance:           meta.Distance,
			LineNumber:         meta.LineNumber,
			PoleNumber:         meta.PoleNumber,
			AmbientTemperature: meta.AmbientTemperature,
			WeatherConditions:  meta.WeatherConditions,
			InspectorName:      meta.InspectorName,
		}
		if err := repo.Create(rec); err != nil {
			log.Printf("Failed to persist detection: %v", err)
			continue
		}
		s.detections.Add(1)
	}
}
