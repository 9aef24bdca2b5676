package capture

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default capture settings for camera sources.
const (
	DefaultWidth     = 640
	DefaultHeight    = 480
	DefaultCameraFPS = 30

	// cameraIndexRange is how many device indices are probed per backend
	// before giving up on it.
	cameraIndexRange = 3
)

// Sentinel errors for source lifecycle failures.
var (
	// ErrSourceUnavailable means every file and camera open attempt failed.
	// Fatal to session start.
	ErrSourceUnavailable = errors.New("no video file or camera source available")
	// ErrSourceLost means reads kept failing past the retry budget.
	// Fatal to the session; recoverable only by a full restart.
	ErrSourceLost = errors.New("video source lost")
	// ErrSourceNotOpen is returned when reading from a closed source.
	ErrSourceNotOpen = errors.New("video source is not open")
)

// Kind identifies what a source is backed by.
type Kind int

const (
	// KindCamera is a live capture device.
	KindCamera Kind = iota
	// KindFile is a recorded video file, played back in a loop.
	KindFile
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	if k == KindFile {
		return "file"
	}
	return "camera"
}

// Descriptor describes an opened source. Kind, Index and NativeFPS are
// filled in by Open; only the owning source ever touches the handle behind it.
type Descriptor struct {
	Kind      Kind
	Path      string
	Index     int
	NativeFPS float64
}

// Source is the frame producer contract consumed by the acquisition loop.
type Source interface {
	Open() error
	Read() (Frame, error)
	Close() error
	IsOpen() bool
	TargetFPS() float64
	Descriptor() Descriptor
}

// cameraBackends is the probe order for live devices, mirroring the
// platforms the inspection rig is deployed on.
var cameraBackends = []gocv.VideoCaptureAPI{
	gocv.VideoCaptureDshow,
	gocv.VideoCaptureMSMF,
	gocv.VideoCaptureV4L2,
	gocv.VideoCaptureAny,
}

// VideoSource produces frames from a video file when one exists at the
// configured path, otherwise from the first camera that opens. File sources
// loop back to the first frame at end of stream; camera sources ride out
// transient read failures under a bounded retry policy.
type VideoSource struct {
	mu         sync.Mutex
	cap        *gocv.VideoCapture
	desc       Descriptor
	open       bool
	targetFPS  float64
	playbackFP float64
	readRetry  RetryPolicy
	seq        uint64
}

// NewVideoSource creates a source that prefers the video file at path and
// falls back to camera probing. targetFPS caps the playback rate.
func NewVideoSource(path string, targetFPS float64) *VideoSource {
	if targetFPS <= 0 {
		targetFPS = DefaultCameraFPS
	}
	return &VideoSource{
		desc:       Descriptor{Path: path},
		targetFPS:  targetFPS,
		playbackFP: targetFPS,
		readRetry:  DefaultReadRetry(),
	}
}

// SetReadRetry replaces the transient-read recovery policy.
// Must be called before Open.
func (s *VideoSource) SetReadRetry(p RetryPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readRetry = p
}

// Open acquires the capture handle. File playback runs at
// min(nativeFPS, targetFPS) so fast files are not rushed and slow files are
// not stretched. Returns ErrSourceUnavailable only after the file and every
// backend/index combination have been exhausted.
func (s *VideoSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil
	}

	if s.desc.Path != "" {
		if _, err := os.Stat(s.desc.Path); err == nil {
			if err := s.openFile(); err == nil {
				return nil
			}
		} else {
			log.Printf("Video file %s not found, trying camera sources", s.desc.Path)
		}
	}

	return s.openCamera()
}

func (s *VideoSource) openFile() error {
	cap, err := gocv.OpenVideoCapture(s.desc.Path)
	if err != nil {
		return fmt.Errorf("open video file: %w", err)
	}

	native := cap.Get(gocv.VideoCaptureFPS)
	if native <= 0 {
		native = DefaultCameraFPS
	}

	s.cap = cap
	s.open = true
	s.desc.Kind = KindFile
	s.desc.NativeFPS = native
	s.playbackFP = native
	if s.targetFPS < native {
		s.playbackFP = s.targetFPS
	}

	log.Printf("Loaded video %s (native %.1f FPS, playback %.1f FPS)",
		s.desc.Path, native, s.playbackFP)
	return nil
}

func (s *VideoSource) openCamera() error {
	for _, backend := range cameraBackends {
		for idx := 0; idx < cameraIndexRange; idx++ {
			cap, err := gocv.OpenVideoCaptureWithAPI(idx, backend)
			if err != nil || !cap.IsOpened() {
				if cap != nil {
					cap.Close()
				}
				continue
			}

			cap.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
			cap.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
			cap.Set(gocv.VideoCaptureFPS, float64(DefaultCameraFPS))
			cap.Set(gocv.VideoCaptureBufferSize, 1)

			s.cap = cap
			s.open = true
			s.desc.Kind = KindCamera
			s.desc.Index = idx
			s.desc.NativeFPS = float64(DefaultCameraFPS)
			s.playbackFP = s.targetFPS

			log.Printf("Camera opened (index %d, backend %d), target %.1f FPS",
				idx, backend, s.playbackFP)
			return nil
		}
	}

	return ErrSourceUnavailable
}

// Read returns the next frame. For a file source, end of stream rewinds to
// the first frame and reads again rather than terminating. For a camera,
// a bad read is retried under the read policy and escalates to ErrSourceLost
// once the policy is exhausted.
func (s *VideoSource) Read() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open || s.cap == nil {
		return Frame{}, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	err := s.readRetry.Do(func() error {
		if s.cap.Read(&mat) && !mat.Empty() {
			return nil
		}
		if s.desc.Kind == KindFile && s.atEndOfStream() {
			log.Printf("Video ended, restarting from first frame")
			s.cap.Set(gocv.VideoCapturePosFrames, 0)
		}
		return errors.New("read failed")
	})
	if err != nil {
		mat.Close()
		return Frame{}, fmt.Errorf("%w: %v", ErrSourceLost, err)
	}

	s.seq++
	return Frame{Mat: mat, Timestamp: time.Now(), Seq: s.seq}, nil
}

// atEndOfStream reports whether the file position reached the last frame.
// Some containers report a zero frame count; treat any failed read on those
// as end of stream so looping still works.
func (s *VideoSource) atEndOfStream() bool {
	total := s.cap.Get(gocv.VideoCaptureFrameCount)
	if total <= 0 {
		return true
	}
	return s.cap.Get(gocv.VideoCapturePosFrames) >= total
}

// Close releases the capture handle. Idempotent.
func (s *VideoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open || s.cap == nil {
		s.open = false
		return nil
	}

	err := s.cap.Close()
	s.cap = nil
	s.open = false
	return err
}

// IsOpen reports whether the capture handle is held.
func (s *VideoSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// TargetFPS returns the effective playback rate decided at open time.
func (s *VideoSource) TargetFPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playbackFP
}

// Descriptor returns a copy of the resolved source description.
func (s *VideoSource) Descriptor() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}
