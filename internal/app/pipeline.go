package app

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/gridwatch/internal/capture"
	"github.com/ayusman/gridwatch/internal/overlay"
)

// emptyQueuePollInterval is how long the inference loop sleeps when no
// frame is waiting.
const emptyQueuePollInterval = time.Millisecond

// pausePollInterval is how often a frozen loop rechecks for resume.
const pausePollInterval = 10 * time.Millisecond

// sourceFailureLimit ends acquisition after this many consecutive read
// failures.
const sourceFailureLimit = 30

// acquireLoop reads frames at the source's target rate and hands them to
// the inference loop through the bounded queue. A full queue drops the
// incoming frame rather than stalling acquisition.
func (s *Session) acquireLoop(stopCh <-chan struct{}) {
	defer s.wg.Done()

	pacer := capture.NewPacer(s.source.TargetFPS())
	failures := 0

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if s.paused.Load() {
			time.Sleep(pausePollInterval)
			continue
		}

		start := time.Now()

		frame, err := s.source.Read()
		if err != nil {
			if errors.Is(err, capture.ErrSourceNotOpen) {
				s.fail(err)
				return
			}
			failures++
			log.Printf("Error reading frame: %v", err)
			if failures >= sourceFailureLimit {
				s.fail(fmt.Errorf("%w: %d consecutive read failures", capture.ErrSourceLost, failures))
				return
			}
			pacer.Wait(start)
			continue
		}
		failures = 0

		s.captureRate.Tick()
		s.queue.TryPush(frame)
		frame.Close()

		if elapsed := time.Since(start); pacer.Lagging(elapsed) {
			log.Printf("Frame acquisition lagging: %v elapsed for %v budget", elapsed, pacer.Interval())
		}
		pacer.Wait(start)
	}
}

// inferLoop drains the queue, runs each frame through the scheduler, and
// publishes the annotated result.
func (s *Session) inferLoop(stopCh <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if s.paused.Load() {
			time.Sleep(pausePollInterval)
			continue
		}

		frame, ok := s.queue.TryPop()
		if !ok {
			time.Sleep(emptyQueuePollInterval)
			continue
		}

		st, fresh := s.sched.Process(frame)

		overlay.Draw(&frame.Mat, st)
		jpeg, err := encodeJPEG(frame.Mat)
		frame.Close()
		if err != nil {
			log.Printf("Error encoding frame: %v", err)
			continue
		}

		s.latest.Store(&Snapshot{
			JPEG:      jpeg,
			State:     st,
			Seq:       frame.Seq,
			Timestamp: frame.Timestamp,
		})

		if fresh {
			s.persistDetections(st)
		}
	}
}

// encodeJPEG copies the encoded bytes out of gocv's native buffer so the
// snapshot stays valid after the buffer is released.
func encodeJPEG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
