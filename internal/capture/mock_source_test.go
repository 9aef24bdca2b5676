package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func makeMats(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	mats := make([]*gocv.Mat, n)
	for i := range mats {
		m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
		mats[i] = &m
		t.Cleanup(func() { m.Close() })
	}
	return mats
}

func TestMockSource_ReadBeforeOpen(t *testing.T) {
	src := NewMockSource(makeMats(t, 1), false)

	if _, err := src.Read(); !errors.Is(err, ErrSourceNotOpen) {
		t.Errorf("Read() error = %v, want ErrSourceNotOpen", err)
	}
}

func TestMockSource_LoopsAtEndOfStream(t *testing.T) {
	src := NewMockSource(makeMats(t, 3), true)
	if err := src.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	for i := 0; i < 7; i++ {
		f, err := src.Read()
		if err != nil {
			t.Fatalf("Read() %d error = %v", i, err)
		}
		f.Close()
	}

	if got := src.Loops(); got != 2 {
		t.Errorf("Loops() = %d, want 2", got)
	}
	if got := src.Reads(); got != 7 {
		t.Errorf("Reads() = %d, want 7", got)
	}
}

func TestMockSource_ExhaustsWithoutLoop(t *testing.T) {
	src := NewMockSource(makeMats(t, 2), false)
	src.Open()
	defer src.Close()

	for i := 0; i < 2; i++ {
		f, err := src.Read()
		if err != nil {
			t.Fatalf("Read() %d error = %v", i, err)
		}
		f.Close()
	}

	if _, err := src.Read(); !errors.Is(err, ErrSourceLost) {
		t.Errorf("Read() past end error = %v, want ErrSourceLost", err)
	}
}

func TestMockSource_InjectedReadError(t *testing.T) {
	src := NewMockSource(makeMats(t, 2), true)
	src.Open()
	defer src.Close()

	injected := errors.New("sensor glitch")
	src.SetReadError(injected)

	if _, err := src.Read(); !errors.Is(err, injected) {
		t.Errorf("Read() error = %v, want injected error", err)
	}

	src.SetReadError(nil)
	f, err := src.Read()
	if err != nil {
		t.Fatalf("Read() after clearing error = %v", err)
	}
	f.Close()
}

func TestMockSource_FramesAreCopies(t *testing.T) {
	mats := makeMats(t, 1)
	src := NewMockSource(mats, true)
	src.Open()
	defer src.Close()

	f, err := src.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	f.Close()

	// The source's backing frame must survive the consumer closing its copy.
	if mats[0].Empty() {
		t.Error("backing frame should not be affected by closing a read frame")
	}
}
