package pipeline

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	mutations := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"fps at floor", func(c *Config) { c.TargetFPS = 1 }, false},
		{"fps at ceiling", func(c *Config) { c.TargetFPS = 120 }, false},
		{"fps zero", func(c *Config) { c.TargetFPS = 0 }, true},
		{"fps too high", func(c *Config) { c.TargetFPS = 121 }, true},
		{"skip at floor", func(c *Config) { c.FrameSkipInterval = 1 }, false},
		{"skip at ceiling", func(c *Config) { c.FrameSkipInterval = 10 }, false},
		{"skip zero", func(c *Config) { c.FrameSkipInterval = 0 }, true},
		{"skip too high", func(c *Config) { c.FrameSkipInterval = 11 }, true},
		{"confidence negative", func(c *Config) { c.ConfidenceThreshold = -0.1 }, true},
		{"confidence above one", func(c *Config) { c.ConfidenceThreshold = 1.5 }, true},
		{"iou above one", func(c *Config) { c.IOUThreshold = 1.01 }, true},
		{"max detections zero", func(c *Config) { c.MaxDetections = 0 }, true},
		{"queue capacity zero", func(c *Config) { c.QueueCapacity = 0 }, true},
	}

	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			cfg := DefaultConfig()
			m.mutate(&cfg)

			err := cfg.Validate()
			if m.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("error %v not wrapped in ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
