package detector

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// temperatureRange is the plausible joint temperature band for one class.
type temperatureRange struct {
	Low, High float64
}

// temperatureRanges reflects that bare joints run hotter than covered ones.
var temperatureRanges = map[int]temperatureRange{
	ClassFiredWedgeBare:     {Low: 35.0, High: 65.0},
	ClassFiredWedgeCovered:  {Low: 30.0, High: 55.0},
	ClassHammerWedgeBare:    {Low: 32.0, High: 60.0},
	ClassHammerWedgeCovered: {Low: 28.0, High: 50.0},
}

// defaultTemperatureRange covers class IDs outside the class table.
var defaultTemperatureRange = temperatureRange{Low: 30.0, High: 60.0}

// TemperatureBand returns the expected joint temperature band for a
// class ID. Unknown IDs get the default band.
func TemperatureBand(classID int) (low, high float64) {
	r, ok := temperatureRanges[classID]
	if !ok {
		r = defaultTemperatureRange
	}
	return r.Low, r.High
}

// TemperatureSimulator produces synthetic joint temperatures from a
// detection's class and confidence. It is a presentation aid standing in
// for a thermal camera, not a measurement: higher confidence biases the
// draw toward the hot end of the class band, with a little jitter on top.
// A fixed seed makes the sequence fully reproducible.
type TemperatureSimulator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	enabled bool
}

// NewTemperatureSimulator creates a simulator seeded from the clock.
func NewTemperatureSimulator() *TemperatureSimulator {
	return NewSeededTemperatureSimulator(time.Now().UnixNano())
}

// NewSeededTemperatureSimulator creates a simulator with a fixed seed,
// giving a deterministic temperature sequence.
func NewSeededTemperatureSimulator(seed int64) *TemperatureSimulator {
	return &TemperatureSimulator{
		rng:     rand.New(rand.NewSource(seed)),
		enabled: true,
	}
}

// SetEnabled toggles simulation. While disabled, Simulate returns 0.
func (s *TemperatureSimulator) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Simulate returns a temperature in the class band, biased upward by
// confidence, rounded to one decimal place.
func (s *TemperatureSimulator) Simulate(classID int, confidence float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return 0
	}

	r, ok := temperatureRanges[classID]
	if !ok {
		r = defaultTemperatureRange
	}

	span := r.High - r.Low
	lo := r.Low + span*confidence*0.1
	hi := r.High - span*(1-confidence)*0.05
	if hi < lo {
		hi = lo
	}

	temp := lo + s.rng.Float64()*(hi-lo)
	jitter := -0.5 + s.rng.Float64()
	return math.Round((temp+jitter)*10) / 10
}

// Apply fills in the Temperature field of every detection in place.
func (s *TemperatureSimulator) Apply(dets []Detection) {
	for i := range dets {
		dets[i].Temperature = s.Simulate(dets[i].ClassID, dets[i].Confidence)
	}
}
