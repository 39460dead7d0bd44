// Package wmtest provides deterministic Watermarker stubs for tests.
package wmtest

import (
	"context"
	"math"
	"math/rand"
)

// Marker writes one payload-dependent level at a fixed sample index and
// detects by checking that index. Two Markers with different Slots never
// disturb each other. Levels lie on the 16-bit PCM grid so they survive a
// wav round trip unchanged.
type Marker struct {
	ID   string
	Slot int

	// EmbedErr and DetectErr, when set, are returned instead of working.
	EmbedErr  error
	DetectErr error
	// Grow makes Embed return one extra sample.
	Grow bool

	Embeds  int
	Detects int
}

func (m *Marker) Name() string        { return m.ID }
func (m *Marker) Description() string { return "test marker at a fixed sample index" }

func (m *Marker) NewPayload(rng *rand.Rand) []byte {
	return []byte{byte(rng.Intn(64))}
}

// Level is the sample value Embed writes for payload.
func Level(payload []byte) float64 {
	return 0.25 + float64(payload[0]%64)/256
}

func (m *Marker) Embed(_ context.Context, samples []float64, _ int, payload []byte) ([]float64, error) {
	m.Embeds++
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	out := make([]float64, len(samples), len(samples)+1)
	copy(out, samples)
	out[m.Slot%len(out)] = Level(payload)
	if m.Grow {
		out = append(out, 0)
	}
	return out, nil
}

func (m *Marker) Detect(_ context.Context, samples []float64, _ int, payload []byte) (float64, error) {
	m.Detects++
	if m.DetectErr != nil {
		return 0, m.DetectErr
	}
	if len(samples) == 0 {
		return 0, nil
	}
	if math.Abs(samples[m.Slot%len(samples)]-Level(payload)) < 1e-9 {
		return 1, nil
	}
	return 0, nil
}

// Score is a Watermarker whose Detect returns a fixed value.
type Score struct {
	ID    string
	Value float64
}

func (s *Score) Name() string                 { return s.ID }
func (s *Score) Description() string          { return "test provider with a fixed score" }
func (s *Score) NewPayload(*rand.Rand) []byte { return nil }
func (s *Score) Embed(_ context.Context, samples []float64, _ int, _ []byte) ([]float64, error) {
	out := make([]float64, len(samples))
	copy(out, samples)
	return out, nil
}

func (s *Score) Detect(context.Context, []float64, int, []byte) (float64, error) {
	return s.Value, nil
}
