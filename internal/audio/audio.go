package audio

import (
	"errors"
	"fmt"
)

// ErrInvalidBuffer is returned for buffers with no samples or a non-positive rate.
var ErrInvalidBuffer = errors.New("invalid audio buffer")

// Buffer is a mono clip of samples in [-1, 1] at a fixed sample rate.
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// Validate checks the invariants every consumer relies on.
func (b Buffer) Validate() error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidBuffer, b.SampleRate)
	}
	if len(b.Samples) == 0 {
		return fmt.Errorf("%w: no samples", ErrInvalidBuffer)
	}
	return nil
}

// Clone returns a deep copy so the original can be reused by another session.
func (b Buffer) Clone() Buffer {
	samples := make([]float64, len(b.Samples))
	copy(samples, b.Samples)
	return Buffer{Samples: samples, SampleRate: b.SampleRate}
}

// Duration returns the clip length in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// downmix averages interleaved channels into one.
func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}
