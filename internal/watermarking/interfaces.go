package watermarking

import (
	"context"
	"encoding/json"
	"math/rand"
)

// Watermarker defines the standard interface for embedding and detecting
// audio watermarks.
type Watermarker interface {
	Name() string
	Description() string
	// NewPayload draws the per-session secret the watermark encodes.
	NewPayload(rng *rand.Rand) []byte
	// Embed returns the watermarked samples. The result must have the same
	// length as the input.
	Embed(ctx context.Context, samples []float64, sampleRate int, payload []byte) ([]float64, error)
	// Detect returns a confidence in [0,1] that payload is present.
	Detect(ctx context.Context, samples []float64, sampleRate int, payload []byte) (float64, error)
}

// ConfigParser defines the interface for parsing algorithm-specific parameters
// from raw JSON.
type ConfigParser interface {
	// Parse takes the raw JSON of the "params" object and returns a configured
	// Watermarker reporting the given name.
	Parse(name string, params json.RawMessage) (Watermarker, error)
}

// ParserFunc adapts a function to ConfigParser.
type ParserFunc func(name string, params json.RawMessage) (Watermarker, error)

func (f ParserFunc) Parse(name string, params json.RawMessage) (Watermarker, error) {
	return f(name, params)
}
