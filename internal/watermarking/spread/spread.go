package spread

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/rand"

	"wmbench/internal/watermarking"
)

const Kind = "spread"

const (
	defaultBits     = 16
	defaultStrength = 0.01
	defaultBlock    = 2048
	keyBytes        = 8
)

// Spread is a keyed spread-spectrum watermarker. Each payload bit modulates a
// ±1 pseudo-noise sequence over fixed-size blocks; the bits repeat
// cyclically across the clip so detection does not depend on clip length.
type Spread struct {
	Algorithm string  `json:"-"`
	Bits      int     `json:"bits"`
	Strength  float64 `json:"strength"`
	Block     int     `json:"block"`
}

func init() {
	watermarking.Register(Kind, watermarking.ParserFunc(Parse))
}

// Parse builds a Spread from optional JSON params.
func Parse(name string, params json.RawMessage) (watermarking.Watermarker, error) {
	s := &Spread{
		Algorithm: name,
		Bits:      defaultBits,
		Strength:  defaultStrength,
		Block:     defaultBlock,
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, s); err != nil {
			return nil, err
		}
	}
	if s.Bits < 1 {
		return nil, fmt.Errorf("bits must be positive, got %d", s.Bits)
	}
	if s.Strength <= 0 || s.Strength >= 1 {
		return nil, fmt.Errorf("strength must be in (0,1), got %v", s.Strength)
	}
	if s.Block < 1 {
		return nil, fmt.Errorf("block must be positive, got %d", s.Block)
	}
	return s, nil
}

// Name returns the configured instance name.
func (s *Spread) Name() string {
	return s.Algorithm
}

// Description returns the algorithm's description.
func (s *Spread) Description() string {
	return fmt.Sprintf("Spread-spectrum watermark, %d bits, strength %g, %d-sample blocks", s.Bits, s.Strength, s.Block)
}

// NewPayload returns an 8-byte PN key followed by one byte per bit.
func (s *Spread) NewPayload(rng *rand.Rand) []byte {
	p := make([]byte, keyBytes+s.Bits)
	binary.LittleEndian.PutUint64(p, rng.Uint64())
	for i := 0; i < s.Bits; i++ {
		p[keyBytes+i] = byte(rng.Intn(2))
	}
	return p
}

func (s *Spread) split(payload []byte) (int64, []byte, error) {
	if len(payload) != keyBytes+s.Bits {
		return 0, nil, fmt.Errorf("payload is %d bytes, want %d", len(payload), keyBytes+s.Bits)
	}
	return int64(binary.LittleEndian.Uint64(payload)), payload[keyBytes:], nil
}

// chips returns the ±1 sequence for the first n samples.
func chips(key int64, n int) []float64 {
	rng := rand.New(rand.NewSource(key))
	out := make([]float64, n)
	for i := range out {
		if rng.Intn(2) == 0 {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out
}

// Embed adds the modulated sequence to every complete block.
func (s *Spread) Embed(ctx context.Context, samples []float64, _ int, payload []byte) ([]float64, error) {
	key, bits, err := s.split(payload)
	if err != nil {
		return nil, err
	}
	blocks := len(samples) / s.Block
	if blocks < s.Bits {
		return nil, fmt.Errorf("clip of %d samples is too short for %d bits of %d samples", len(samples), s.Bits, s.Block)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pn := chips(key, blocks*s.Block)
	out := make([]float64, len(samples))
	copy(out, samples)
	for j := range pn {
		sign := -1.0
		if bits[(j/s.Block)%s.Bits] == 1 {
			sign = 1
		}
		out[j] += s.Strength * sign * pn[j]
	}
	return out, nil
}

// Detect correlates each bit's blocks with the sequence and returns 1 - BER.
// Unmarked audio scores around 0.5.
func (s *Spread) Detect(ctx context.Context, samples []float64, _ int, payload []byte) (float64, error) {
	key, bits, err := s.split(payload)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	blocks := len(samples) / s.Block
	pn := chips(key, blocks*s.Block)
	corr := make([]float64, s.Bits)
	for j := range pn {
		corr[(j/s.Block)%s.Bits] += samples[j] * pn[j]
	}

	matches := 0
	for i, c := range corr {
		if c == 0 {
			// no evidence for this bit
			continue
		}
		if (c > 0) == (bits[i] == 1) {
			matches++
		}
	}
	return float64(matches) / float64(s.Bits), nil
}
