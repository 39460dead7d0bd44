package watermarking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"wmbench/internal/audio"
)

var (
	// ErrEmbed wraps a provider rejecting an embed request.
	ErrEmbed = errors.New("watermark embed failed")
	// ErrDetect wraps a provider failing to produce a score.
	ErrDetect = errors.New("watermark detect failed")
	// ErrProviderContract reports output that breaks the Watermarker contract.
	ErrProviderContract = errors.New("watermark provider contract violation")
	// ErrStateMisuse reports an operation that is illegal in the session's state.
	ErrStateMisuse = errors.New("watermark session state misuse")
	// ErrAlreadyWatermarked is returned by a second Embed on the same session.
	ErrAlreadyWatermarked = fmt.Errorf("%w: already watermarked", ErrStateMisuse)
)

// State is the lifecycle position of a Session.
type State int

const (
	Initialized State = iota
	Watermarked
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Watermarked:
		return "watermarked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session owns one clip's sample buffer for one provider.
type Session struct {
	buf      audio.Buffer
	provider Watermarker
	payload  []byte
	state    State
}

// NewSession takes ownership of buf and draws a fresh payload from rng.
func NewSession(buf audio.Buffer, provider Watermarker, rng *rand.Rand) (*Session, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		buf:      buf,
		provider: provider,
		payload:  provider.NewPayload(rng),
		state:    Initialized,
	}, nil
}

func (s *Session) Provider() Watermarker { return s.provider }
func (s *Session) State() State          { return s.state }

// Payload exposes the secret so tests can validate detection independently.
func (s *Session) Payload() []byte {
	out := make([]byte, len(s.payload))
	copy(out, s.payload)
	return out
}

// Buffer returns a copy of the current samples.
func (s *Session) Buffer() audio.Buffer { return s.buf.Clone() }

// Replace installs a new buffer, typically decoded from an attacked
// artifact. The length may differ from the original.
func (s *Session) Replace(buf audio.Buffer) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	s.buf = buf
	return nil
}

// Embed applies the provider's watermark to the buffer.
func (s *Session) Embed(ctx context.Context) error {
	if s.state != Initialized {
		return fmt.Errorf("%s: %w", s.provider.Name(), ErrAlreadyWatermarked)
	}
	out, err := s.provider.Embed(ctx, s.buf.Samples, s.buf.SampleRate, s.payload)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", s.provider.Name(), ErrEmbed, err)
	}
	if len(out) != len(s.buf.Samples) {
		return fmt.Errorf("%s: %w: embed returned %d samples for %d",
			s.provider.Name(), ErrProviderContract, len(out), len(s.buf.Samples))
	}
	s.buf = audio.Buffer{Samples: out, SampleRate: s.buf.SampleRate}
	s.state = Watermarked
	return nil
}

// EnsureWatermarked embeds only if the session has not been embedded yet.
func (s *Session) EnsureWatermarked(ctx context.Context) error {
	if s.state == Watermarked {
		return nil
	}
	return s.Embed(ctx)
}

// Detect scores the current buffer. It is valid in any state; before Embed
// it yields the no-watermark baseline.
func (s *Session) Detect(ctx context.Context) (float64, error) {
	score, err := s.provider.Detect(ctx, s.buf.Samples, s.buf.SampleRate, s.payload)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", s.provider.Name(), ErrDetect, err)
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, fmt.Errorf("%s: %w: score %v outside [0,1]", s.provider.Name(), ErrProviderContract, score)
	}
	return score, nil
}
