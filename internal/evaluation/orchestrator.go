package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"wmbench/internal/attack"
	"wmbench/internal/conversion"
	"wmbench/internal/corpus"
	"wmbench/internal/dataset"
	"wmbench/internal/watermarking"
)

// Phase names the part of a row a cell belongs to.
type Phase string

const (
	PhaseBaseline     Phase = "baseline"
	PhaseInterference Phase = "interference"
	PhaseAttack       Phase = "attack"
)

// CellError records why one cell has no score.
type CellError struct {
	Clip     string
	Phase    Phase
	Provider string
	Attack   string
	Err      error
}

func (e *CellError) Error() string {
	if e.Attack != "" {
		return fmt.Sprintf("%s: %s %s/%s: %v", e.Clip, e.Phase, e.Provider, e.Attack, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Clip, e.Phase, e.Provider, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// Options wires an Orchestrator. Provider and converter handles are built
// by the caller and outlive the orchestrator.
type Options struct {
	Providers    []watermarking.Watermarker
	Attacks      []attack.Spec
	Converter    conversion.Converter
	ArtifactPath string
	BitDepth     int
	Rand         *rand.Rand
	Log          logrus.FieldLogger
}

// Orchestrator builds one EvaluationRow per clip.
type Orchestrator struct {
	providers []watermarking.Watermarker
	attacks   []attack.Spec
	converter conversion.Converter
	artifact  string
	bitDepth  int
	rng       *rand.Rand
	log       logrus.FieldLogger
}

func New(opts Options) (*Orchestrator, error) {
	if len(opts.Providers) == 0 {
		return nil, errors.New("at least one watermark provider is required")
	}
	seen := make(map[string]bool)
	for _, p := range opts.Providers {
		if seen[p.Name()] {
			return nil, fmt.Errorf("duplicate watermark provider '%s'", p.Name())
		}
		seen[p.Name()] = true
	}
	seen = make(map[string]bool)
	for _, a := range opts.Attacks {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("duplicate attack '%s'", a.Name)
		}
		seen[a.Name] = true
	}
	if len(opts.Attacks) > 0 {
		if opts.Converter == nil {
			return nil, errors.New("attacks need a conversion provider")
		}
		if opts.ArtifactPath == "" {
			return nil, errors.New("attacks need an artifact path")
		}
	}
	if opts.Rand == nil {
		return nil, errors.New("a random source is required")
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Orchestrator{
		providers: opts.Providers,
		attacks:   opts.Attacks,
		converter: opts.Converter,
		artifact:  opts.ArtifactPath,
		bitDepth:  opts.BitDepth,
		rng:       opts.Rand,
		log:       opts.Log,
	}, nil
}

func interferenceField(provider string) string { return "combined_" + provider }

func attackField(attackName, provider string) string { return attackName + "_" + provider }

// Header returns the fixed column order: identity, baseline per provider,
// interference per provider, then attacks provider-major, attack-minor.
func (o *Orchestrator) Header() []string {
	h := append([]string(nil), dataset.IdentityFields...)
	for _, p := range o.providers {
		h = append(h, p.Name())
	}
	for _, p := range o.providers {
		h = append(h, interferenceField(p.Name()))
	}
	for _, p := range o.providers {
		for _, a := range o.attacks {
			h = append(h, attackField(a.Name, p.Name()))
		}
	}
	return h
}

// Evaluate runs the three phases for clip. Failures are recorded in their
// cells and never stop the remaining cells.
func (o *Orchestrator) Evaluate(ctx context.Context, clip corpus.Clip) dataset.Row {
	row := dataset.Row{
		Path:     clip.Path,
		Duration: clip.Duration,
		Cells:    make([]dataset.Cell, 0, len(o.providers)*(2+len(o.attacks))),
	}

	o.log.WithField("clip", clip.Path).Info("watermark detection baseline test")
	for _, p := range o.providers {
		score, err := o.baseline(ctx, clip, p)
		row.Cells = append(row.Cells, o.cell(clip, PhaseBaseline, p.Name(), "", p.Name(), score, err))
	}

	o.log.WithField("clip", clip.Path).Info("watermark interference detection test")
	for i, p := range o.providers {
		score, err := o.interference(ctx, clip, i)
		row.Cells = append(row.Cells, o.cell(clip, PhaseInterference, p.Name(), "", interferenceField(p.Name()), score, err))
	}

	o.log.WithField("clip", clip.Path).Info("running attacks")
	for _, p := range o.providers {
		for _, a := range o.attacks {
			score, err := o.attack(ctx, clip, p, a)
			row.Cells = append(row.Cells, o.cell(clip, PhaseAttack, p.Name(), a.Name, attackField(a.Name, p.Name()), score, err))
		}
	}
	return row
}

func (o *Orchestrator) cell(clip corpus.Clip, phase Phase, provider, attackName, field string, score float64, err error) dataset.Cell {
	if err == nil {
		return dataset.Cell{Field: field, Score: score}
	}
	cerr := &CellError{Clip: clip.Path, Phase: phase, Provider: provider, Attack: attackName, Err: err}
	o.log.WithFields(logrus.Fields{
		"clip":     clip.Path,
		"phase":    phase,
		"provider": provider,
		"attack":   attackName,
	}).WithError(err).Warn("cell failed, recording missing value")
	return dataset.Cell{Field: field, Err: cerr}
}

// baseline embeds p on a fresh copy of the clip and detects it.
func (o *Orchestrator) baseline(ctx context.Context, clip corpus.Clip, p watermarking.Watermarker) (float64, error) {
	sess, err := watermarking.NewSession(clip.Buffer.Clone(), p, o.rng)
	if err != nil {
		return 0, err
	}
	if err := sess.Embed(ctx); err != nil {
		return 0, err
	}
	return sess.Detect(ctx)
}

// interference embeds provider first, stacks every other provider on the
// same buffer in order, and re-detects first's mark.
func (o *Orchestrator) interference(ctx context.Context, clip corpus.Clip, first int) (float64, error) {
	sess, err := watermarking.NewSession(clip.Buffer.Clone(), o.providers[first], o.rng)
	if err != nil {
		return 0, err
	}
	if err := sess.Embed(ctx); err != nil {
		return 0, err
	}

	combined := sess.Buffer()
	for i, other := range o.providers {
		if i == first {
			continue
		}
		layer, err := watermarking.NewSession(combined, other, o.rng)
		if err != nil {
			return 0, err
		}
		if err := layer.Embed(ctx); err != nil {
			return 0, fmt.Errorf("interfering with %s: %w", other.Name(), err)
		}
		combined = layer.Buffer()
	}

	if err := sess.Replace(combined); err != nil {
		return 0, err
	}
	return sess.Detect(ctx)
}

// attack runs spec against a fresh session of p and scores what survives.
func (o *Orchestrator) attack(ctx context.Context, clip corpus.Clip, p watermarking.Watermarker, spec attack.Spec) (float64, error) {
	sess, err := watermarking.NewSession(clip.Buffer.Clone(), p, o.rng)
	if err != nil {
		return 0, err
	}
	a, err := attack.New(ctx, spec, sess, o.converter, o.artifact, o.bitDepth)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := a.Close(); err != nil {
			o.log.WithField("attack", spec.Name).WithError(err).Warn("failed to remove attack artifacts")
		}
	}()

	if _, err := a.Run(ctx); err != nil {
		return 0, err
	}
	return a.Score(ctx)
}
