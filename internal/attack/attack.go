package attack

import (
	"context"
	"errors"
	"fmt"
	"os"

	"wmbench/internal/audio"
	"wmbench/internal/conversion"
	"wmbench/internal/watermarking"
)

var (
	// ErrConversion wraps a failed or corrupt conversion step.
	ErrConversion = errors.New("conversion failed")
	// ErrArtifactIO wraps reading or writing an on-disk artifact.
	ErrArtifactIO = errors.New("artifact io failed")
	// ErrUsage reports calls made out of order.
	ErrUsage = errors.New("attack usage error")
	// ErrNotRun is returned by Score before a successful Run.
	ErrNotRun = fmt.Errorf("%w: score requires a completed run", ErrUsage)
	// ErrAlreadyRan is returned by a second Run.
	ErrAlreadyRan = fmt.Errorf("%w: attack already ran", ErrUsage)
)

// Context is the mutable state of one attack. WorkingPath always names the
// latest artifact.
type Context struct {
	WorkingPath    string
	Session        *watermarking.Session
	Intermediaries []string
}

// Attack applies one Spec to one watermarked session. It owns the artifact
// at its artifact path and every file the converter hands back.
type Attack struct {
	spec      Spec
	state     Context
	artifact  string
	converter conversion.Converter

	ran  bool
	done bool
	// leaked holds failed removals of converter outputs, reported by Close.
	leaked []error
}

// New embeds the session if needed and writes the watermarked buffer to
// artifactPath for the converter to read.
func New(ctx context.Context, spec Spec, sess *watermarking.Session, converter conversion.Converter, artifactPath string, bitDepth int) (*Attack, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := sess.EnsureWatermarked(ctx); err != nil {
		return nil, err
	}
	if err := audio.WriteWAV(artifactPath, sess.Buffer(), bitDepth); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", ErrArtifactIO, artifactPath, err)
	}
	return &Attack{
		spec: spec,
		state: Context{
			WorkingPath:    artifactPath,
			Session:        sess,
			Intermediaries: spec.Intermediaries,
		},
		artifact:  artifactPath,
		converter: converter,
	}, nil
}

func (a *Attack) Spec() Spec { return a.spec }

// Context returns a snapshot of the attack state.
func (a *Attack) Context() Context { return a.state }

// Run drives the conversion chain and returns the final artifact path. Any
// failed step aborts the attack and removes what it produced.
func (a *Attack) Run(ctx context.Context) (string, error) {
	if a.ran {
		return "", ErrAlreadyRan
	}
	a.ran = true

	refs := a.spec.references(a.artifact)
	for i, ref := range refs {
		src := a.state.WorkingPath
		out, err := a.converter.Convert(ctx, src, ref)
		if err == nil && out == "" {
			err = errors.New("converter returned no path")
		}
		if err == nil {
			if _, rerr := audio.ReadWAV(out); rerr != nil {
				a.remove(out)
				err = fmt.Errorf("corrupt artifact %s: %w", out, rerr)
			}
		}
		if err != nil {
			a.remove(src)
			a.state.WorkingPath = a.artifact
			return "", fmt.Errorf("%s step %d/%d (%s -> %s): %w: %w",
				a.spec.Name, i+1, len(refs), src, ref, ErrConversion, err)
		}
		a.supersede(out)
	}

	a.done = true
	return a.state.WorkingPath, nil
}

// Score loads the final artifact into the session and detects on it.
func (a *Attack) Score(ctx context.Context) (float64, error) {
	if !a.done {
		return 0, ErrNotRun
	}
	buf, err := audio.ReadWAV(a.state.WorkingPath)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %w", ErrArtifactIO, a.state.WorkingPath, err)
	}
	if err := a.state.Session.Replace(buf); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrArtifactIO, a.state.WorkingPath, err)
	}
	return a.state.Session.Detect(ctx)
}

// Close removes the final artifact and the original artifact. It reports
// every file this attack failed to remove, including superseded ones.
func (a *Attack) Close() error {
	a.remove(a.state.WorkingPath)
	a.state.WorkingPath = a.artifact
	if err := os.Remove(a.artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.leaked = append(a.leaked, err)
	}
	if len(a.leaked) == 0 {
		return nil
	}
	err := fmt.Errorf("%w: %w", ErrArtifactIO, errors.Join(a.leaked...))
	a.leaked = nil
	return err
}

// supersede makes next the working artifact and drops the previous one.
func (a *Attack) supersede(next string) {
	prev := a.state.WorkingPath
	a.state.WorkingPath = next
	if prev != next {
		a.remove(prev)
	}
}

// remove deletes path if it is a converter output owned by this attack.
func (a *Attack) remove(path string) {
	if path == "" || path == a.artifact {
		return
	}
	for _, ref := range a.spec.Intermediaries {
		if path == ref {
			return
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.leaked = append(a.leaked, err)
	}
}
