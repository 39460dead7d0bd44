package conversion

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Converter turns source audio into the voice of the speaker in reference
// and returns the path of the converted file. Inputs and outputs are wav.
type Converter interface {
	Name() string
	Convert(ctx context.Context, source, reference string) (string, error)
}

// Spec selects and configures a Converter.
type Spec struct {
	Kind   string          `json:"kind" yaml:"kind"`
	Params json.RawMessage `json:"params,omitempty" yaml:"-"`
}

type factory func(params json.RawMessage) (Converter, error)

var factories = map[string]factory{
	IdentityKind: func(json.RawMessage) (Converter, error) { return Identity{}, nil },
	CommandKind:  parseCommand,
	RemoteKind:   parseRemote,
}

// New builds the Converter a Spec describes.
func New(spec Spec) (Converter, error) {
	f, ok := factories[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("conversion kind '%s' not found", spec.Kind)
	}
	c, err := f(spec.Params)
	if err != nil {
		return nil, fmt.Errorf("invalid params for conversion %s: %w", spec.Kind, err)
	}
	return c, nil
}

// Kinds lists the supported converter kinds.
func Kinds() []string {
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

const IdentityKind = "identity"

// Identity returns its input unchanged. It is useful for dry runs that
// exercise the artifact pipeline without a conversion model.
type Identity struct{}

func (Identity) Name() string { return IdentityKind }

func (Identity) Convert(_ context.Context, source, _ string) (string, error) {
	return source, nil
}
