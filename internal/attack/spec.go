package attack

import (
	"fmt"
	"strings"
)

// Kind is the closed set of attack variants.
type Kind int

const (
	// ChainedConversion converts through each intermediary speaker and then
	// back to the original speaker. With no intermediaries it is a single
	// round trip, the same as SelfConversion.
	ChainedConversion Kind = iota
	// SelfConversion converts straight back to the original speaker. It is
	// the chain with no intermediaries.
	SelfConversion
)

func (k Kind) String() string {
	switch k {
	case ChainedConversion:
		return "chained"
	case SelfConversion:
		return "self"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the names used in configuration files.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chained", "chained_conversion", "multiple", "multiple_conversion":
		return ChainedConversion, nil
	case "self", "self_conversion":
		return SelfConversion, nil
	default:
		return 0, fmt.Errorf("unknown attack kind '%s'", s)
	}
}

// Spec is one configured attack variant.
type Spec struct {
	Name           string
	Kind           Kind
	Intermediaries []string
}

// Self returns a SelfConversion spec.
func Self(name string) Spec {
	return Spec{Name: name, Kind: SelfConversion}
}

// Chained returns a ChainedConversion spec over the given speaker references.
func Chained(name string, intermediaries ...string) Spec {
	return Spec{Name: name, Kind: ChainedConversion, Intermediaries: intermediaries}
}

func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("attack has an empty name")
	}
	switch s.Kind {
	case SelfConversion:
		if len(s.Intermediaries) != 0 {
			return fmt.Errorf("attack %s: self conversion takes no intermediaries", s.Name)
		}
	case ChainedConversion:
		for i, ref := range s.Intermediaries {
			if ref == "" {
				return fmt.Errorf("attack %s: intermediary %d is empty", s.Name, i)
			}
		}
	default:
		return fmt.Errorf("attack %s: %v", s.Name, s.Kind)
	}
	return nil
}

// references lists the speaker reference for every conversion step: the
// intermediaries in order, then the original artifact.
func (s Spec) references(original string) []string {
	refs := make([]string, 0, len(s.Intermediaries)+1)
	refs = append(refs, s.Intermediaries...)
	return append(refs, original)
}
