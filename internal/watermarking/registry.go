package watermarking

import (
	"encoding/json"
	"fmt"
	"sort"

	"wmbench/internal/models"
)

var registry = make(map[string]ConfigParser)

// Register makes a provider kind available to NewSet. It is called from the
// init functions of the provider packages.
func Register(kind string, p ConfigParser) {
	registry[kind] = p
}

// GetParser retrieves a provider kind from the registry.
func GetParser(kind string) (ConfigParser, error) {
	p, exists := registry[kind]
	if !exists {
		return nil, fmt.Errorf("watermark kind '%s' not found", kind)
	}
	return p, nil
}

// ListKinds returns the registered provider kinds in name order.
func ListKinds() []string {
	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Spec configures one provider instance.
type Spec struct {
	Name   string          `json:"name" yaml:"name"`
	Kind   string          `json:"kind" yaml:"kind"`
	Params json.RawMessage `json:"params,omitempty" yaml:"-"`
}

// Set is an ordered collection of provider handles. Its order fixes the
// column order of the output dataset.
type Set struct {
	list   []Watermarker
	byName map[string]Watermarker
}

// NewSet builds providers from specs in order. Names must be unique.
func NewSet(specs []Spec) (*Set, error) {
	s := &Set{byName: make(map[string]Watermarker, len(specs))}
	for _, spec := range specs {
		parser, err := GetParser(spec.Kind)
		if err != nil {
			return nil, err
		}
		w, err := parser.Parse(spec.Name, spec.Params)
		if err != nil {
			return nil, fmt.Errorf("invalid params for watermarker %s: %w", spec.Name, err)
		}
		if err := s.Add(w); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends an already constructed provider.
func (s *Set) Add(w Watermarker) error {
	if s.byName == nil {
		s.byName = make(map[string]Watermarker)
	}
	name := w.Name()
	if name == "" {
		return fmt.Errorf("watermarker has an empty name")
	}
	if _, dup := s.byName[name]; dup {
		return fmt.Errorf("duplicate watermarker '%s'", name)
	}
	s.list = append(s.list, w)
	s.byName[name] = w
	return nil
}

// Get retrieves a provider by name.
func (s *Set) Get(name string) (Watermarker, error) {
	w, exists := s.byName[name]
	if !exists {
		return nil, fmt.Errorf("watermarker '%s' not found", name)
	}
	return w, nil
}

// All returns the providers in configured order.
func (s *Set) All() []Watermarker {
	out := make([]Watermarker, len(s.list))
	copy(out, s.list)
	return out
}

func (s *Set) Len() int { return len(s.list) }

// ListSupportedAlgorithms describes the providers in configured order.
func (s *Set) ListSupportedAlgorithms() []models.Algorithm {
	algorithms := make([]models.Algorithm, 0, len(s.list))
	for _, w := range s.list {
		algorithms = append(algorithms, models.Algorithm{
			Name:        w.Name(),
			Description: w.Description(),
		})
	}
	return algorithms
}
