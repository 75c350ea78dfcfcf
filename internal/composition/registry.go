// Package composition is the canonical alloy lookup. The registry is
// built once from a YAML seed file and is immutable afterwards.
package composition

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"coindex/pkg/models"
)

// ErrUnknownCompositionKey is returned when a coin record references a
// composition key the registry has never heard of. A record with an
// unresolvable composition is incomplete data; the error propagates.
var ErrUnknownCompositionKey = errors.New("unknown composition key")

type Registry struct {
	byKey map[string]models.Composition
}

// entry is the YAML shape of one alloy definition:
//
//	silver_90:
//	  name: "90% Silver"
//	  metals: {silver: 0.90, copper: 0.10}
type entry struct {
	Name    string             `yaml:"name"`
	Metals  map[string]float64 `yaml:"metals"`
	Remarks string             `yaml:"remarks"`
}

// Load builds a registry from a YAML seed file. Metal fractions of each
// alloy must sum to 1 (by weight) within a small tolerance.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compositions: %w", err)
	}
	return parse(b)
}

func parse(b []byte) (*Registry, error) {
	var raw map[string]entry
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse compositions: %w", err)
	}

	r := &Registry{byKey: make(map[string]models.Composition, len(raw))}
	for key, e := range raw {
		if len(e.Metals) == 0 {
			return nil, fmt.Errorf("composition %s: no metals", key)
		}
		var sum float64
		for metal, frac := range e.Metals {
			if frac <= 0 || frac > 1 {
				return nil, fmt.Errorf("composition %s: metal %s has fraction %v out of (0,1]", key, metal, frac)
			}
			sum += frac
		}
		if math.Abs(sum-1.0) > 0.001 {
			return nil, fmt.Errorf("composition %s: fractions sum to %v, want 1.0", key, sum)
		}
		r.byKey[key] = models.Composition{
			Key:     key,
			Name:    e.Name,
			Metals:  e.Metals,
			Remarks: e.Remarks,
		}
	}
	return r, nil
}

// Resolve looks up a normalized composition key, e.g. "silver_90".
func (r *Registry) Resolve(key string) (models.Composition, error) {
	c, ok := r.byKey[key]
	if !ok {
		return models.Composition{}, fmt.Errorf("%w: %q", ErrUnknownCompositionKey, key)
	}
	return c, nil
}

// Keys returns every registered key in sorted order, for audits.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
