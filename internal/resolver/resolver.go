// Package resolver walks variant parent chains back to their canonical
// base variant and breaks ties among ambiguous base candidates.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"coindex/internal/catalog"
	"coindex/pkg/models"
)

var (
	// ErrCyclicVariantChain is returned when a parent chain loops back
	// on itself instead of terminating at a base.
	ErrCyclicVariantChain = errors.New("cyclic variant chain")

	// ErrNoBaseVariant is returned by ResolveAmbiguousBase when a tuple
	// has no level-1 candidate at all. Callers treat this as incomplete
	// data: skip the coin, keep the batch going.
	ErrNoBaseVariant = errors.New("no base variant")
)

// Catalog is the subset of the variant repo the resolver needs.
type Catalog interface {
	GetByID(ctx context.Context, variantID string) (*models.Variant, error)
	BaseCandidates(ctx context.Context, baseType, year, mint string) ([]models.Variant, error)
}

type Resolver struct {
	Catalog Catalog
}

func New(c Catalog) *Resolver {
	return &Resolver{Catalog: c}
}

// ResolveToBase follows the parent chain of variantID to its terminal
// variant and returns that identifier.
//
// This path is deliberately lenient: a variant with no parent resolves
// to itself (it is a base or an unresolved orphan), and a parent
// reference that fails to look up also resolves to the variant itself,
// so a display caller always gets something usable back. The only hard
// failures are an unknown starting id and a looping chain.
func (r *Resolver) ResolveToBase(ctx context.Context, variantID string) (string, error) {
	v, err := r.Catalog.GetByID(ctx, variantID)
	if err != nil {
		return "", err
	}

	seen := map[string]struct{}{v.VariantID: {}}
	for v.ParentVariantID != "" {
		parent, err := r.Catalog.GetByID(ctx, v.ParentVariantID)
		if err != nil {
			if errors.Is(err, catalog.ErrUnknownVariant) {
				// dangling parent reference: never produce a dangling
				// resolution, fall back to the variant itself
				return v.VariantID, nil
			}
			return "", err
		}
		if _, ok := seen[parent.VariantID]; ok {
			return "", fmt.Errorf("%w: revisited %s starting from %s", ErrCyclicVariantChain, parent.VariantID, variantID)
		}
		seen[parent.VariantID] = struct{}{}
		v = parent
	}
	return v.VariantID, nil
}

// ResolveAmbiguousBase picks the default base among multiple level-1
// candidates for a (base_type, year, mint) tuple: highest priority
// score wins, ties broken by lexicographically smallest variant id so
// repeated runs are reproducible.
//
// Unlike ResolveToBase this path is strict: no candidate means an error,
// never a guess.
func (r *Resolver) ResolveAmbiguousBase(ctx context.Context, baseType, year, mint string) (string, error) {
	candidates, err := r.Catalog.BaseCandidates(ctx, baseType, year, mint)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: (%s, %s, %s)", ErrNoBaseVariant, baseType, year, mint)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.PriorityScore > best.PriorityScore ||
			(c.PriorityScore == best.PriorityScore && c.VariantID < best.VariantID) {
			best = c
		}
	}
	return best.VariantID, nil
}
