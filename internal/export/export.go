// Package export produces the JSON views consumed by the static front
// end. Callers get fully resolved variant lists; parent-chain traversal
// never leaks past this package.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"coindex/internal/catalog"
	"coindex/internal/coinid"
	"coindex/internal/composition"
	"coindex/internal/resolver"
	"coindex/pkg/models"
)

// ResolvedVariant is one catalog variant with its base already resolved.
type ResolvedVariant struct {
	models.Variant
	BaseVariantID string `json:"base_variant_id"`
}

// CoinView is the exported shape of one coin record: attributes,
// resolved composition, and the ordered variant list.
type CoinView struct {
	models.CoinRecord
	Composition      *models.Composition `json:"composition,omitempty"`
	DefaultVariantID string              `json:"default_variant_id,omitempty"`
	Variants         []ResolvedVariant   `json:"variants"`
}

// Stats summarizes one export run.
type Stats struct {
	Coins   int
	Skipped int
	Files   int
}

type Service struct {
	Coins        *catalog.CoinRepo
	Variants     *catalog.VariantRepo
	Resolver     *resolver.Resolver
	Compositions *composition.Registry
}

func NewService(coins *catalog.CoinRepo, variants *catalog.VariantRepo, res *resolver.Resolver, comps *composition.Registry) *Service {
	return &Service{Coins: coins, Variants: variants, Resolver: res, Compositions: comps}
}

// VariantsForType enumerates every variant of a coin type, ordered from
// most general to most specific, with each parent chain pre-resolved.
func (s *Service) VariantsForType(ctx context.Context, baseType string) ([]ResolvedVariant, error) {
	rows, err := s.Variants.DB.QueryContext(ctx, `
		SELECT variant_id FROM variants WHERE base_type = ?
		ORDER BY year, mint_mark, resolution_level, sort_order, variant_id
	`, baseType)
	if err != nil {
		return nil, fmt.Errorf("variants for type %s: %w", baseType, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan variant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}

	out := make([]ResolvedVariant, 0, len(ids))
	for _, id := range ids {
		rv, err := s.resolveOne(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *rv)
	}
	return out, nil
}

// CoinView assembles the export view of one coin. A missing composition
// key or an unresolvable default base is surfaced, not papered over.
func (s *Service) CoinView(ctx context.Context, c models.CoinRecord) (*CoinView, error) {
	view := &CoinView{CoinRecord: c, Variants: []ResolvedVariant{}}

	if c.CompositionKey != "" {
		comp, err := s.Compositions.Resolve(c.CompositionKey)
		if err != nil {
			return nil, fmt.Errorf("coin %s: %w", c.CoinID, err)
		}
		view.Composition = &comp
	}

	id, err := coinid.Parse(c.CoinID)
	if err != nil {
		return nil, err
	}

	variants, err := s.Variants.VariantsFor(ctx, id.Type, c.Year, c.MintMark)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		rv, err := s.resolveOne(ctx, v.VariantID)
		if err != nil {
			return nil, err
		}
		view.Variants = append(view.Variants, *rv)
	}

	if len(variants) > 0 {
		def, err := s.Resolver.ResolveAmbiguousBase(ctx, id.Type, c.Year, c.MintMark)
		if err != nil {
			return nil, fmt.Errorf("coin %s: %w", c.CoinID, err)
		}
		view.DefaultVariantID = def
	}

	return view, nil
}

// WriteAll writes one JSON file per denomination plus a universal
// all_coins.json under outDir. Per-coin resolution failures are logged
// and the coin skipped; the run keeps going. Write failures abort.
func (s *Service) WriteAll(ctx context.Context, outDir string) (Stats, error) {
	var stats Stats

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return stats, fmt.Errorf("mkdir %s: %w", outDir, err)
	}

	denoms, err := s.Coins.Denominations(ctx)
	if err != nil {
		return stats, err
	}

	var universal []CoinView
	for _, denom := range denoms {
		coins, err := s.Coins.ByDenomination(ctx, denom)
		if err != nil {
			return stats, err
		}

		views := make([]CoinView, 0, len(coins))
		for _, c := range coins {
			view, err := s.CoinView(ctx, c)
			if err != nil {
				if recoverable(err) {
					log.Printf("export: skipping %s: %v", c.CoinID, err)
					stats.Skipped++
					continue
				}
				return stats, err
			}
			views = append(views, *view)
			stats.Coins++
		}

		if err := writeJSON(filepath.Join(outDir, denomFileName(denom)), views); err != nil {
			return stats, err
		}
		stats.Files++
		universal = append(universal, views...)
	}

	if err := writeJSON(filepath.Join(outDir, "all_coins.json"), universal); err != nil {
		return stats, err
	}
	stats.Files++
	return stats, nil
}

func (s *Service) resolveOne(ctx context.Context, variantID string) (*ResolvedVariant, error) {
	v, err := s.Variants.GetByID(ctx, variantID)
	if err != nil {
		return nil, err
	}
	base, err := s.Resolver.ResolveToBase(ctx, variantID)
	if err != nil {
		return nil, err
	}
	return &ResolvedVariant{Variant: *v, BaseVariantID: base}, nil
}

// recoverable errors mean "data incomplete for this coin": skip it and
// keep the batch going. Anything else aborts the run.
func recoverable(err error) bool {
	return errors.Is(err, resolver.ErrNoBaseVariant) ||
		errors.Is(err, resolver.ErrCyclicVariantChain) ||
		errors.Is(err, composition.ErrUnknownCompositionKey) ||
		errors.Is(err, coinid.ErrMalformedIdentifier)
}

// writeJSON writes via a temp file and rename so a crashed export never
// leaves a half-written view behind.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	b = append(b, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// denomFileName slugs a denomination into a flat file name. Path
// separators must not survive, or the write lands outside outDir.
func denomFileName(denom string) string {
	slug := strings.ToLower(strings.TrimSpace(denom))
	slug = strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(slug)
	if slug == "" {
		slug = "unknown"
	}
	return slug + ".json"
}
