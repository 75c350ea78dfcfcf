// Package audit runs the read-only consistency passes over an existing
// database: grammar violations, dangling parents, unresolved
// compositions, and ambiguous base tuples with tied scores. It reports
// and never mutates.
package audit

import (
	"context"
	"fmt"

	"coindex/internal/catalog"
	"coindex/internal/coinid"
	"coindex/internal/composition"
)

// Finding is one reported inconsistency.
type Finding struct {
	Check  string `json:"check"`
	ID     string `json:"id"`
	Detail string `json:"detail"`
}

// Report is the result of one audit run.
type Report struct {
	Findings []Finding `json:"findings"`
	Checked  int       `json:"checked"`
}

func (r *Report) add(check, id, detail string) {
	r.Findings = append(r.Findings, Finding{Check: check, ID: id, Detail: detail})
}

type Auditor struct {
	Coins        *catalog.CoinRepo
	Variants     *catalog.VariantRepo
	Compositions *composition.Registry
}

func New(coins *catalog.CoinRepo, variants *catalog.VariantRepo, comps *composition.Registry) *Auditor {
	return &Auditor{Coins: coins, Variants: variants, Compositions: comps}
}

// Run executes every check and returns the combined report.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	if err := a.checkCoinIdentifiers(ctx, report); err != nil {
		return nil, err
	}
	if err := a.checkVariants(ctx, report); err != nil {
		return nil, err
	}
	if err := a.checkAmbiguousBases(ctx, report); err != nil {
		return nil, err
	}
	if err := a.checkCompositions(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (a *Auditor) checkCoinIdentifiers(ctx context.Context, report *Report) error {
	ids, err := a.Coins.AllIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		report.Checked++
		if _, err := coinid.Parse(id); err != nil {
			report.add("coin-identifier-grammar", id, err.Error())
		}
	}
	return nil
}

func (a *Auditor) checkVariants(ctx context.Context, report *Report) error {
	variants, err := a.Variants.All(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		known[v.VariantID] = struct{}{}
	}

	for _, v := range variants {
		report.Checked++
		if _, err := coinid.Parse(v.VariantID); err != nil {
			report.add("variant-identifier-grammar", v.VariantID, err.Error())
		}
		if v.ResolutionLevel == 1 && v.ParentVariantID != "" {
			report.add("base-with-parent", v.VariantID,
				fmt.Sprintf("level-1 variant has parent %s", v.ParentVariantID))
		}
		if v.ParentVariantID != "" {
			if _, ok := known[v.ParentVariantID]; !ok {
				// tolerated at resolution time, but worth surfacing
				report.add("dangling-parent", v.VariantID,
					fmt.Sprintf("parent %s does not exist", v.ParentVariantID))
			}
		}
		if v.ResolutionLevel > 1 && v.ParentVariantID == "" {
			report.add("orphan-variant", v.VariantID,
				fmt.Sprintf("level-%d variant has no parent; resolves to itself", v.ResolutionLevel))
		}
	}
	return nil
}

// checkAmbiguousBases flags tuples where more than one level-1 variant
// shares the top priority score, meaning the tie-break falls through to
// identifier order.
func (a *Auditor) checkAmbiguousBases(ctx context.Context, report *Report) error {
	rows, err := a.Variants.DB.QueryContext(ctx, `
		SELECT base_type, year, mint_mark, COUNT(*), MAX(priority_score)
		FROM variants
		WHERE resolution_level = 1
		GROUP BY base_type, year, mint_mark
		HAVING COUNT(*) > 1
	`)
	if err != nil {
		return fmt.Errorf("group base candidates: %w", err)
	}
	defer rows.Close()

	type tuple struct {
		baseType, year, mint string
		count, top           int
	}
	var tuples []tuple
	for rows.Next() {
		var t tuple
		if err := rows.Scan(&t.baseType, &t.year, &t.mint, &t.count, &t.top); err != nil {
			return fmt.Errorf("scan tuple: %w", err)
		}
		tuples = append(tuples, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows err: %w", err)
	}

	for _, t := range tuples {
		var tied int
		err := a.Variants.DB.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM variants
			WHERE resolution_level = 1
			  AND base_type = ? AND year = ? AND mint_mark = ?
			  AND priority_score = ?
		`, t.baseType, t.year, t.mint, t.top).Scan(&tied)
		if err != nil {
			return fmt.Errorf("count ties: %w", err)
		}
		if tied > 1 {
			report.add("tied-base-priority",
				fmt.Sprintf("(%s,%s,%s)", t.baseType, t.year, t.mint),
				fmt.Sprintf("%d level-1 candidates tied at score %d", tied, t.top))
		}
	}
	return nil
}

func (a *Auditor) checkCompositions(ctx context.Context, report *Report) error {
	rows, err := a.Coins.DB.QueryContext(ctx, `
		SELECT coin_id, composition_key FROM coins
		WHERE composition_key IS NOT NULL AND composition_key != ''
	`)
	if err != nil {
		return fmt.Errorf("list composition refs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var coinID, key string
		if err := rows.Scan(&coinID, &key); err != nil {
			return fmt.Errorf("scan composition ref: %w", err)
		}
		report.Checked++
		if _, err := a.Compositions.Resolve(key); err != nil {
			report.add("unknown-composition", coinID, fmt.Sprintf("composition key %q not in registry", key))
		}
	}
	return rows.Err()
}
