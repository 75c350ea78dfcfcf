// Package catalog is the storage layer for coin records and their
// strike/variety variants.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"coindex/internal/coinid"
	"coindex/pkg/models"
)

var (
	// ErrDuplicateVariant is returned by strict-mode Add when the
	// variant id is already registered.
	ErrDuplicateVariant = errors.New("duplicate variant")

	// ErrUnknownVariant is returned when a lookup misses.
	ErrUnknownVariant = errors.New("unknown variant")
)

// WriteMode controls conflict behavior on Add. Migration scripts use
// Upsert so re-runs are idempotent; interactive corrections use Strict
// to surface accidental double entry.
type WriteMode int

const (
	Upsert WriteMode = iota
	Strict
)

type VariantRepo struct {
	DB   *sql.DB
	Mode WriteMode
}

func NewVariantRepo(db *sql.DB) *VariantRepo {
	return &VariantRepo{DB: db, Mode: Upsert}
}

// Add registers a variant. The identifier must pass the grammar, and a
// resolution level of 1 must not carry a parent (a level-1 variant IS a
// base). Levels above 1 without a parent are allowed; such variants
// resolve to themselves downstream.
func (r *VariantRepo) Add(ctx context.Context, v models.Variant) error {
	if _, err := coinid.Parse(v.VariantID); err != nil {
		return err
	}
	if v.ParentVariantID != "" {
		if _, err := coinid.Parse(v.ParentVariantID); err != nil {
			return fmt.Errorf("parent of %s: %w", v.VariantID, err)
		}
	}
	if v.ResolutionLevel == models.LevelBase && v.ParentVariantID != "" {
		return fmt.Errorf("variant %s: level-1 variant must not have a parent", v.VariantID)
	}
	if v.PriorityScore < 0 || v.PriorityScore > 100 {
		return fmt.Errorf("variant %s: priority score %d out of 0-100", v.VariantID, v.PriorityScore)
	}

	if r.Mode == Strict {
		var exists int
		err := r.DB.QueryRowContext(ctx,
			`SELECT 1 FROM variants WHERE variant_id = ?`, v.VariantID,
		).Scan(&exists)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrDuplicateVariant, v.VariantID)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check duplicate: %w", err)
		}
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO variants (
			variant_id, base_type, year, mint_mark, variant_type,
			variant_description, sort_order, is_major_variant,
			resolution_level, parent_variant_id, priority_score, notes
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(variant_id) DO UPDATE SET
			base_type = excluded.base_type,
			year = excluded.year,
			mint_mark = excluded.mint_mark,
			variant_type = excluded.variant_type,
			variant_description = excluded.variant_description,
			sort_order = excluded.sort_order,
			is_major_variant = excluded.is_major_variant,
			resolution_level = excluded.resolution_level,
			parent_variant_id = excluded.parent_variant_id,
			priority_score = excluded.priority_score,
			notes = excluded.notes
	`,
		v.VariantID, v.BaseType, v.Year, v.MintMark, nullStr(v.VariantType),
		nullStr(v.VariantDescription), v.SortOrder, v.IsMajorVariant,
		v.ResolutionLevel, nullStr(v.ParentVariantID), v.PriorityScore,
		nullStr(v.Notes),
	)
	if err != nil {
		return fmt.Errorf("upsert variant %s: %w", v.VariantID, err)
	}
	return nil
}

// GetByID fetches one variant, failing with ErrUnknownVariant on a miss.
func (r *VariantRepo) GetByID(ctx context.Context, variantID string) (*models.Variant, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT variant_id, base_type, year, mint_mark, variant_type,
		       variant_description, sort_order, is_major_variant,
		       resolution_level, parent_variant_id, priority_score, notes
		FROM variants
		WHERE variant_id = ?
	`, variantID)

	v, err := scanVariant(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, variantID)
		}
		return nil, fmt.Errorf("scan variant %s: %w", variantID, err)
	}
	return v, nil
}

// VariantsFor lists every variant of a (base_type, year, mint)
// combination ordered from most general to most specific. Each call is
// a fresh query; no cursor state is retained.
func (r *VariantRepo) VariantsFor(ctx context.Context, baseType, year, mint string) ([]models.Variant, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT variant_id, base_type, year, mint_mark, variant_type,
		       variant_description, sort_order, is_major_variant,
		       resolution_level, parent_variant_id, priority_score, notes
		FROM variants
		WHERE base_type = ? AND year = ? AND mint_mark = ?
		ORDER BY resolution_level ASC, sort_order ASC, variant_id ASC
	`, baseType, year, mint)
	if err != nil {
		return nil, fmt.Errorf("variants for (%s,%s,%s): %w", baseType, year, mint, err)
	}
	return collectVariants(rows)
}

// BaseCandidates lists the level-1 variants registered for a tuple.
// Zero candidates and multiple candidates are both legal states here;
// ambiguity is the resolver's job, not the catalog's.
func (r *VariantRepo) BaseCandidates(ctx context.Context, baseType, year, mint string) ([]models.Variant, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT variant_id, base_type, year, mint_mark, variant_type,
		       variant_description, sort_order, is_major_variant,
		       resolution_level, parent_variant_id, priority_score, notes
		FROM variants
		WHERE base_type = ? AND year = ? AND mint_mark = ? AND resolution_level = ?
		ORDER BY priority_score DESC, variant_id ASC
	`, baseType, year, mint, models.LevelBase)
	if err != nil {
		return nil, fmt.Errorf("base candidates for (%s,%s,%s): %w", baseType, year, mint, err)
	}
	return collectVariants(rows)
}

// Types lists the distinct base type codes in the catalog, for
// per-type export iteration.
func (r *VariantRepo) Types(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT base_type FROM variants ORDER BY base_type`)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan type: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// All streams the whole variant table ordered by id, for audits.
func (r *VariantRepo) All(ctx context.Context) ([]models.Variant, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT variant_id, base_type, year, mint_mark, variant_type,
		       variant_description, sort_order, is_major_variant,
		       resolution_level, parent_variant_id, priority_score, notes
		FROM variants
		ORDER BY variant_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	return collectVariants(rows)
}

func collectVariants(rows *sql.Rows) ([]models.Variant, error) {
	defer rows.Close()

	var out []models.Variant
	for rows.Next() {
		v, err := scanVariant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func scanVariant(scan func(...any) error) (*models.Variant, error) {
	var (
		v      models.Variant
		vtype  sql.NullString
		desc   sql.NullString
		parent sql.NullString
		notes  sql.NullString
	)
	if err := scan(
		&v.VariantID, &v.BaseType, &v.Year, &v.MintMark, &vtype,
		&desc, &v.SortOrder, &v.IsMajorVariant, &v.ResolutionLevel,
		&parent, &v.PriorityScore, &notes,
	); err != nil {
		return nil, err
	}
	v.VariantType = vtype.String
	v.VariantDescription = desc.String
	v.ParentVariantID = parent.String
	v.Notes = notes.String
	return &v, nil
}
