package migration

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"coindex/internal/coinid"
)

// RenameMap is a one-off TYPE-code correction table: old series code to
// corrected series code. It is versioned seed data loaded at migration
// time, never runtime state.
type RenameMap map[string]string

// LoadRenameMap reads a YAML file of the form `OLDCODE: NEWCODE`.
func LoadRenameMap(path string) (RenameMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rename map: %w", err)
	}
	var m RenameMap
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse rename map: %w", err)
	}
	for oldCode, newCode := range m {
		if !coinid.Validate("US-" + newCode + "-1900-P") {
			return nil, fmt.Errorf("rename %s -> %s: new code is not a valid TYPE segment", oldCode, newCode)
		}
	}
	return m, nil
}

// ApplyRenames rewrites every coin and variant identifier whose TYPE
// segment appears in the map. The whole pass runs in one transaction:
// either every identifier is corrected or none are. Old rows are merged
// into the corrected identifier (insert-or-replace, then delete), which
// is the only path that ever deletes a coin record.
func ApplyRenames(ctx context.Context, db *sql.DB, renames RenameMap) (changed int, err error) {
	if len(renames) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	n, err := renameCoins(ctx, tx, renames)
	if err != nil {
		return 0, err
	}
	changed += n

	n, err = renameVariants(ctx, tx, renames)
	if err != nil {
		return 0, err
	}
	changed += n

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit renames: %w", err)
	}
	return changed, nil
}

func renameCoins(ctx context.Context, tx *sql.Tx, renames RenameMap) (int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT coin_id FROM coins`)
	if err != nil {
		return 0, fmt.Errorf("list coins: %w", err)
	}
	pairs, err := collectRenames(rows, renames)
	if err != nil {
		return 0, err
	}

	for _, p := range pairs {
		// merge the row under its corrected identifier, then drop the old one
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO coins
			SELECT ?, denomination, series_name, year, mint_mark, composition_key,
			       weight_grams, diameter_mm, business_strike, proof_strike,
			       rarity, description, source_citation
			FROM coins WHERE coin_id = ?
		`, p.newID, p.oldID); err != nil {
			return 0, fmt.Errorf("merge coin %s -> %s: %w", p.oldID, p.newID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM coins WHERE coin_id = ?`, p.oldID); err != nil {
			return 0, fmt.Errorf("drop old coin %s: %w", p.oldID, err)
		}
	}
	return len(pairs), nil
}

func renameVariants(ctx context.Context, tx *sql.Tx, renames RenameMap) (int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT variant_id FROM variants`)
	if err != nil {
		return 0, fmt.Errorf("list variants: %w", err)
	}
	pairs, err := collectRenames(rows, renames)
	if err != nil {
		return 0, err
	}

	for _, p := range pairs {
		newType := renames[p.oldType]
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO variants
			SELECT ?, ?, year, mint_mark, variant_type, variant_description,
			       sort_order, is_major_variant, resolution_level,
			       parent_variant_id, priority_score, notes
			FROM variants WHERE variant_id = ?
		`, p.newID, newType, p.oldID); err != nil {
			return 0, fmt.Errorf("merge variant %s -> %s: %w", p.oldID, p.newID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM variants WHERE variant_id = ?`, p.oldID); err != nil {
			return 0, fmt.Errorf("drop old variant %s: %w", p.oldID, err)
		}
	}

	// parent references are weak, but correct the ones we can
	for _, p := range pairs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE variants SET parent_variant_id = ? WHERE parent_variant_id = ?`,
			p.newID, p.oldID,
		); err != nil {
			return 0, fmt.Errorf("repoint parents %s -> %s: %w", p.oldID, p.newID, err)
		}
	}
	return len(pairs), nil
}

type renamePair struct {
	oldID   string
	newID   string
	oldType string
}

func collectRenames(rows *sql.Rows, renames RenameMap) ([]renamePair, error) {
	defer rows.Close()

	var pairs []renamePair
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		id, err := coinid.Parse(raw)
		if err != nil {
			// malformed legacy ids are the audit tool's problem, skip here
			continue
		}
		newType, ok := renames[id.Type]
		if !ok {
			continue
		}
		oldType := id.Type
		id.Type = newType
		pairs = append(pairs, renamePair{oldID: raw, newID: id.String(), oldType: oldType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return pairs, nil
}
