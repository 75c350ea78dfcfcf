package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"coindex/internal/coinid"
	"coindex/internal/migration"
	"coindex/pkg/database"
	"coindex/pkg/models"
)

func main() {
	var (
		coinsIn    = flag.String("coins", "data/coins.csv", "input CSV path for coin records")
		variantsIn = flag.String("variants", "data/variants.csv", "input CSV path for variants")
		skipBackup = flag.Bool("no-backup", false, "skip the pre-import backup (tests only)")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := database.DefaultConfig()

	if !*skipBackup {
		backupPath, err := database.Backup(cfg)
		if err != nil {
			log.Fatalf("backup failed: %v", err)
		}
		if backupPath != "" {
			log.Printf("backed up database to %s", backupPath)
		}
	}

	db := database.MustOpen(cfg)
	defer db.Close()

	if err := migration.Apply(ctx, db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	runID := uuid.NewString()
	started := time.Now().UTC()

	// one transaction for the whole import: either the full file lands
	// or nothing does
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()

	coinStats, err := importCoins(ctx, tx, *coinsIn)
	if err != nil {
		log.Fatalf("import coins failed: %v", err)
	}
	variantStats, err := importVariants(ctx, tx, *variantsIn)
	if err != nil {
		log.Fatalf("import variants failed: %v", err)
	}

	total := coinStats.merge(variantStats)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO import_runs (id, tool, started_at, finished_at, rows_seen, rows_upserted, rows_skipped)
		VALUES (?, 'import-csv', ?, ?, ?, ?, ?)
	`, runID, started, time.Now().UTC(), total.seen, total.upserted, total.skipped); err != nil {
		log.Fatalf("record import run: %v", err)
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("commit failed: %v", err)
	}

	log.Printf("✅ run %s: %d coins upserted (%d skipped), %d variants upserted (%d skipped)",
		runID, coinStats.upserted, coinStats.skipped, variantStats.upserted, variantStats.skipped)
}

type stats struct {
	seen     int
	upserted int
	skipped  int
}

func (s stats) merge(o stats) stats {
	return stats{seen: s.seen + o.seen, upserted: s.upserted + o.upserted, skipped: s.skipped + o.skipped}
}

func importCoins(ctx context.Context, tx *sql.Tx, path string) (stats, error) {
	var st stats

	f, err := os.Open(path)
	if err != nil {
		return st, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return st, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO coins (
			coin_id, denomination, series_name, year, mint_mark,
			composition_key, weight_grams, diameter_mm,
			business_strike, proof_strike, rarity, description, source_citation
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(coin_id) DO UPDATE SET
			denomination = excluded.denomination,
			series_name = excluded.series_name,
			year = excluded.year,
			mint_mark = excluded.mint_mark,
			composition_key = excluded.composition_key,
			weight_grams = excluded.weight_grams,
			diameter_mm = excluded.diameter_mm,
			business_strike = excluded.business_strike,
			proof_strike = excluded.proof_strike,
			rarity = excluded.rarity,
			description = excluded.description,
			source_citation = excluded.source_citation
	`)
	if err != nil {
		return st, err
	}
	defer stmt.Close()

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return st, err
		}
		if len(row) == 0 {
			continue
		}
		st.seen++

		rawID := valueAt(header, row, "coin_id")
		denomination := valueAt(header, row, "denomination")
		if rawID == "" || denomination == "" {
			st.skipped++
			continue
		}

		// malformed identifiers never reach the table; log and move on
		id, err := coinid.Parse(rawID)
		if err != nil {
			log.Printf("skipping row %d: %v", st.seen, err)
			st.skipped++
			continue
		}

		rarity := valueAt(header, row, "rarity")
		if rarity != "" && !models.ValidRarity(rarity) {
			log.Printf("skipping row %d: unknown rarity %q for %s", st.seen, rarity, rawID)
			st.skipped++
			continue
		}

		weight, err := parseNullFloat(valueAt(header, row, "weight_grams"))
		if err != nil {
			return st, fmt.Errorf("parse weight_grams for %s: %w", rawID, err)
		}
		diameter, err := parseNullFloat(valueAt(header, row, "diameter_mm"))
		if err != nil {
			return st, fmt.Errorf("parse diameter_mm for %s: %w", rawID, err)
		}
		business, err := parseNullInt(valueAt(header, row, "business_strike"))
		if err != nil {
			return st, fmt.Errorf("parse business_strike for %s: %w", rawID, err)
		}
		proof, err := parseNullInt(valueAt(header, row, "proof_strike"))
		if err != nil {
			return st, fmt.Errorf("parse proof_strike for %s: %w", rawID, err)
		}

		if _, err := stmt.ExecContext(
			ctx,
			id.String(),
			denomination,
			nullString(valueAt(header, row, "series_name")),
			id.Year,
			id.Mint,
			nullString(valueAt(header, row, "composition_key")),
			weight,
			diameter,
			business,
			proof,
			nullString(rarity),
			nullString(valueAt(header, row, "description")),
			nullString(valueAt(header, row, "source_citation")),
		); err != nil {
			return st, err
		}
		st.upserted++
	}

	return st, nil
}

func importVariants(ctx context.Context, tx *sql.Tx, path string) (stats, error) {
	var st stats

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// variants file is optional for coin-only drops
			return st, nil
		}
		return st, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return st, err
	}

	stmt, err := tx.PrepareContext(ctx, `
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
	`)
	if err != nil {
		return st, err
	}
	defer stmt.Close()

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return st, err
		}
		if len(row) == 0 {
			continue
		}
		st.seen++

		rawID := valueAt(header, row, "variant_id")
		if rawID == "" {
			st.skipped++
			continue
		}

		id, err := coinid.Parse(rawID)
		if err != nil {
			log.Printf("skipping row %d: %v", st.seen, err)
			st.skipped++
			continue
		}

		parent := valueAt(header, row, "parent_variant_id")
		if parent != "" && !coinid.Validate(parent) {
			log.Printf("skipping row %d: parent %q fails grammar", st.seen, parent)
			st.skipped++
			continue
		}

		level, err := parseIntDefault(valueAt(header, row, "resolution_level"), 1)
		if err != nil {
			return st, fmt.Errorf("parse resolution_level for %s: %w", rawID, err)
		}
		sortOrder, err := parseIntDefault(valueAt(header, row, "sort_order"), 0)
		if err != nil {
			return st, fmt.Errorf("parse sort_order for %s: %w", rawID, err)
		}
		score, err := parseIntDefault(valueAt(header, row, "priority_score"), 0)
		if err != nil {
			return st, fmt.Errorf("parse priority_score for %s: %w", rawID, err)
		}
		if score < 0 || score > 100 {
			return st, fmt.Errorf("priority_score for %s out of 0-100: %d", rawID, score)
		}
		if level == 1 && parent != "" {
			log.Printf("skipping row %d: level-1 variant %s carries a parent", st.seen, rawID)
			st.skipped++
			continue
		}

		major := strings.EqualFold(valueAt(header, row, "is_major_variant"), "true")

		if _, err := stmt.ExecContext(
			ctx,
			id.String(),
			id.Type,
			id.Year,
			id.Mint,
			nullString(valueAt(header, row, "variant_type")),
			nullString(valueAt(header, row, "variant_description")),
			sortOrder,
			major,
			level,
			nullString(parent),
			score,
			nullString(valueAt(header, row, "notes")),
		); err != nil {
			return st, err
		}
		st.upserted++
	}

	return st, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseNullInt(raw string) (sql.NullInt64, error) {
	if raw == "" {
		return sql.NullInt64{}, nil
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: n, Valid: true}, nil
}

func parseNullFloat(raw string) (sql.NullFloat64, error) {
	if raw == "" {
		return sql.NullFloat64{}, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return sql.NullFloat64{}, err
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}

func parseIntDefault(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func nullString(raw string) sql.NullString {
	if raw == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: raw, Valid: true}
}
