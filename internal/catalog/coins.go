package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"coindex/internal/coinid"
	"coindex/pkg/models"
)

type CoinRepo struct {
	DB *sql.DB
}

type ListQuery struct {
	Q            string // keyword search in series name / description
	Denomination string
	Rarity       string
	Limit        int
	Offset       int
}

func NewCoinRepo(db *sql.DB) *CoinRepo {
	return &CoinRepo{DB: db}
}

// Upsert writes a coin record under its identifier. The identifier is
// grammar-checked before the row is touched; malformed ids never reach
// the table.
func (r *CoinRepo) Upsert(ctx context.Context, c models.CoinRecord) error {
	id, err := coinid.Parse(c.CoinID)
	if err != nil {
		return err
	}
	if c.Rarity != "" && !models.ValidRarity(c.Rarity) {
		return fmt.Errorf("coin %s: unknown rarity %q", c.CoinID, c.Rarity)
	}

	// year and mint always come from the identifier; a payload that
	// disagrees with its own coin_id never splits the record
	c.Year = id.Year
	c.MintMark = id.Mint

	_, err = r.DB.ExecContext(ctx, `
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
	`,
		c.CoinID, c.Denomination, nullStr(c.SeriesName), c.Year, c.MintMark,
		nullStr(c.CompositionKey), nullFloat(c.WeightGrams), nullFloat(c.DiameterMM),
		nullInt(c.BusinessStrike), nullInt(c.ProofStrike), nullStr(c.Rarity),
		nullStr(c.Description), nullStr(c.SourceCitation),
	)
	if err != nil {
		return fmt.Errorf("upsert coin %s: %w", c.CoinID, err)
	}
	return nil
}

func (r *CoinRepo) GetByID(ctx context.Context, coinID string) (*models.CoinRecord, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT coin_id, denomination, series_name, year, mint_mark,
		       composition_key, weight_grams, diameter_mm,
		       business_strike, proof_strike, rarity, description, source_citation
		FROM coins
		WHERE coin_id = ?
	`, coinID)

	c, err := scanCoin(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan coin %s: %w", coinID, err)
	}
	return c, nil
}

// MergeInto moves a record stored under a wrong identifier to its
// corrected one and drops the old row. This is the only delete path
// for coin records.
func (r *CoinRepo) MergeInto(ctx context.Context, oldID, newID string) error {
	if _, err := coinid.Parse(newID); err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO coins
		SELECT ?, denomination, series_name, year, mint_mark, composition_key,
		       weight_grams, diameter_mm, business_strike, proof_strike,
		       rarity, description, source_citation
		FROM coins WHERE coin_id = ?
	`, newID, oldID)
	if err != nil {
		return fmt.Errorf("merge %s -> %s: %w", oldID, newID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("merge %s -> %s: source not found", oldID, newID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM coins WHERE coin_id = ?`, oldID); err != nil {
		return fmt.Errorf("drop merged coin %s: %w", oldID, err)
	}
	return tx.Commit()
}

func (r *CoinRepo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *CoinRepo) List(ctx context.Context, q ListQuery) ([]models.CoinRecord, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.CoinRecord, 0, q.Limit)
	for rows.Next() {
		c, err := scanCoin(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Denominations lists the distinct denominations present, for
// per-denomination export files.
func (r *CoinRepo) Denominations(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT denomination FROM coins ORDER BY denomination`)
	if err != nil {
		return nil, fmt.Errorf("list denominations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan denomination: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// ByDenomination lists records of one denomination ordered by id.
func (r *CoinRepo) ByDenomination(ctx context.Context, denomination string) ([]models.CoinRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT coin_id, denomination, series_name, year, mint_mark,
		       composition_key, weight_grams, diameter_mm,
		       business_strike, proof_strike, rarity, description, source_citation
		FROM coins
		WHERE denomination = ?
		ORDER BY coin_id
	`, denomination)
	if err != nil {
		return nil, fmt.Errorf("coins for %s: %w", denomination, err)
	}
	defer rows.Close()

	var out []models.CoinRecord
	for rows.Next() {
		c, err := scanCoin(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan coin: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// AllIDs streams every coin identifier, for the grammar audit.
func (r *CoinRepo) AllIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT coin_id FROM coins ORDER BY coin_id`)
	if err != nil {
		return nil, fmt.Errorf("list coin ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan coin id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// buildListSQL builds either COUNT(*) or the SELECT list.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `
		SELECT coin_id, denomination, series_name, year, mint_mark,
		       composition_key, weight_grams, diameter_mm,
		       business_strike, proof_strike, rarity, description, source_citation
		FROM coins
	`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM coins`
	}

	var where []string
	var args []any

	if strings.TrimSpace(q.Q) != "" {
		where = append(where, "(LOWER(series_name) LIKE ? OR LOWER(description) LIKE ?)")
		kw := "%" + strings.ToLower(strings.TrimSpace(q.Q)) + "%"
		args = append(args, kw, kw)
	}
	if strings.TrimSpace(q.Denomination) != "" {
		where = append(where, "LOWER(denomination) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(q.Denomination)))
	}
	if strings.TrimSpace(q.Rarity) != "" {
		where = append(where, "rarity = ?")
		args = append(args, strings.TrimSpace(q.Rarity))
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY coin_id ASC"
		sqlStr += " LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}

	return sqlStr, args
}

func scanCoin(scan func(...any) error) (*models.CoinRecord, error) {
	var (
		c        models.CoinRecord
		series   sql.NullString
		compKey  sql.NullString
		weight   sql.NullFloat64
		diameter sql.NullFloat64
		business sql.NullInt64
		proof    sql.NullInt64
		rarity   sql.NullString
		desc     sql.NullString
		citation sql.NullString
	)
	if err := scan(
		&c.CoinID, &c.Denomination, &series, &c.Year, &c.MintMark,
		&compKey, &weight, &diameter, &business, &proof, &rarity, &desc, &citation,
	); err != nil {
		return nil, err
	}
	c.SeriesName = series.String
	c.CompositionKey = compKey.String
	c.WeightGrams = weight.Float64
	c.DiameterMM = diameter.Float64
	c.BusinessStrike = business.Int64
	c.ProofStrike = proof.Int64
	c.Rarity = rarity.String
	c.Description = desc.String
	c.SourceCitation = citation.String
	return &c, nil
}

func nullStr(raw string) sql.NullString {
	if raw == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: raw, Valid: true}
}

func nullFloat(v float64) sql.NullFloat64 {
	if v == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullInt(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
