package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coindex/internal/migration"
)

func openTestTx(t *testing.T) (*sql.Tx, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.Apply(context.Background(), db))

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback() })
	return tx, db
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportCoinsSkipsBadRows(t *testing.T) {
	tx, _ := openTestTx(t)

	path := writeCSV(t, "coins.csv", `coin_id,denomination,rarity,series_name
US-TWOC-1864-P,two cent,common,Two Cent Piece
US-BUFF-1918-D,nickel,legendary,Buffalo Nickel
us-bad-id,cent,common,Broken Row
`)

	st, err := importCoins(context.Background(), tx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, st.seen)
	assert.Equal(t, 1, st.upserted)
	assert.Equal(t, 2, st.skipped) // unknown rarity + malformed id

	var count int
	require.NoError(t, tx.QueryRow(`SELECT COUNT(*) FROM coins`).Scan(&count))
	assert.Equal(t, 1, count)

	var year, mint string
	require.NoError(t, tx.QueryRow(
		`SELECT year, mint_mark FROM coins WHERE coin_id = 'US-TWOC-1864-P'`,
	).Scan(&year, &mint))
	assert.Equal(t, "1864", year)
	assert.Equal(t, "P", mint)
}

func TestImportCoinsIsIdempotent(t *testing.T) {
	tx, _ := openTestTx(t)

	path := writeCSV(t, "coins.csv", `coin_id,denomination
US-TWOC-1864-P,two cent
`)

	for i := 0; i < 2; i++ {
		st, err := importCoins(context.Background(), tx, path)
		require.NoError(t, err)
		assert.Equal(t, 1, st.upserted)
	}

	var count int
	require.NoError(t, tx.QueryRow(`SELECT COUNT(*) FROM coins`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestImportVariantsSkipsBadRows(t *testing.T) {
	tx, _ := openTestTx(t)

	path := writeCSV(t, "variants.csv", `variant_id,resolution_level,parent_variant_id,priority_score
US-TWOC-1864-P-LM,1,,70
US-TWOC-1864-P-SM,1,US-TWOC-1864-P,30
US-BUFF-1918-D-8OVER7,3,US-BUFF-1918-D,0
`)

	st, err := importVariants(context.Background(), tx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, st.seen)
	assert.Equal(t, 2, st.upserted)
	assert.Equal(t, 1, st.skipped) // level-1 row carrying a parent

	var count int
	require.NoError(t, tx.QueryRow(`SELECT COUNT(*) FROM variants`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestImportVariantsMissingFileIsOptional(t *testing.T) {
	tx, _ := openTestTx(t)

	st, err := importVariants(context.Background(), tx, filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Equal(t, 0, st.seen)
}
