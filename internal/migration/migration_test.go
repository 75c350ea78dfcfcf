package migration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestApplyCreatesSchema(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, Apply(ctx, db))

	for _, table := range []string{"coins", "variants", "priority_rules", "editors", "import_runs", "schema_version"} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}

	var version int
	require.NoError(t, db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version))
	assert.Equal(t, Latest(), version)
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, Apply(ctx, db))
	require.NoError(t, Apply(ctx, db))

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&rows))
	assert.Equal(t, len(migrations), rows)
}

func TestLoadRenameMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renames.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SHLD: MLSH\nIHC: IHCT\n"), 0o644))

	m, err := LoadRenameMap(path)
	require.NoError(t, err)
	assert.Equal(t, RenameMap{"SHLD": "MLSH", "IHC": "IHCT"}, m)
}

func TestLoadRenameMapRejectsBadCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renames.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SHLD: toolongcode\n"), 0o644))

	_, err := LoadRenameMap(path)
	require.Error(t, err)
}

func TestApplyRenamesRewritesIdentifiers(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, Apply(ctx, db))

	_, err := db.Exec(`
		INSERT INTO coins (coin_id, denomination, year, mint_mark) VALUES
		('US-SHLD-1883-P', 'nickel', '1883', 'P'),
		('US-BUFF-1918-D', 'nickel', '1918', 'D')
	`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO variants (variant_id, base_type, year, mint_mark, resolution_level, parent_variant_id) VALUES
		('US-SHLD-1883-P', 'SHLD', '1883', 'P', 1, NULL),
		('US-SHLD-1883-P-NC', 'SHLD', '1883', 'P', 2, 'US-SHLD-1883-P')
	`)
	require.NoError(t, err)

	changed, err := ApplyRenames(ctx, db, RenameMap{"SHLD": "LIBN"})
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM coins WHERE coin_id = 'US-LIBN-1883-P'`).Scan(&count))
	assert.Equal(t, 1, count)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM coins WHERE coin_id = 'US-SHLD-1883-P'`).Scan(&count))
	assert.Equal(t, 0, count)

	// untouched record survives
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM coins WHERE coin_id = 'US-BUFF-1918-D'`).Scan(&count))
	assert.Equal(t, 1, count)

	var baseType, parent string
	require.NoError(t, db.QueryRow(
		`SELECT base_type, parent_variant_id FROM variants WHERE variant_id = 'US-LIBN-1883-P-NC'`,
	).Scan(&baseType, &parent))
	assert.Equal(t, "LIBN", baseType)
	assert.Equal(t, "US-LIBN-1883-P", parent)
}

func TestApplyRenamesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, Apply(ctx, db))

	_, err := db.Exec(`INSERT INTO coins (coin_id, denomination, year, mint_mark) VALUES ('US-SHLD-1883-P', 'nickel', '1883', 'P')`)
	require.NoError(t, err)

	renames := RenameMap{"SHLD": "LIBN"}
	changed, err := ApplyRenames(ctx, db, renames)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	// second run sees no matching TYPE codes
	changed, err = ApplyRenames(ctx, db, renames)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
}
