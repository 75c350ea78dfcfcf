package audit

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coindex/internal/catalog"
	"coindex/internal/composition"
	"coindex/internal/migration"
)

func setup(t *testing.T) (*Auditor, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.Apply(context.Background(), db))

	path := filepath.Join(t.TempDir(), "compositions.yaml")
	require.NoError(t, os.WriteFile(path,
		[]byte("silver_90:\n  name: \"90% Silver\"\n  metals:\n    silver: 0.9\n    copper: 0.1\n"), 0644))
	comps, err := composition.Load(path)
	require.NoError(t, err)

	return New(catalog.NewCoinRepo(db), catalog.NewVariantRepo(db), comps), db
}

func findings(report *Report, check string) []Finding {
	var out []Finding
	for _, f := range report.Findings {
		if f.Check == check {
			out = append(out, f)
		}
	}
	return out
}

func TestCleanDatabaseHasNoFindings(t *testing.T) {
	a, db := setup(t)

	_, err := db.Exec(`
		INSERT INTO coins (coin_id, denomination, year, mint_mark, composition_key)
		VALUES ('US-BUFF-1918-D', 'nickel', '1918', 'D', 'silver_90')
	`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO variants (variant_id, base_type, year, mint_mark, resolution_level) VALUES
		('US-BUFF-1918-D', 'BUFF', '1918', 'D', 1)
	`)
	require.NoError(t, err)

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Findings)
	assert.Equal(t, 3, report.Checked)
}

func TestAuditFlagsGrammarViolations(t *testing.T) {
	a, db := setup(t)

	// rows written by legacy scripts before write-time validation
	_, err := db.Exec(`
		INSERT INTO coins (coin_id, denomination, year, mint_mark)
		VALUES ('us-buff-1918', 'nickel', '1918', 'D')
	`)
	require.NoError(t, err)

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, findings(report, "coin-identifier-grammar"), 1)
}

func TestAuditFlagsVariantProblems(t *testing.T) {
	a, db := setup(t)

	_, err := db.Exec(`
		INSERT INTO variants (variant_id, base_type, year, mint_mark, resolution_level, parent_variant_id) VALUES
		('US-BUFF-1918-D-A', 'BUFF', '1918', 'D', 1, 'US-BUFF-1917-D'),
		('US-BUFF-1918-D-B', 'BUFF', '1918', 'D', 3, 'US-BUFF-9999-Z'),
		('US-BUFF-1918-D-C', 'BUFF', '1918', 'D', 2, NULL)
	`)
	require.NoError(t, err)

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, findings(report, "base-with-parent"), 1)
	assert.Len(t, findings(report, "orphan-variant"), 1)
	// A's parent and B's parent both missing from the table
	assert.Len(t, findings(report, "dangling-parent"), 2)
}

func TestAuditFlagsTiedBasePriorities(t *testing.T) {
	a, db := setup(t)

	_, err := db.Exec(`
		INSERT INTO variants (variant_id, base_type, year, mint_mark, resolution_level, priority_score) VALUES
		('US-TWOC-1864-P-LM', 'TWOC', '1864', 'P', 1, 50),
		('US-TWOC-1864-P-SM', 'TWOC', '1864', 'P', 1, 50),
		('US-BUFF-1918-D',    'BUFF', '1918', 'D', 1, 90),
		('US-BUFF-1918-S',    'BUFF', '1918', 'S', 1, 90)
	`)
	require.NoError(t, err)

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	tied := findings(report, "tied-base-priority")
	require.Len(t, tied, 1)
	assert.Equal(t, "(TWOC,1864,P)", tied[0].ID)
}

func TestAuditFlagsUnknownCompositions(t *testing.T) {
	a, db := setup(t)

	_, err := db.Exec(`
		INSERT INTO coins (coin_id, denomination, year, mint_mark, composition_key)
		VALUES ('US-BUFF-1918-D', 'nickel', '1918', 'D', 'mystery_metal')
	`)
	require.NoError(t, err)

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, findings(report, "unknown-composition"), 1)
}
