package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coindex/internal/catalog"
	"coindex/internal/composition"
	"coindex/internal/migration"
	"coindex/internal/resolver"
	"coindex/pkg/models"
)

const seedYAML = `
copper_nickel:
  name: "Copper-Nickel"
  metals: {copper: 0.75, nickel: 0.25}
`

func setup(t *testing.T) (*Service, *catalog.CoinRepo, *catalog.VariantRepo) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.Apply(context.Background(), db))

	seedPath := filepath.Join(t.TempDir(), "compositions.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seedYAML), 0o644))
	comps, err := composition.Load(seedPath)
	require.NoError(t, err)

	coins := catalog.NewCoinRepo(db)
	variants := catalog.NewVariantRepo(db)
	return NewService(coins, variants, resolver.New(variants), comps), coins, variants
}

func seedBuffalo(t *testing.T, coins *catalog.CoinRepo, variants *catalog.VariantRepo) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, coins.Upsert(ctx, models.CoinRecord{
		CoinID:         "US-BUFF-1918-D",
		Denomination:   "nickel",
		SeriesName:     "Buffalo Nickel",
		Year:           "1918",
		MintMark:       "D",
		CompositionKey: "copper_nickel",
		Rarity:         models.RarityKey,
	}))
	require.NoError(t, variants.Add(ctx, models.Variant{
		VariantID: "US-BUFF-1918-D", BaseType: "BUFF", Year: "1918", MintMark: "D",
		VariantType: "Business Strike", ResolutionLevel: 1, PriorityScore: 90,
	}))
	require.NoError(t, variants.Add(ctx, models.Variant{
		VariantID: "US-BUFF-1918-D-8OVER7", BaseType: "BUFF", Year: "1918", MintMark: "D",
		VariantType: "Overdate", ResolutionLevel: 3, ParentVariantID: "US-BUFF-1918-D",
		IsMajorVariant: true,
	}))
}

func TestCoinViewResolvesEverything(t *testing.T) {
	svc, coins, variants := setup(t)
	seedBuffalo(t, coins, variants)

	coin, err := coins.GetByID(context.Background(), "US-BUFF-1918-D")
	require.NoError(t, err)
	require.NotNil(t, coin)

	view, err := svc.CoinView(context.Background(), *coin)
	require.NoError(t, err)

	require.NotNil(t, view.Composition)
	assert.Equal(t, "Copper-Nickel", view.Composition.Name)
	assert.Equal(t, "US-BUFF-1918-D", view.DefaultVariantID)

	require.Len(t, view.Variants, 2)
	// ordered general -> specific, each chain pre-resolved
	assert.Equal(t, "US-BUFF-1918-D", view.Variants[0].VariantID)
	assert.Equal(t, "US-BUFF-1918-D", view.Variants[0].BaseVariantID)
	assert.Equal(t, "US-BUFF-1918-D-8OVER7", view.Variants[1].VariantID)
	assert.Equal(t, "US-BUFF-1918-D", view.Variants[1].BaseVariantID)
}

func TestCoinViewUnknownComposition(t *testing.T) {
	svc, coins, variants := setup(t)
	seedBuffalo(t, coins, variants)

	coin := models.CoinRecord{
		CoinID:         "US-BUFF-1919-D",
		Denomination:   "nickel",
		Year:           "1919",
		MintMark:       "D",
		CompositionKey: "mystery_metal",
	}
	_, err := svc.CoinView(context.Background(), coin)
	require.Error(t, err)
	assert.ErrorIs(t, err, composition.ErrUnknownCompositionKey)
}

func TestWriteAllProducesFiles(t *testing.T) {
	svc, coins, variants := setup(t)
	seedBuffalo(t, coins, variants)

	ctx := context.Background()
	require.NoError(t, coins.Upsert(ctx, models.CoinRecord{
		CoinID:       "US-TWOC-1864-P",
		Denomination: "two cent",
		Year:         "1864",
		MintMark:     "P",
	}))

	outDir := t.TempDir()
	stats, err := svc.WriteAll(ctx, outDir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Coins)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 3, stats.Files) // nickel.json, two_cent.json, all_coins.json

	b, err := os.ReadFile(filepath.Join(outDir, "nickel.json"))
	require.NoError(t, err)
	var views []CoinView
	require.NoError(t, json.Unmarshal(b, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "US-BUFF-1918-D", views[0].CoinID)
	require.Len(t, views[0].Variants, 2)

	all, err := os.ReadFile(filepath.Join(outDir, "all_coins.json"))
	require.NoError(t, err)
	var universal []CoinView
	require.NoError(t, json.Unmarshal(all, &universal))
	assert.Len(t, universal, 2)
}

func TestWriteAllSkipsIncompleteCoins(t *testing.T) {
	svc, coins, variants := setup(t)
	seedBuffalo(t, coins, variants)

	ctx := context.Background()
	// variants exist for this tuple but none is level 1: no base candidate
	require.NoError(t, coins.Upsert(ctx, models.CoinRecord{
		CoinID:       "US-TWOC-1864-P",
		Denomination: "two cent",
		Year:         "1864",
		MintMark:     "P",
	}))
	require.NoError(t, variants.Add(ctx, models.Variant{
		VariantID: "US-TWOC-1864-P-DDO", BaseType: "TWOC", Year: "1864", MintMark: "P",
		ResolutionLevel: 3,
	}))

	stats, err := svc.WriteAll(ctx, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Coins)
	assert.Equal(t, 1, stats.Skipped)
}

func TestDenomFileNameSanitizesSeparators(t *testing.T) {
	assert.Equal(t, "1_2_cent.json", denomFileName("1/2 cent"))
	assert.Equal(t, "half_dime.json", denomFileName("Half Dime"))
	assert.Equal(t, "unknown.json", denomFileName("  "))
}

func TestWriteAllHandlesSeparatorDenominations(t *testing.T) {
	svc, coins, _ := setup(t)

	ctx := context.Background()
	require.NoError(t, coins.Upsert(ctx, models.CoinRecord{
		CoinID:       "US-HCNT-1793-P",
		Denomination: "1/2 cent",
		Year:         "1793",
		MintMark:     "P",
	}))

	outDir := t.TempDir()
	stats, err := svc.WriteAll(ctx, outDir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files) // 1_2_cent.json + all_coins.json

	_, err = os.Stat(filepath.Join(outDir, "1_2_cent.json"))
	require.NoError(t, err)
}

func TestVariantsForType(t *testing.T) {
	svc, coins, variants := setup(t)
	seedBuffalo(t, coins, variants)

	out, err := svc.VariantsForType(context.Background(), "BUFF")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "US-BUFF-1918-D", out[0].VariantID)
	assert.Equal(t, "US-BUFF-1918-D", out[1].BaseVariantID)
}
