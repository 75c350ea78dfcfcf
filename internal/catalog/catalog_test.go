package catalog

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coindex/internal/coinid"
	"coindex/internal/migration"
	"coindex/pkg/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.Apply(context.Background(), db))
	return db
}

func baseVariant(id string) models.Variant {
	parsed, _ := coinid.Parse(id)
	return models.Variant{
		VariantID:       id,
		BaseType:        parsed.Type,
		Year:            parsed.Year,
		MintMark:        parsed.Mint,
		ResolutionLevel: models.LevelBase,
	}
}

func TestAddRejectsMalformedIdentifier(t *testing.T) {
	repo := NewVariantRepo(openTestDB(t))

	err := repo.Add(context.Background(), models.Variant{
		VariantID:       "us-twoc-1864-p",
		BaseType:        "TWOC",
		Year:            "1864",
		MintMark:        "P",
		ResolutionLevel: 1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, coinid.ErrMalformedIdentifier)
}

func TestAddRejectsBaseWithParent(t *testing.T) {
	repo := NewVariantRepo(openTestDB(t))

	v := baseVariant("US-TWOC-1864-P")
	v.ParentVariantID = "US-TWOC-1864-X"
	err := repo.Add(context.Background(), v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not have a parent")
}

func TestAddRejectsOutOfRangeScore(t *testing.T) {
	ctx := context.Background()
	repo := NewVariantRepo(openTestDB(t))

	v := baseVariant("US-TWOC-1864-P-LM")
	v.PriorityScore = 1000
	err := repo.Add(ctx, v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of 0-100")

	// the row must not have landed
	_, err = repo.GetByID(ctx, v.VariantID)
	assert.ErrorIs(t, err, ErrUnknownVariant)

	v.PriorityScore = -1
	require.Error(t, repo.Add(ctx, v))

	v.PriorityScore = 100
	require.NoError(t, repo.Add(ctx, v))
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewVariantRepo(db)

	v := baseVariant("US-TWOC-1864-P-LM")
	v.VariantType = "Large Motto"
	v.PriorityScore = 70
	require.NoError(t, repo.Add(ctx, v))
	require.NoError(t, repo.Add(ctx, v)) // second write, same payload

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM variants`).Scan(&count))
	assert.Equal(t, 1, count)

	got, err := repo.GetByID(ctx, v.VariantID)
	require.NoError(t, err)
	assert.Equal(t, v, *got)
}

func TestStrictModeRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewVariantRepo(openTestDB(t))
	repo.Mode = Strict

	v := baseVariant("US-TWOC-1864-P-LM")
	require.NoError(t, repo.Add(ctx, v))

	err := repo.Add(ctx, v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateVariant)
}

func TestGetByIDUnknownVariant(t *testing.T) {
	repo := NewVariantRepo(openTestDB(t))

	_, err := repo.GetByID(context.Background(), "US-TWOC-1864-P")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestVariantsForOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewVariantRepo(openTestDB(t))

	proof := baseVariant("US-BUFF-1918-D-PR")
	proof.ResolutionLevel = models.LevelProof
	proof.ParentVariantID = "US-BUFF-1918-D"

	overdate := baseVariant("US-BUFF-1918-D-8OVER7")
	overdate.ResolutionLevel = models.LevelSpecial
	overdate.ParentVariantID = "US-BUFF-1918-D"

	base := baseVariant("US-BUFF-1918-D")

	// insert out of order
	require.NoError(t, repo.Add(ctx, proof))
	require.NoError(t, repo.Add(ctx, base))
	require.NoError(t, repo.Add(ctx, overdate))

	got, err := repo.VariantsFor(ctx, "BUFF", "1918", "D")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "US-BUFF-1918-D", got[0].VariantID)
	assert.Equal(t, "US-BUFF-1918-D-8OVER7", got[1].VariantID)
	assert.Equal(t, "US-BUFF-1918-D-PR", got[2].VariantID)

	// unrelated tuple stays empty
	none, err := repo.VariantsFor(ctx, "BUFF", "1919", "D")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBaseCandidatesAllowsAmbiguity(t *testing.T) {
	ctx := context.Background()
	repo := NewVariantRepo(openTestDB(t))

	lm := baseVariant("US-TWOC-1864-P-LM")
	lm.PriorityScore = 70
	sm := baseVariant("US-TWOC-1864-P-SM")
	sm.PriorityScore = 30

	require.NoError(t, repo.Add(ctx, lm))
	require.NoError(t, repo.Add(ctx, sm))

	got, err := repo.BaseCandidates(ctx, "TWOC", "1864", "P")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "US-TWOC-1864-P-LM", got[0].VariantID)
}

func TestCoinUpsertAndMerge(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewCoinRepo(db)

	coin := models.CoinRecord{
		CoinID:         "US-TWOC-1864-P",
		Denomination:   "two cent",
		SeriesName:     "Two Cent Piece",
		Year:           "1864",
		MintMark:       "P",
		CompositionKey: "bronze_95",
		Rarity:         models.RarityCommon,
	}
	require.NoError(t, repo.Upsert(ctx, coin))
	require.NoError(t, repo.Upsert(ctx, coin)) // idempotent

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM coins`).Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, repo.MergeInto(ctx, "US-TWOC-1864-P", "US-TWOC-1864-X"))

	old, err := repo.GetByID(ctx, "US-TWOC-1864-P")
	require.NoError(t, err)
	assert.Nil(t, old)

	merged, err := repo.GetByID(ctx, "US-TWOC-1864-X")
	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.Equal(t, "Two Cent Piece", merged.SeriesName)
}

func TestCoinUpsertDerivesYearAndMintFromIdentifier(t *testing.T) {
	ctx := context.Background()
	repo := NewCoinRepo(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, models.CoinRecord{
		CoinID:       "US-TWOC-1864-P",
		Denomination: "two cent",
		Year:         "1999", // disagrees with the identifier
		MintMark:     "Z",
	}))

	got, err := repo.GetByID(ctx, "US-TWOC-1864-P")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1864", got.Year)
	assert.Equal(t, "P", got.MintMark)
}

func TestCoinUpsertRejectsBadRarity(t *testing.T) {
	repo := NewCoinRepo(openTestDB(t))

	err := repo.Upsert(context.Background(), models.CoinRecord{
		CoinID:       "US-TWOC-1864-P",
		Denomination: "two cent",
		Year:         "1864",
		MintMark:     "P",
		Rarity:       "legendary",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rarity")
}

func TestCoinListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewCoinRepo(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, models.CoinRecord{
		CoinID: "US-TWOC-1864-P", Denomination: "two cent",
		SeriesName: "Two Cent Piece", Year: "1864", MintMark: "P",
		Rarity: models.RarityCommon,
	}))
	require.NoError(t, repo.Upsert(ctx, models.CoinRecord{
		CoinID: "US-BUFF-1918-D", Denomination: "nickel",
		SeriesName: "Buffalo Nickel", Year: "1918", MintMark: "D",
		Rarity: models.RarityKey,
	}))

	total, err := repo.Count(ctx, ListQuery{Denomination: "nickel"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	items, err := repo.List(ctx, ListQuery{Q: "buffalo"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "US-BUFF-1918-D", items[0].CoinID)

	keys, err := repo.List(ctx, ListQuery{Rarity: models.RarityKey})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "US-BUFF-1918-D", keys[0].CoinID)
}
