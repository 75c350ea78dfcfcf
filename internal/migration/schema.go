package migration

// Schema migrations, applied in order and recorded in schema_version.
// Never edit an entry after it has shipped; append a new one instead.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "coins and variants",
		SQL: `
CREATE TABLE IF NOT EXISTS coins (
  coin_id         TEXT PRIMARY KEY,
  denomination    TEXT NOT NULL,
  series_name     TEXT,
  year            TEXT NOT NULL,
  mint_mark       TEXT NOT NULL,
  composition_key TEXT,
  weight_grams    REAL,
  diameter_mm     REAL,
  business_strike INTEGER,
  proof_strike    INTEGER,
  rarity          TEXT,
  description     TEXT,
  source_citation TEXT
);

CREATE TABLE IF NOT EXISTS variants (
  variant_id          TEXT PRIMARY KEY,
  base_type           TEXT NOT NULL,
  year                TEXT NOT NULL,
  mint_mark           TEXT NOT NULL,
  variant_type        TEXT,
  variant_description TEXT,
  sort_order          INTEGER NOT NULL DEFAULT 0,
  is_major_variant    INTEGER NOT NULL DEFAULT 0,
  resolution_level    INTEGER NOT NULL DEFAULT 1,
  parent_variant_id   TEXT,
  priority_score      INTEGER NOT NULL DEFAULT 0,
  notes               TEXT
);

CREATE INDEX IF NOT EXISTS idx_variants_type_year ON variants (base_type, year);
CREATE INDEX IF NOT EXISTS idx_variants_parent ON variants (parent_variant_id);
CREATE INDEX IF NOT EXISTS idx_variants_lookup ON variants (base_type, year, mint_mark, resolution_level);
`,
	},
	{
		Version: 2,
		Name:    "priority rules",
		SQL: `
CREATE TABLE IF NOT EXISTS priority_rules (
  id                     INTEGER PRIMARY KEY AUTOINCREMENT,
  coin_type              TEXT NOT NULL,
  year_range             TEXT NOT NULL,
  condition              TEXT,
  priority_variant_label TEXT NOT NULL,
  score                  INTEGER NOT NULL,
  rationale              TEXT,
  UNIQUE (coin_type, year_range, priority_variant_label)
);
`,
	},
	{
		Version: 3,
		Name:    "editors",
		SQL: `
CREATE TABLE IF NOT EXISTS editors (
  id            TEXT PRIMARY KEY,
  username      TEXT NOT NULL UNIQUE,
  email         TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  token_version INTEGER NOT NULL DEFAULT 0,
  created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
	},
	{
		Version: 4,
		Name:    "import runs",
		SQL: `
CREATE TABLE IF NOT EXISTS import_runs (
  id          TEXT PRIMARY KEY,
  tool        TEXT NOT NULL,
  started_at  TIMESTAMP NOT NULL,
  finished_at TIMESTAMP,
  rows_seen   INTEGER NOT NULL DEFAULT 0,
  rows_upserted INTEGER NOT NULL DEFAULT 0,
  rows_skipped  INTEGER NOT NULL DEFAULT 0,
  notes       TEXT
);
`,
	},
}
