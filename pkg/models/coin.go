package models

// Rarity classification values stored on coin records.
const (
	RarityKey     = "key"
	RaritySemiKey = "semi-key"
	RarityScarce  = "scarce"
	RarityCommon  = "common"
)

// CoinRecord is the canonical attribute row for one coin identifier
// (COUNTRY-TYPE-YEAR-MINT[-SUFFIX]). Migration scripts create these,
// later correction scripts mutate them; a record is only deleted when
// it is merged into a corrected identifier.
type CoinRecord struct {
	CoinID         string  `json:"coin_id"`
	Denomination   string  `json:"denomination"`    // e.g. "cent", "nickel"
	SeriesName     string  `json:"series_name"`     // e.g. "Buffalo Nickel"
	Year           string  `json:"year"`            // 4-digit numeral or "XXXX" for bullion
	MintMark       string  `json:"mint_mark"`       // "X" when unspecified
	CompositionKey string  `json:"composition_key"` // resolved via the composition registry
	WeightGrams    float64 `json:"weight_grams,omitempty"`
	DiameterMM     float64 `json:"diameter_mm,omitempty"`
	BusinessStrike int64   `json:"business_strike,omitempty"` // mintage counts
	ProofStrike    int64   `json:"proof_strike,omitempty"`
	Rarity         string  `json:"rarity,omitempty"` // key, semi-key, scarce, common
	Description    string  `json:"description,omitempty"`
	SourceCitation string  `json:"source_citation,omitempty"`
}

// ValidRarity reports whether s is one of the enumerated rarity classes.
func ValidRarity(s string) bool {
	switch s {
	case RarityKey, RaritySemiKey, RarityScarce, RarityCommon:
		return true
	}
	return false
}
