package models

// Resolution levels, most general to most specific.
const (
	LevelBase    = 1 // base business-strike variant
	LevelDesign  = 2 // major design variety (motto size, type split)
	LevelSpecial = 3 // special / error variety (doubled die, overdate)
	LevelProof   = 4 // proof or special strike
)

// Variant is one known strike or die variety within a (base_type, year,
// mint) combination. ParentVariantID is a weak reference: it is resolved
// by id at read time and is allowed to dangle. Deleting a parent never
// cascades, and a variant whose parent fails to resolve is treated as
// unresolved-to-base (it resolves to itself).
//
// This struct is also the JSON shape consumed by the export pipeline.
type Variant struct {
	VariantID          string `json:"variant_id"`
	BaseType           string `json:"base_type"`
	Year               string `json:"year"`
	MintMark           string `json:"mint_mark"`
	VariantType        string `json:"variant_type"` // free text: "Small Motto", "Proof", ...
	VariantDescription string `json:"variant_description"`
	SortOrder          int    `json:"sort_order"`
	IsMajorVariant     bool   `json:"is_major_variant"`
	ResolutionLevel    int    `json:"resolution_level"`
	ParentVariantID    string `json:"parent_variant_id,omitempty"`
	PriorityScore      int    `json:"priority_score"` // 0-100, higher wins ambiguous lookups
	Notes              string `json:"notes,omitempty"`
}

// PriorityRule documents why a variant carries the priority score it
// does. Rules are loaded into the database for auditability; scoring
// itself stays manual.
type PriorityRule struct {
	CoinType             string `json:"coin_type"`
	YearRange            string `json:"year_range"` // e.g. "1864-1865", "1918"
	Condition            string `json:"condition"`  // prose predicate, e.g. "motto size present"
	PriorityVariantLabel string `json:"priority_variant_label"`
	Score                int    `json:"score"`
	Rationale            string `json:"rationale"`
}
