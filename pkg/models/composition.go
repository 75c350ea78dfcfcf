package models

// Composition is a full alloy definition behind a normalized composition
// key such as "silver_90": metal name to fraction, by weight.
type Composition struct {
	Key     string             `json:"key"`
	Name    string             `json:"name"` // display name, e.g. "90% Silver"
	Metals  map[string]float64 `json:"metals"`
	Remarks string             `json:"remarks,omitempty"`
}
