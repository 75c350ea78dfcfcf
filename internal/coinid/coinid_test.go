package coinid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormedIdentifiers(t *testing.T) {
	valid := []string{
		"US-TWOC-1864-P",
		"US-TWOC-1864-P-LM",
		"US-BUFF-1918-D-8OVER7",
		"MX-MLSH-XXXX-MO",   // random-year bullion
		"US-ASE-XXXX-X",     // unspecified year and mint
		"CA-ML5C-2020-W",    // alphanumeric type code
		"US-TWOC-1864-P-DDOOBVERSEFS101LONGSUFFIX", // suffix length is unconstrained
	}
	for _, s := range valid {
		assert.True(t, Validate(s), "expected %q to validate", s)
	}
}

func TestValidateRejectsMalformedIdentifiers(t *testing.T) {
	invalid := []string{
		"",
		"US-TWOC-1864",        // too few segments
		"US-TWOC-1864-P-LM-X", // too many segments
		"US-TWOC-1864--P",     // empty segment
		"-TWOC-1864-P",        // empty country
		"U-TWOC-1864-P",       // country too short
		"USAX-TWOC-1864-P",    // country too long
		"US-T-1864-P",         // type too short
		"US-TWOCX-1864-P",     // type too long
		"US-TWOC-64-P",        // year not 4 digits
		"US-TWOC-186A-P",      // year with letter
		"US-TWOC-XXX1-P",      // partial placeholder
		"us-twoc-1864-p",      // lowercase
		"US-TWOC-1864-9",      // numeric mint
		"US-TWOC-1864-P-sm",   // lowercase suffix
	}
	for _, s := range invalid {
		assert.False(t, Validate(s), "expected %q to fail validation", s)
	}
}

func TestParseDecomposesSegments(t *testing.T) {
	id, err := Parse("US-TWOC-1864-P-LM")
	require.NoError(t, err)
	assert.Equal(t, "US", id.Country)
	assert.Equal(t, "TWOC", id.Type)
	assert.Equal(t, "1864", id.Year)
	assert.Equal(t, "P", id.Mint)
	assert.Equal(t, "LM", id.Suffix)
	assert.Equal(t, "US-TWOC-1864-P-LM", id.String())
	assert.Equal(t, "US-TWOC-1864-P", id.BaseID())
}

func TestParseErrorIsMalformedIdentifier(t *testing.T) {
	_, err := Parse("US-TWOC-1864--P")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedIdentifier))
}

func TestBullionPlaceholder(t *testing.T) {
	id, err := Parse("MX-MLSH-XXXX-MO")
	require.NoError(t, err)
	assert.True(t, id.IsBullion())

	dated, err := Parse("US-BUFF-1918-D")
	require.NoError(t, err)
	assert.False(t, dated.IsBullion())
}
