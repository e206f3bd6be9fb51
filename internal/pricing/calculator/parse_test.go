package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDecimalField(t *testing.T) {
	cases := map[string]string{
		"1,25":    "1.25",
		" 0.35 ":  "0.35",
		"2":       "2",
		"":        "0",
		"   ":     "0",
		"abc":     "0",
		"1.2.3":   "0",
		"1.234,5": "0",
		"NaN":     "0",
		"-1,5":    "-1.5",
		"1,234.5": "0",
		"1e3":     "1000",
		"2,5E-1":  "0.25",
	}
	for raw, want := range cases {
		got := ParseDecimalField(raw)
		assert.Truef(t, d(want).Equal(got), "ParseDecimalField(%q) = %s, want %s", raw, got, want)
	}
}

func TestParseContent(t *testing.T) {
	content := ParseContent("2,85", "1.42", "", "1,5")

	assert.True(t, d("2.85").Equal(content.Pt))
	assert.True(t, d("1.42").Equal(content.Pd))
	assert.True(t, content.Rh.IsZero())
	assert.True(t, d("1.5").Equal(content.Weight))
}
