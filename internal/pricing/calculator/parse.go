package calculator

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimalField reads a free-text numeric field such as a converter's
// metal content. A decimal comma is accepted and exponent notation parses,
// but thousands separators do not. Empty or unparseable input yields zero;
// callers that need to reject bad input must check beforehand.
func ParseDecimalField(raw string) decimal.Decimal {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if normalized == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero
	}
	return value
}

// ParseContent parses the four free-text content fields of a converter.
func ParseContent(pt, pd, rh, weight string) Content {
	return Content{
		Pt:     ParseDecimalField(pt),
		Pd:     ParseDecimalField(pd),
		Rh:     ParseDecimalField(rh),
		Weight: ParseDecimalField(weight),
	}
}
