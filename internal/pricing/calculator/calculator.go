// Package calculator turns converter metal content, spot prices, recovery
// rates and a discount into an itemized valuation. It performs no I/O.
package calculator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid_input")

var (
	// TroyOunceGrams is the number of grams in one troy ounce.
	TroyOunceGrams = decimal.RequireFromString("31.1034768")

	hundred = decimal.NewFromInt(100)
)

const moneyPlaces = 2

// Content is the precious-metal load of one converter.
type Content struct {
	Pt     decimal.Decimal `json:"pt"`
	Pd     decimal.Decimal `json:"pd"`
	Rh     decimal.Decimal `json:"rh"`
	Weight decimal.Decimal `json:"weight"`
}

// SpotPrices are per troy ounce.
type SpotPrices struct {
	Pt decimal.Decimal `json:"pt"`
	Pd decimal.Decimal `json:"pd"`
	Rh decimal.Decimal `json:"rh"`
}

// RecoveryRates are percentages in [0,100].
type RecoveryRates struct {
	Pt decimal.Decimal `json:"pt"`
	Pd decimal.Decimal `json:"pd"`
	Rh decimal.Decimal `json:"rh"`
}

type Input struct {
	Content         Content
	Prices          SpotPrices
	Rates           RecoveryRates
	DiscountPercent decimal.Decimal
	Currency        string
}

// Result is the itemized valuation. Every amount carries two decimal places.
type Result struct {
	PtValue        decimal.Decimal
	PdValue        decimal.Decimal
	RhValue        decimal.Decimal
	GrossValue     decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
	Currency       string
}

// Calculator is the seam used by callers that meter access to valuations.
type Calculator interface {
	Compute(in Input) (Result, error)
}

type calculator struct{}

func New() Calculator {
	return calculator{}
}

func (calculator) Compute(in Input) (Result, error) {
	return Compute(in)
}

// Compute values each metal as content × weight × spot/TroyOunceGrams × recovery/100,
// rounding every component half away from zero to cents before summing.
// The discount is taken from the rounded gross.
func Compute(in Input) (Result, error) {
	if err := in.validate(); err != nil {
		return Result{}, err
	}

	ptValue := metalValue(in.Content.Pt, in.Content.Weight, in.Prices.Pt, in.Rates.Pt)
	pdValue := metalValue(in.Content.Pd, in.Content.Weight, in.Prices.Pd, in.Rates.Pd)
	rhValue := metalValue(in.Content.Rh, in.Content.Weight, in.Prices.Rh, in.Rates.Rh)

	gross := ptValue.Add(pdValue).Add(rhValue).Round(moneyPlaces)
	discount := gross.Mul(in.DiscountPercent).Div(hundred).Round(moneyPlaces)
	final := gross.Sub(discount).Round(moneyPlaces)

	return Result{
		PtValue:        ptValue,
		PdValue:        pdValue,
		RhValue:        rhValue,
		GrossValue:     gross,
		DiscountAmount: discount,
		FinalPrice:     final,
		Currency:       strings.ToUpper(strings.TrimSpace(in.Currency)),
	}, nil
}

// metalValue divides once, after every multiplication, so the only rounding
// applied before the cent is the final one.
func metalValue(content, weight, spot, recovery decimal.Decimal) decimal.Decimal {
	numerator := content.Mul(weight).Mul(spot).Mul(recovery)
	return numerator.Div(TroyOunceGrams.Mul(hundred)).Round(moneyPlaces)
}

func (in Input) validate() error {
	nonNegative := []struct {
		field string
		value decimal.Decimal
	}{
		{"content.pt", in.Content.Pt},
		{"content.pd", in.Content.Pd},
		{"content.rh", in.Content.Rh},
		{"content.weight", in.Content.Weight},
		{"prices.pt", in.Prices.Pt},
		{"prices.pd", in.Prices.Pd},
		{"prices.rh", in.Prices.Rh},
	}
	for _, f := range nonNegative {
		if f.value.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, f.field)
		}
	}

	percentages := []struct {
		field string
		value decimal.Decimal
	}{
		{"rates.pt", in.Rates.Pt},
		{"rates.pd", in.Rates.Pd},
		{"rates.rh", in.Rates.Rh},
		{"discount", in.DiscountPercent},
	}
	for _, f := range percentages {
		if f.value.IsNegative() || f.value.GreaterThan(hundred) {
			return fmt.Errorf("%w: %s must be within 0..100", ErrInvalidInput, f.field)
		}
	}
	return nil
}

type resultJSON struct {
	PtValue    json.Number `json:"ptValue"`
	PdValue    json.Number `json:"pdValue"`
	RhValue    json.Number `json:"rhValue"`
	GrossValue json.Number `json:"grossValue"`
	Discount   json.Number `json:"discount"`
	FinalPrice json.Number `json:"finalPrice"`
	Currency   string      `json:"currency"`
}

// MarshalJSON renders amounts as JSON numbers with exactly two decimals.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		PtValue:    money(r.PtValue),
		PdValue:    money(r.PdValue),
		RhValue:    money(r.RhValue),
		GrossValue: money(r.GrossValue),
		Discount:   money(r.DiscountAmount),
		FinalPrice: money(r.FinalPrice),
		Currency:   r.Currency,
	})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := []struct {
		src json.Number
		dst *decimal.Decimal
	}{
		{raw.PtValue, &r.PtValue},
		{raw.PdValue, &r.PdValue},
		{raw.RhValue, &r.RhValue},
		{raw.GrossValue, &r.GrossValue},
		{raw.Discount, &r.DiscountAmount},
		{raw.FinalPrice, &r.FinalPrice},
	}
	for _, f := range fields {
		value, err := decimal.NewFromString(f.src.String())
		if err != nil {
			return err
		}
		*f.dst = value
	}
	r.Currency = raw.Currency
	return nil
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(moneyPlaces))
}
