package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Provider supplies the spot prices used for a valuation.
type Provider interface {
	GetCurrentPrices(ctx context.Context, currency string) (*Snapshot, error)
}

type Service interface {
	Provider
	Record(ctx context.Context, req RecordRequest) (*Snapshot, error)
}

type RecordRequest struct {
	Platinum  decimal.Decimal `json:"platinum_price_per_troy_oz"`
	Palladium decimal.Decimal `json:"palladium_price_per_troy_oz"`
	Rhodium   decimal.Decimal `json:"rhodium_price_per_troy_oz"`
	Currency  string          `json:"currency"`
	AsOf      *time.Time      `json:"as_of,omitempty"`
	Source    string          `json:"source,omitempty"`
}

var (
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrPriceNotFound   = errors.New("price_not_found")
)

// NormalizeCurrency upper-cases a three letter ISO code.
func NormalizeCurrency(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return code, nil
}

func (r RecordRequest) Validate() error {
	for _, price := range []decimal.Decimal{r.Platinum, r.Palladium, r.Rhodium} {
		if price.IsNegative() {
			return ErrInvalidPrice
		}
	}
	if _, err := NormalizeCurrency(r.Currency); err != nil {
		return err
	}
	return nil
}
