package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Provider supplies the recovery rates used for a valuation.
type Provider interface {
	GetActiveRecoveryRates(ctx context.Context) (*RecoveryRates, error)
}

type Service interface {
	Provider
	Update(ctx context.Context, req UpdateRequest) (*RecoveryRates, error)
}

type UpdateRequest struct {
	Pt decimal.Decimal `json:"pt"`
	Pd decimal.Decimal `json:"pd"`
	Rh decimal.Decimal `json:"rh"`
}

var ErrInvalidRate = errors.New("invalid_recovery_rate")

var hundred = decimal.NewFromInt(100)

func (r UpdateRequest) Validate() error {
	for _, rate := range []decimal.Decimal{r.Pt, r.Pd, r.Rh} {
		if rate.IsNegative() || rate.GreaterThan(hundred) {
			return ErrInvalidRate
		}
	}
	return nil
}
