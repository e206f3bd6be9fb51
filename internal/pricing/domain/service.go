package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	creditdomain "github.com/smallbiznis/catalyser/internal/credit/domain"
	"github.com/smallbiznis/catalyser/internal/pricing/calculator"
)

// Service charges a user for a valuation and returns it.
type Service interface {
	PriceConverterForUser(ctx context.Context, req PriceConverterRequest) (*PriceConverterResponse, error)
	Quote(ctx context.Context, req QuoteRequest) (*PriceConverterResponse, error)
	GetUserDiscount(ctx context.Context, userID string) (*UserPricingProfile, error)
	SetUserDiscount(ctx context.Context, req SetDiscountRequest) (*UserPricingProfile, error)
}

// Ledger is the part of the credit ledger a valuation needs.
type Ledger interface {
	TryDebit(ctx context.Context, req creditdomain.DebitRequest) (*creditdomain.CreditLedgerEntry, error)
	Grant(ctx context.Context, req creditdomain.GrantRequest) (*creditdomain.CreditLedgerEntry, error)
}

// ConverterContent is the converter's metal content as stored, before parsing.
type ConverterContent struct {
	PtContent string `json:"pt_content"`
	PdContent string `json:"pd_content"`
	RhContent string `json:"rh_content"`
	Weight    string `json:"weight"`
}

type PriceConverterRequest struct {
	UserID          string
	Content         ConverterContent
	Prices          calculator.SpotPrices
	Currency        string
	Rates           calculator.RecoveryRates
	DiscountPercent decimal.Decimal
	CostInCredits   int64
	Metadata        map[string]any
}

type PriceConverterResponse struct {
	Result           calculator.Result `json:"result"`
	CreditsRemaining int64             `json:"creditsRemaining"`
}

type QuoteRequest struct {
	UserID      string       `json:"user_id"`
	ConverterID snowflake.ID `json:"converter_id"`
	// Currency selects the price snapshot. Empty uses the configured default.
	Currency string `json:"currency,omitempty"`
}

type SetDiscountRequest struct {
	UserID          string          `json:"user_id"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

var (
	ErrInvalidDiscount = errors.New("invalid_discount")
	ErrInvalidCost     = errors.New("invalid_cost")
	ErrRateLimited     = errors.New("rate_limited")
	ErrRefundFailed    = errors.New("refund_failed")
)
