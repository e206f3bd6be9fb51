// Package apperror maps domain errors onto the classes exposed to callers
// over HTTP and NATS.
package apperror

import (
	"errors"
	"net/http"

	converterdomain "github.com/smallbiznis/catalyser/internal/converter/domain"
	creditdomain "github.com/smallbiznis/catalyser/internal/credit/domain"
	metalpricedomain "github.com/smallbiznis/catalyser/internal/metalprice/domain"
	"github.com/smallbiznis/catalyser/internal/pricing/calculator"
	pricingdomain "github.com/smallbiznis/catalyser/internal/pricing/domain"
	recoveryratedomain "github.com/smallbiznis/catalyser/internal/recoveryrate/domain"
	"gorm.io/gorm"
)

const (
	TypeInsufficientCredits = "insufficient_credits"
	TypeValidation          = "validation_error"
	TypeNotFound            = "not_found"
	TypeConflict            = "conflict"
	TypeRateLimited         = "rate_limited"
	TypeInternal            = "internal_error"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNotFound       = errors.New("not_found")
)

type Class struct {
	Status int
	Type   string
	// Code is the matched sentinel, stable across wrapping.
	Code    string
	Message string
}

var validationErrors = []error{
	ErrInvalidRequest,
	calculator.ErrInvalidInput,
	creditdomain.ErrInvalidUser,
	creditdomain.ErrInvalidAmount,
	creditdomain.ErrInvalidEntryType,
	metalpricedomain.ErrInvalidPrice,
	metalpricedomain.ErrInvalidCurrency,
	recoveryratedomain.ErrInvalidRate,
	converterdomain.ErrInvalidConverter,
	pricingdomain.ErrInvalidDiscount,
	pricingdomain.ErrInvalidCost,
}

var notFoundErrors = []error{
	ErrNotFound,
	creditdomain.ErrAccountNotFound,
	converterdomain.ErrConverterNotFound,
	metalpricedomain.ErrPriceNotFound,
	gorm.ErrRecordNotFound,
}

var conflictErrors = []error{
	creditdomain.ErrAccountExists,
	converterdomain.ErrConverterExists,
}

func Classify(err error) Class {
	if err == nil {
		return internal()
	}
	// A failed refund leaves the user charged; it must never read as a client error.
	if errors.Is(err, pricingdomain.ErrRefundFailed) {
		return internal()
	}
	if errors.Is(err, creditdomain.ErrInsufficientCredits) {
		return Class{
			Status:  http.StatusPaymentRequired,
			Type:    TypeInsufficientCredits,
			Code:    creditdomain.ErrInsufficientCredits.Error(),
			Message: "insufficient credits, purchase more credits to continue",
		}
	}
	if errors.Is(err, pricingdomain.ErrRateLimited) {
		return Class{
			Status:  http.StatusTooManyRequests,
			Type:    TypeRateLimited,
			Code:    pricingdomain.ErrRateLimited.Error(),
			Message: "too many requests",
		}
	}
	if match := firstMatch(err, validationErrors); match != nil {
		return Class{Status: http.StatusBadRequest, Type: TypeValidation, Code: match.Error(), Message: err.Error()}
	}
	if match := firstMatch(err, notFoundErrors); match != nil {
		return Class{Status: http.StatusNotFound, Type: TypeNotFound, Code: match.Error(), Message: "not found"}
	}
	if match := firstMatch(err, conflictErrors); match != nil {
		return Class{Status: http.StatusConflict, Type: TypeConflict, Code: match.Error(), Message: "conflict"}
	}
	return internal()
}

func internal() Class {
	return Class{
		Status:  http.StatusInternalServerError,
		Type:    TypeInternal,
		Code:    TypeInternal,
		Message: "internal server error",
	}
}

func firstMatch(err error, candidates []error) error {
	for _, candidate := range candidates {
		if errors.Is(err, candidate) {
			return candidate
		}
	}
	return nil
}
