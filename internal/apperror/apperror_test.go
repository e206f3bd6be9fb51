package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	converterdomain "github.com/smallbiznis/catalyser/internal/converter/domain"
	creditdomain "github.com/smallbiznis/catalyser/internal/credit/domain"
	"github.com/smallbiznis/catalyser/internal/pricing/calculator"
	pricingdomain "github.com/smallbiznis/catalyser/internal/pricing/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
		code   string
	}{
		{"insufficient", fmt.Errorf("debit: %w", creditdomain.ErrInsufficientCredits), http.StatusPaymentRequired, TypeInsufficientCredits, "insufficient_credits"},
		{"wrapped invalid input", fmt.Errorf("%w: weight must not be negative", calculator.ErrInvalidInput), http.StatusBadRequest, TypeValidation, "invalid_input"},
		{"account missing", creditdomain.ErrAccountNotFound, http.StatusNotFound, TypeNotFound, "account_not_found"},
		{"converter missing", converterdomain.ErrConverterNotFound, http.StatusNotFound, TypeNotFound, "converter_not_found"},
		{"account exists", creditdomain.ErrAccountExists, http.StatusConflict, TypeConflict, creditdomain.ErrAccountExists.Error()},
		{"rate limited", pricingdomain.ErrRateLimited, http.StatusTooManyRequests, TypeRateLimited, "rate_limited"},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, TypeInternal, TypeInternal},
		{"nil", nil, http.StatusInternalServerError, TypeInternal, TypeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := Classify(tc.err)
			assert.Equal(t, tc.status, class.Status)
			assert.Equal(t, tc.typ, class.Type)
			assert.Equal(t, tc.code, class.Code)
		})
	}
}

func TestFailedRefundIsInternal(t *testing.T) {
	computeErr := fmt.Errorf("%w: discount above 100", calculator.ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, Classify(computeErr).Status)

	err := errors.Join(computeErr, fmt.Errorf("%w: db down", pricingdomain.ErrRefundFailed))
	assert.Equal(t, http.StatusInternalServerError, Classify(err).Status)
}
