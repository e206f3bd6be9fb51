// Package assistant answers price-quote requests from the chat assistant
// over NATS request-reply.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalyser/internal/apperror"
	"github.com/smallbiznis/catalyser/internal/observability/logger"
	"github.com/smallbiznis/catalyser/internal/pricing/calculator"
	pricingdomain "github.com/smallbiznis/catalyser/internal/pricing/domain"
	"go.uber.org/zap"
)

const SubjectPriceQuote = "catalyser.assistant.price_quote"

type QuoteRequest struct {
	UserID      string `json:"user_id"`
	ConverterID string `json:"converter_id"`
	Currency    string `json:"currency,omitempty"`
}

type ReplyError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Reply struct {
	OK               bool               `json:"ok"`
	Data             *calculator.Result `json:"data,omitempty"`
	Error            *ReplyError        `json:"error,omitempty"`
	CreditsRemaining *int64             `json:"credits_remaining,omitempty"`
}

type Handler struct {
	pricing pricingdomain.Service
	log     *zap.Logger
}

func NewHandler(pricing pricingdomain.Service, log *zap.Logger) *Handler {
	return &Handler{pricing: pricing, log: log.Named("assistant")}
}

// HandleQuote never returns an error; every outcome is encoded in the reply.
func (h *Handler) HandleQuote(ctx context.Context, payload []byte) Reply {
	var req QuoteRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errorReply(apperror.ErrInvalidRequest)
	}
	converterID, err := snowflake.ParseString(strings.TrimSpace(req.ConverterID))
	if err != nil {
		return errorReply(apperror.ErrInvalidRequest)
	}

	resp, err := h.pricing.Quote(ctx, pricingdomain.QuoteRequest{
		UserID:      req.UserID,
		ConverterID: converterID,
		Currency:    req.Currency,
	})
	if err != nil {
		class := apperror.Classify(err)
		if class.Type == apperror.TypeInternal {
			logger.WithContext(ctx, h.log).Error("assistant quote failed",
				zap.String("user_id", req.UserID),
				zap.String("converter_id", req.ConverterID),
				zap.Error(err),
			)
		}
		return errorReply(err)
	}

	remaining := resp.CreditsRemaining
	return Reply{
		OK:               true,
		Data:             &resp.Result,
		CreditsRemaining: &remaining,
	}
}

func errorReply(err error) Reply {
	class := apperror.Classify(err)
	message := class.Message
	if class.Type == apperror.TypeValidation && errors.Is(err, apperror.ErrInvalidRequest) {
		message = "user_id and converter_id are required"
	}
	return Reply{
		OK:    false,
		Error: &ReplyError{Type: class.Type, Message: message},
	}
}
