package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/catalyser/internal/config"
	creditdomain "github.com/smallbiznis/catalyser/internal/credit/domain"
)

type openAccountRequest struct {
	InitialGrant *int64 `json:"initial_grant"`
	SourceDetail string `json:"source_detail"`
}

type grantCreditsRequest struct {
	Amount       int64          `json:"amount"`
	Type         string         `json:"type"`
	SourceDetail string         `json:"source_detail"`
	ExpiresAt    *time.Time     `json:"expires_at"`
	Metadata     map[string]any `json:"metadata"`
}

type debitFeatureRequest struct {
	Feature  string         `json:"feature"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) OpenCreditAccount(c *gin.Context) {
	var req openAccountRequest
	// an empty body opens the account with the signup grant
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.creditSvc.OpenAccount(c.Request.Context(), creditdomain.OpenAccountRequest{
		UserID:       c.Param("user_id"),
		InitialGrant: req.InitialGrant,
		SourceDetail: strings.TrimSpace(req.SourceDetail),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetCreditBalance(c *gin.Context) {
	resp, err := s.creditSvc.GetBalance(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GrantCredits(c *gin.Context) {
	var req grantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entryType := creditdomain.EntryType(strings.ToUpper(strings.TrimSpace(req.Type)))
	if entryType == "" {
		entryType = creditdomain.EntryTypeGrant
	}

	resp, err := s.creditSvc.Grant(c.Request.Context(), creditdomain.GrantRequest{
		UserID:       c.Param("user_id"),
		Amount:       req.Amount,
		Type:         entryType,
		SourceDetail: strings.TrimSpace(req.SourceDetail),
		ExpiresAt:    req.ExpiresAt,
		Metadata:     req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// DebitFeature meters a non-pricing feature at its configured cost.
func (s *Server) DebitFeature(c *gin.Context) {
	var req debitFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	feature := strings.ToLower(strings.TrimSpace(req.Feature))
	if feature == config.FeaturePriceView {
		AbortWithError(c, newValidationError("feature", "use_quote_endpoint", "price views are charged through the quote endpoint"))
		return
	}
	cost, ok := s.pricingCfg.Get().FeatureCost(feature)
	if !ok {
		AbortWithError(c, newValidationError("feature", "unknown_feature", "unknown feature"))
		return
	}

	metadata := map[string]any{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["feature"] = feature

	resp, err := s.creditSvc.TryDebit(c.Request.Context(), creditdomain.DebitRequest{
		UserID:       c.Param("user_id"),
		Amount:       cost,
		Type:         creditdomain.EntryTypeConsumption,
		SourceDetail: strings.ReplaceAll(feature, "_", " "),
		Metadata:     metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListCreditEntries(c *gin.Context) {
	afterSequence, err := parseOptionalInt64(c.Query("after_sequence"))
	if err != nil || afterSequence < 0 {
		AbortWithError(c, newValidationError("after_sequence", "invalid_after_sequence", "invalid after_sequence"))
		return
	}
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	resp, err := s.creditSvc.ListEntries(c.Request.Context(), creditdomain.ListEntriesRequest{
		UserID:        c.Param("user_id"),
		AfterSequence: afterSequence,
		Limit:         limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReconcileCredits(c *gin.Context) {
	resp, err := s.creditSvc.Reconcile(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
