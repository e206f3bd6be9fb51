package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/catalyser/internal/pricing/domain"
)

type setPricingProfileRequest struct {
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
}

func (s *Server) QuoteConverter(c *gin.Context) {
	converterID, err := parseSnowflakeID(c.Param("converter_id"))
	if err != nil {
		AbortWithError(c, newValidationError("converter_id", "invalid_converter_id", "invalid converter_id"))
		return
	}

	resp, err := s.pricingSvc.Quote(c.Request.Context(), pricingdomain.QuoteRequest{
		UserID:      c.Param("user_id"),
		ConverterID: converterID,
		Currency:    strings.TrimSpace(c.Query("currency")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPricingProfile(c *gin.Context) {
	resp, err := s.pricingSvc.GetUserDiscount(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetPricingProfile(c *gin.Context) {
	var req setPricingProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DiscountPercent == nil {
		AbortWithError(c, newValidationError("discount_percent", "required", "discount_percent is required"))
		return
	}

	resp, err := s.pricingSvc.SetUserDiscount(c.Request.Context(), pricingdomain.SetDiscountRequest{
		UserID:          c.Param("user_id"),
		DiscountPercent: *req.DiscountPercent,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
