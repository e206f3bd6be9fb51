package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	metalpricedomain "github.com/smallbiznis/catalyser/internal/metalprice/domain"
	recoveryratedomain "github.com/smallbiznis/catalyser/internal/recoveryrate/domain"
)

func (s *Server) RecordMetalPrices(c *gin.Context) {
	var req metalpricedomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.metalPriceSvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetCurrentMetalPrices(c *gin.Context) {
	resp, err := s.metalPriceSvc.GetCurrentPrices(c.Request.Context(), c.Query("currency"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRecoveryRates(c *gin.Context) {
	resp, err := s.recoveryRateSvc.GetActiveRecoveryRates(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateRecoveryRates(c *gin.Context) {
	var req recoveryratedomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.recoveryRateSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
