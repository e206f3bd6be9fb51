package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	converterdomain "github.com/smallbiznis/catalyser/internal/converter/domain"
)

func (s *Server) CreateConverter(c *gin.Context) {
	var req converterdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.converterSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListConverters(c *gin.Context) {
	afterID, err := parseOptionalSnowflakeID(c.Query("after_id"))
	if err != nil {
		AbortWithError(c, newValidationError("after_id", "invalid_after_id", "invalid after_id"))
		return
	}
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	resp, err := s.converterSvc.List(c.Request.Context(), converterdomain.ListRequest{
		AfterID: afterID,
		Limit:   limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetConverter(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("converter_id"))
	if err != nil {
		AbortWithError(c, newValidationError("converter_id", "invalid_converter_id", "invalid converter_id"))
		return
	}

	resp, err := s.converterSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
