package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
)

func (s *Server) QuotePrice(c *gin.Context) {
	var req orderdomain.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.Quote(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Breakdown})
}
