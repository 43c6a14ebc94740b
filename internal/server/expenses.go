package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	expensedomain "github.com/smallbiznis/atelier/internal/expense/domain"
)

func (s *Server) CreateExpense(c *gin.Context) {
	var req expensedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	expense, err := s.expenseSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": expense})
}

type listExpensesQuery struct {
	Category string `form:"category"`
	From     string `form:"from"`
	To       string `form:"to"`
	Limit    int    `form:"limit"`
}

func (s *Server) ListExpenses(c *gin.Context) {
	var query listExpensesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := expensedomain.ListFilter{
		Category: strings.TrimSpace(query.Category),
		Limit:    query.Limit,
	}
	if v := strings.TrimSpace(query.From); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
			return
		}
		filter.From = &parsed
	}
	if v := strings.TrimSpace(query.To); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
			return
		}
		filter.To = &parsed
	}

	expenses, err := s.expenseSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": expenses})
}

func (s *Server) GetExpense(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, expensedomain.ErrNotFound)
		return
	}

	expense, err := s.expenseSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": expense})
}
