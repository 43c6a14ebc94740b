package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) CurrentPeriod(c *gin.Context) {
	period, totals, err := s.vatSvc.Snapshot(c.Request.Context(), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"period": period, "totals": totals})
}

func (s *Server) GetPeriodRecord(c *gin.Context) {
	month, year, ok := parsePeriodParams(c)
	if !ok {
		return
	}

	record, err := s.vatSvc.GetRecord(c.Request.Context(), month, year)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) ArchivePeriod(c *gin.Context) {
	month, year, ok := parsePeriodParams(c)
	if !ok {
		return
	}

	record, err := s.vatSvc.Archive(c.Request.Context(), month, year)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) AnnualTotal(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		AbortWithError(c, newValidationError("year", "invalid_year", "invalid year"))
		return
	}

	total, err := s.vatSvc.AnnualTotal(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "vat_payable": total})
}

func parsePeriodParams(c *gin.Context) (month, year int, ok bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		AbortWithError(c, newValidationError("year", "invalid_year", "invalid year"))
		return 0, 0, false
	}
	month, err = strconv.Atoi(c.Param("month"))
	if err != nil {
		AbortWithError(c, newValidationError("month", "invalid_month", "invalid month"))
		return 0, 0, false
	}
	return month, year, true
}
