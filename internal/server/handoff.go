package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	handoffdomain "github.com/smallbiznis/atelier/internal/handoff/domain"
)

type handoffBody struct {
	DeliveryOption *string `json:"delivery_option,omitempty"`
}

func (s *Server) HandoffOrder(c *gin.Context) {
	// The body is optional; a bare POST hands off with no delivery option.
	var body handoffBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.handoffSvc.Handoff(c.Request.Context(), handoffdomain.HandoffRequest{
		OrderID:        c.Param("id"),
		DeliveryOption: body.DeliveryOption,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"data": result.Order, "already_done": result.AlreadyDone}
	if result.Message != nil {
		resp["message"] = result.Message
	}
	if result.SideEffectErr != nil {
		resp["warning"] = "handed off, but a follow-up action failed"
	}
	c.JSON(http.StatusOK, resp)
}

type historyAccessBody struct {
	Allow bool `json:"allow"`
}

func (s *Server) GrantHistoryAccess(c *gin.Context) {
	// An absent body revokes: Allow defaults to false.
	var body historyAccessBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.handoffSvc.GrantHistoryAccess(c.Request.Context(), handoffdomain.GrantHistoryAccessRequest{
		OrderID: c.Param("id"),
		Allow:   body.Allow,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}
