package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	messagedomain "github.com/smallbiznis/atelier/internal/message/domain"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
)

// ListMessages returns the order's thread. A logistics viewer without history
// access only sees messages from the handoff onward.
func (s *Server) ListMessages(c *gin.Context) {
	orderID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, orderdomain.ErrNotFound)
		return
	}

	messages, err := s.messageSvc.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if c.Query("viewer") == "logistics" {
		order, err := s.orderSvc.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !order.LogisticsHistoryAccess {
			visible := messages[:0]
			for _, msg := range messages {
				if order.HandoffAt != nil && !msg.CreatedAt.Before(*order.HandoffAt) {
					visible = append(visible, msg)
				}
			}
			messages = visible
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": messages})
}

type appendMessageBody struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

func (s *Server) AppendMessage(c *gin.Context) {
	orderID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, orderdomain.ErrNotFound)
		return
	}

	var body appendMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	msg, err := s.messageSvc.Append(c.Request.Context(), messagedomain.Message{
		OrderID: orderID,
		Kind:    messagedomain.MessageKindChat,
		Author:  body.Author,
		Body:    body.Body,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": msg})
}
