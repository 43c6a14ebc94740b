package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
)

func (s *Server) CreateOrder(c *gin.Context) {
	var req orderdomain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

type listOrdersQuery struct {
	Status  string `form:"status"`
	Handler string `form:"handler"`
	SortBy  string `form:"sort_by"`
	OrderBy string `form:"order_by"`
}

func (s *Server) ListOrders(c *gin.Context) {
	var query listOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := orderdomain.ListOrderRequest{
		SortBy:  query.SortBy,
		OrderBy: query.OrderBy,
	}
	if v := strings.TrimSpace(query.Status); v != "" {
		status := orderdomain.OrderStatus(strings.ToUpper(v))
		req.Status = &status
	}
	if v := strings.TrimSpace(query.Handler); v != "" {
		handler := orderdomain.Handler(strings.ToUpper(v))
		req.Handler = &handler
	}

	resp, err := s.orderSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Orders})
}

func (s *Server) GetOrder(c *gin.Context) {
	id := c.Param("id")

	var (
		order orderdomain.Order
		err   error
	)
	if strings.HasPrefix(id, "ORD-") {
		order, err = s.orderSvc.GetByNumber(c.Request.Context(), id)
	} else {
		order, err = s.orderSvc.GetByID(c.Request.Context(), id)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

type approveOrderBody struct {
	PaymentReference string `json:"payment_reference"`
	AdminOverride    bool   `json:"admin_override"`
}

func (s *Server) ApproveOrder(c *gin.Context) {
	var body approveOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.orderSvc.Approve(c.Request.Context(), orderdomain.ApproveRequest{
		OrderID:          c.Param("id"),
		PaymentReference: body.PaymentReference,
		AdminOverride:    body.AdminOverride,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"data": result.Order}
	if result.SideEffectErr != nil {
		resp["warning"] = "approved, but a follow-up action failed and will be retried"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) StartProduction(c *gin.Context) {
	s.transition(c, s.orderSvc.StartProduction)
}

func (s *Server) MarkReady(c *gin.Context) {
	s.transition(c, s.orderSvc.MarkReady)
}

func (s *Server) MarkDelivered(c *gin.Context) {
	s.transition(c, s.orderSvc.MarkDelivered)
}

func (s *Server) transition(c *gin.Context, fn func(ctx context.Context, id string) (orderdomain.Order, error)) {
	order, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

type cancelOrderBody struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelOrder(c *gin.Context) {
	var body cancelOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.orderSvc.Cancel(c.Request.Context(), orderdomain.CancelRequest{
		OrderID: c.Param("id"),
		Reason:  body.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"data": result.Order}
	if result.SideEffectErr != nil {
		resp["warning"] = "cancelled, but a follow-up notification failed"
	}
	c.JSON(http.StatusOK, resp)
}

type verifyPaymentBody struct {
	PaymentReference string `json:"payment_reference"`
}

func (s *Server) VerifyPayment(c *gin.Context) {
	var body verifyPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.VerifyPayment(c.Request.Context(), orderdomain.VerifyPaymentRequest{
		OrderID:          c.Param("id"),
		PaymentReference: body.PaymentReference,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

type updateQuantityBody struct {
	NewQuantity int64 `json:"new_quantity"`
}

func (s *Server) UpdateQuantity(c *gin.Context) {
	var body updateQuantityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	change, err := s.orderSvc.UpdateQuantity(c.Request.Context(), orderdomain.UpdateQuantityRequest{
		OrderID:     c.Param("id"),
		ItemID:      c.Param("item_id"),
		NewQuantity: body.NewQuantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": change})
}
