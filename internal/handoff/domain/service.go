// Package domain defines the production-to-logistics handoff contract. A
// handoff transfers responsibility for an order exactly once; repeats are
// absorbed, never duplicated.
package domain

import (
	"context"
	"errors"

	messagedomain "github.com/smallbiznis/atelier/internal/message/domain"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
)

var (
	ErrNotHandedOff  = errors.New("order_not_handed_off")
	ErrWrongHandler  = errors.New("order_not_with_production")
	ErrOrderNotReady = errors.New("order_not_ready_for_handoff")
)

type HandoffRequest struct {
	OrderID        string  `json:"order_id"`
	DeliveryOption *string `json:"delivery_option,omitempty"`
}

// HandoffResult reports the persisted order plus the marker message this
// call created. Message is nil on a repeated handoff.
type HandoffResult struct {
	Order         orderdomain.Order      `json:"order"`
	Message       *messagedomain.Message `json:"message,omitempty"`
	AlreadyDone   bool                   `json:"already_done"`
	SideEffectErr error                  `json:"-"`
}

type GrantHistoryAccessRequest struct {
	OrderID string `json:"order_id"`
	Allow   bool   `json:"allow"`
}

type Service interface {
	// Handoff transfers the order from production to logistics. A repeat
	// call updates only the delivery option, returns AlreadyDone with a nil
	// Message, and produces no further side effects.
	Handoff(ctx context.Context, req HandoffRequest) (HandoffResult, error)

	// GrantHistoryAccess sets the logistics visibility flag and records a
	// system message every time it is invoked.
	GrantHistoryAccess(ctx context.Context, req GrantHistoryAccessRequest) (orderdomain.Order, error)
}
