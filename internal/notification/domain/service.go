// Package domain defines the fire-and-forget notification contract. Delivery
// failure is logged by the implementation and never propagated into order
// lifecycle results.
package domain

import "context"

// EventType names a customer- or operator-facing notification event.
type EventType string

const (
	EventOrderApproved  EventType = "order.approved"
	EventOrderCancelled EventType = "order.cancelled"
	EventRefundConsider EventType = "order.refund_consider"
	EventOrderHandoff   EventType = "order.handoff"
	EventOrderReady     EventType = "order.ready_for_delivery"
	EventOrderDelivered EventType = "order.delivered"
	EventPeriodArchived EventType = "vat.period_archived"
)

type Service interface {
	// Notify dispatches an event for an order (or period) reference. The
	// returned error is informational; callers treat it as a secondary,
	// non-fatal failure.
	Notify(ctx context.Context, event EventType, ref string, payload map[string]any) error
}
