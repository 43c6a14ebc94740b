package domain

// transitions is the allowed status graph. No implicit skips: each forward
// step must be requested explicitly, and terminal states have no exits.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:          {OrderStatusApproved, OrderStatusCancelled},
	OrderStatusApproved:         {OrderStatusInProduction, OrderStatusCancelled},
	OrderStatusInProduction:     {OrderStatusReadyForDelivery, OrderStatusCancelled},
	OrderStatusReadyForDelivery: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:        nil,
	OrderStatusCancelled:        nil,
}

// CanTransition reports whether the status graph allows moving from one
// status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
