package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"

	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
)

type Service interface {
	// GenerateForOrder creates the invoice snapshot for an approved order.
	// Generating twice for the same order returns the existing invoice.
	GenerateForOrder(ctx context.Context, order *orderdomain.Order) (*Invoice, error)

	GetByOrderID(ctx context.Context, orderID snowflake.ID) (*Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
}
