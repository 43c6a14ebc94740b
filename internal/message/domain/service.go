package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Append(ctx context.Context, msg Message) (Message, error)
	ListByOrder(ctx context.Context, orderID snowflake.ID) ([]Message, error)
	// FindSystemByBody returns the oldest system message on the order with
	// exactly the given body, or nil when none exists.
	FindSystemByBody(ctx context.Context, orderID snowflake.ID, body string) (*Message, error)
}

var (
	ErrEmptyBody      = errors.New("empty_message_body")
	ErrInvalidOrderID = errors.New("invalid_order_id")
)
