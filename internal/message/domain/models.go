// Package domain contains the per-order message thread. System messages are
// the user-visible audit trail for handoffs and quantity changes.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MessageKind separates operator chat from system-generated entries.
type MessageKind string

const (
	MessageKindChat   MessageKind = "CHAT"
	MessageKindSystem MessageKind = "SYSTEM"
)

// Message is one entry on an order's thread.
type Message struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID   snowflake.ID `gorm:"not null;index" json:"order_id"`
	Kind      MessageKind  `gorm:"type:text;not null;default:'CHAT'" json:"kind"`
	Author    string       `gorm:"type:text" json:"author"`
	Body      string       `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (Message) TableName() string { return "order_messages" }
