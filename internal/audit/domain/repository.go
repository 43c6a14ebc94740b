package domain

import (
	"context"

	"gorm.io/gorm"
)

// AuditCursor points past the last returned row for keyset pagination.
type AuditCursor struct {
	ID        string
	CreatedAt string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, filter ListAuditLogRequest, cursor *AuditCursor, limit int) ([]*AuditLog, error)
}
