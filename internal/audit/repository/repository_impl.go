package repository

import (
	"context"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/atelier/internal/audit/domain"
	"github.com/smallbiznis/atelier/pkg/db/option"
	"github.com/smallbiznis/atelier/pkg/repository"
	"gorm.io/gorm"
)

type auditRepository struct {
	db    *gorm.DB
	store repository.Repository[auditdomain.AuditLog]
}

func NewRepository(db *gorm.DB) auditdomain.Repository {
	return &auditRepository{
		db:    db,
		store: repository.ProvideStore[auditdomain.AuditLog](db),
	}
}

func (r *auditRepository) Insert(ctx context.Context, db *gorm.DB, entry *auditdomain.AuditLog) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, filter auditdomain.ListAuditLogRequest, cursor *auditdomain.AuditCursor, limit int) ([]*auditdomain.AuditLog, error) {
	query := &auditdomain.AuditLog{
		Action:     strings.TrimSpace(filter.Action),
		TargetType: strings.TrimSpace(filter.TargetType),
		ActorType:  strings.TrimSpace(filter.ActorType),
	}
	if targetID := strings.TrimSpace(filter.TargetID); targetID != "" {
		query.TargetID = &targetID
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}, SortBy: "created_at", OrderBy: "DESC"}),
	}
	if filter.StartAt != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.GTE, Value: *filter.StartAt}))
	}
	if filter.EndAt != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.LTE, Value: *filter.EndAt}))
	}
	if cursor != nil && cursor.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt); err == nil {
			opts = append(opts, option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.LT, Value: ts}))
		}
	}
	if limit > 0 {
		// One extra row signals another page.
		opts = append(opts, option.WithLimit(limit+1))
	}

	return r.store.Find(ctx, query, opts...)
}
