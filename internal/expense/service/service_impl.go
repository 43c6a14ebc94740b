package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/expense/domain"
	"github.com/smallbiznis/atelier/pkg/db/option"
	"github.com/smallbiznis/atelier/pkg/repository"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
}

type service struct {
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	expenses repository.Repository[domain.Expense]
}

func New(p Params) domain.Service {
	return &service{
		log:      p.Log.Named("expense.service"),
		clock:    p.Clock,
		genID:    p.GenID,
		expenses: repository.ProvideStore[domain.Expense](p.DB),
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Expense, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, domain.ErrInvalidTitle
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if req.VAT < 0 || req.VAT > req.Amount {
		return nil, domain.ErrInvalidVAT
	}
	if req.VAT > 0 && !req.VATApplicable {
		return nil, domain.ErrVATNotApplied
	}
	if req.IncurredAt.IsZero() {
		return nil, domain.ErrInvalidTime
	}

	now := s.clock.Now()
	expense := &domain.Expense{
		ID:            s.genID.Generate(),
		Title:         strings.TrimSpace(req.Title),
		Category:      strings.TrimSpace(req.Category),
		Amount:        req.Amount,
		VAT:           req.VAT,
		VATApplicable: req.VATApplicable,
		IncurredAt:    req.IncurredAt.UTC(),
		Notes:         req.Notes,
		Metadata:      datatypes.JSONMap(req.Metadata),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.expenses.Create(ctx, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Expense, error) {
	expense, err := s.expenses.FindOne(ctx, &domain.Expense{ID: id})
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, domain.ErrNotFound
	}
	return expense, nil
}

func (s *service) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Expense, error) {
	query := &domain.Expense{}
	opts := []option.QueryOption{}
	if filter.Category != "" {
		query.Category = filter.Category
	}
	if filter.From != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "incurred_at", Operator: option.GTE, Value: filter.From.UTC()}))
	}
	if filter.To != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "incurred_at", Operator: option.LT, Value: filter.To.UTC()}))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	opts = append(opts,
		option.WithLimit(limit),
		option.WithSortBy(option.QuerySortBy{
			Allow:   map[string]bool{"incurred_at": true, "created_at": true},
			SortBy:  "incurred_at",
			OrderBy: "DESC",
		}),
	)
	return s.expenses.Find(ctx, query, opts...)
}
