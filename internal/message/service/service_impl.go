package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	messagedomain "github.com/smallbiznis/atelier/internal/message/domain"
	"github.com/smallbiznis/atelier/pkg/db/option"
	"github.com/smallbiznis/atelier/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository[messagedomain.Message]
}

func NewService(p Params) messagedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("message.service"),
		genID: p.GenID,
		repo:  repository.ProvideStore[messagedomain.Message](p.DB),
	}
}

func (s *Service) Append(ctx context.Context, msg messagedomain.Message) (messagedomain.Message, error) {
	if msg.OrderID == 0 {
		return messagedomain.Message{}, messagedomain.ErrInvalidOrderID
	}
	if strings.TrimSpace(msg.Body) == "" {
		return messagedomain.Message{}, messagedomain.ErrEmptyBody
	}
	if msg.Kind == "" {
		msg.Kind = messagedomain.MessageKindChat
	}
	if msg.ID == 0 {
		msg.ID = s.genID.Generate()
	}

	if err := s.repo.Create(ctx, &msg); err != nil {
		return messagedomain.Message{}, err
	}
	return msg, nil
}

func (s *Service) ListByOrder(ctx context.Context, orderID snowflake.ID) ([]messagedomain.Message, error) {
	if orderID == 0 {
		return nil, messagedomain.ErrInvalidOrderID
	}

	items, err := s.repo.Find(ctx, &messagedomain.Message{OrderID: orderID},
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}, SortBy: "created_at", OrderBy: "ASC"}),
	)
	if err != nil {
		return nil, err
	}

	messages := make([]messagedomain.Message, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		messages = append(messages, *item)
	}
	return messages, nil
}

func (s *Service) FindSystemByBody(ctx context.Context, orderID snowflake.ID, body string) (*messagedomain.Message, error) {
	if orderID == 0 {
		return nil, messagedomain.ErrInvalidOrderID
	}

	return s.repo.FindOne(ctx, &messagedomain.Message{
		OrderID: orderID,
		Kind:    messagedomain.MessageKindSystem,
		Body:    body,
	})
}
