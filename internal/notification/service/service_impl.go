package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/notification/domain"
	"github.com/smallbiznis/atelier/internal/notification/email"
	"github.com/smallbiznis/atelier/internal/observability/logger"
)

const queueKey = "atelier:notifications"

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Redis  *redis.Client  `optional:"true"`
	Mailer email.Provider `optional:"true"`
}

type service struct {
	log    *zap.Logger
	clock  clock.Clock
	redis  *redis.Client
	mailer email.Provider
}

func New(p Params) domain.Service {
	return &service{
		log:    p.Log.Named("notification.service"),
		clock:  p.Clock,
		redis:  p.Redis,
		mailer: p.Mailer,
	}
}

type envelope struct {
	Event     domain.EventType `json:"event"`
	Ref       string           `json:"ref"`
	Payload   map[string]any   `json:"payload,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

var emailSubjects = map[domain.EventType]string{
	domain.EventOrderApproved:  "Your order has been approved",
	domain.EventOrderReady:     "Your order is ready for delivery",
	domain.EventOrderDelivered: "Your order has been delivered",
	domain.EventOrderCancelled: "Your order has been cancelled",
}

// Notify enqueues the event for downstream consumers when redis is configured
// and falls back to structured logging otherwise. Either way the event is
// recorded; a queue failure degrades to the log path. Customer-facing events
// additionally fan out to email when a recipient is present in the payload.
func (s *service) Notify(ctx context.Context, event domain.EventType, ref string, payload map[string]any) error {
	env := envelope{
		Event:     event,
		Ref:       ref,
		Payload:   payload,
		CreatedAt: s.clock.Now(),
	}

	s.sendEmail(ctx, event, ref, payload)

	if s.redis != nil {
		body, err := json.Marshal(env)
		if err == nil {
			if err = s.redis.LPush(ctx, queueKey, body).Err(); err == nil {
				return nil
			}
		}
		logger.FromContext(ctx).Warn("notification enqueue failed, falling back to log",
			zap.String("event", string(event)),
			zap.String("ref", ref),
			zap.Error(err),
		)
	}

	logger.FromContext(ctx).Info("notification",
		zap.String("event", string(event)),
		zap.String("ref", ref),
		zap.Any("payload", payload),
	)
	return nil
}

func (s *service) sendEmail(ctx context.Context, event domain.EventType, ref string, payload map[string]any) {
	if s.mailer == nil {
		return
	}
	subject, ok := emailSubjects[event]
	if !ok {
		return
	}
	to, _ := payload["customer_email"].(string)
	if to == "" {
		return
	}

	body := fmt.Sprintf("<p>Order <strong>%s</strong>: %s.</p>", ref, subject)
	if err := s.mailer.Send(ctx, []string{to}, subject, body); err != nil {
		logger.FromContext(ctx).Warn("notification email failed",
			zap.String("event", string(event)),
			zap.String("ref", ref),
			zap.Error(err),
		)
	}
}
