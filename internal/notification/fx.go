package notification

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/atelier/internal/notification/email"
	"github.com/smallbiznis/atelier/internal/notification/service"
)

var Module = fx.Module("notification.service",
	email.Module,
	fx.Provide(service.New),
)
