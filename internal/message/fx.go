package message

import (
	"github.com/smallbiznis/atelier/internal/message/service"
	"go.uber.org/fx"
)

var Module = fx.Module("message.service",
	fx.Provide(service.NewService),
)
