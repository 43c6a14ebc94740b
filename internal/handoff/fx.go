package handoff

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/atelier/internal/handoff/service"
)

var Module = fx.Module("handoff.service",
	fx.Provide(service.NewService),
)
