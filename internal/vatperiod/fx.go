package vatperiod

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/atelier/internal/vatperiod/service"
)

var Module = fx.Module("vatperiod.service",
	fx.Provide(service.NewService),
)
