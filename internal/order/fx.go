package order

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/atelier/internal/order/service"
)

var Module = fx.Module("order.service",
	fx.Provide(service.NewService),
)
