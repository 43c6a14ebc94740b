package expense

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/atelier/internal/expense/service"
)

var Module = fx.Module("expense.service",
	fx.Provide(service.New),
)
