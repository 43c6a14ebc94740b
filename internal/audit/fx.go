package audit

import (
	"github.com/smallbiznis/atelier/internal/audit/repository"
	"github.com/smallbiznis/atelier/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
