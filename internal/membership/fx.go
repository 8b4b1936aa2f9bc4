package membership

import (
	"github.com/smallbiznis/memberrequest/internal/membership/repository"
	"github.com/smallbiznis/memberrequest/internal/membership/service"
	"go.uber.org/fx"
)

var Module = fx.Module("membership",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
