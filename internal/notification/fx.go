package notification

import (
	"github.com/smallbiznis/memberrequest/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(NewDispatcher),
	fx.Provide(newLocaleResolverFromConfig),
)

func newLocaleResolverFromConfig(cfg config.Config) *LocaleResolver {
	return NewLocaleResolver(cfg.DefaultLocale)
}
