package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/memberrequest/internal/config"
	"github.com/smallbiznis/memberrequest/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		if err := Run(conn); err != nil {
			return err
		}
		if cfg.BootstrapSysadmin == "" {
			return nil
		}
		created, err := seed.EnsureSysadmin(conn, node, cfg.BootstrapSysadmin)
		if err != nil {
			return err
		}
		if created {
			log.Info("bootstrap sysadmin created", zap.String("name", cfg.BootstrapSysadmin))
		}
		return nil
	}),
)
