package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/memberrequest/internal/audit"
	"github.com/smallbiznis/memberrequest/internal/authorization"
	"github.com/smallbiznis/memberrequest/internal/clock"
	"github.com/smallbiznis/memberrequest/internal/config"
	"github.com/smallbiznis/memberrequest/internal/logger"
	"github.com/smallbiznis/memberrequest/internal/membership"
	"github.com/smallbiznis/memberrequest/internal/migration"
	"github.com/smallbiznis/memberrequest/internal/notification"
	"github.com/smallbiznis/memberrequest/internal/observability"
	"github.com/smallbiznis/memberrequest/internal/providers"
	"github.com/smallbiznis/memberrequest/internal/ratelimit"
	"github.com/smallbiznis/memberrequest/internal/server"
	"github.com/smallbiznis/memberrequest/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain
		audit.Module,
		authorization.Module,
		providers.Module,
		notification.Module,
		membership.Module,

		ratelimit.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
