package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/config"
	"github.com/smallbiznis/aula/internal/migration"
	"github.com/smallbiznis/aula/internal/observability/logger"
	"github.com/smallbiznis/aula/internal/server"
	"github.com/smallbiznis/aula/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(config.Load),
		fx.Provide(loggerConfig),
		fx.Provide(logger.New),
		fx.Provide(newSnowflakeNode),
		fx.Provide(clock.New),
		fx.Provide(db.Open),

		migration.Module,
		server.Module,
	)
	app.Run()
}

func loggerConfig(cfg config.Config) logger.Config {
	return logger.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
		Version:     cfg.AppVersion,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	}
}

func newSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
