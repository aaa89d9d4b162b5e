package main

import (
	"sendpool/pkg/config"
	"sendpool/pkg/db"
	"sendpool/pkg/gen"
	"sendpool/pkg/logger"
	"sendpool/pkg/otelcol"
	"sendpool/pkg/redis"
	taskq "sendpool/pkg/task"
	"sendpool/services/ledger"
	"sendpool/services/store"
	"sendpool/services/task"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		logger.Sentry,
		otelcol.Module,
		db.Module,
		redis.Module,
		gen.Module,
		store.Module,
		taskq.Client,
		taskq.Server,
		ledger.Module,
		task.Worker,
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, log *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
