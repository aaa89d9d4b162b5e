package main

import (
	"sendpool/pkg/config"
	"sendpool/pkg/db"
	"sendpool/pkg/gen"
	"sendpool/pkg/health"
	"sendpool/pkg/httpapi"
	"sendpool/pkg/logger"
	"sendpool/pkg/otelcol"
	"sendpool/pkg/profiling"
	"sendpool/pkg/redis"
	"sendpool/pkg/server"
	taskq "sendpool/pkg/task"
	"sendpool/services/assignment"
	"sendpool/services/campaign"
	"sendpool/services/dispatch"
	"sendpool/services/job"
	"sendpool/services/ledger"
	"sendpool/services/ratelimit"
	"sendpool/services/settlement"
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
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		taskq.Client,
		store.Module,

		health.Module,
		httpapi.Module,

		ledger.Module,
		ratelimit.Module,
		campaign.Module,
		assignment.Module,
		dispatch.Module,
		settlement.Module,
		job.Module,
		task.Module,

		server.ProvideHTTPServer,
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, log *zap.Logger) fxevent.Logger {
	if cfg.IsProduction() {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: log}
})
