package logger

import (
	"context"
	"time"

	"sendpool/pkg/config"

	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sentry reports unexpected errors when SENTRY.DSN is set. Without a DSN it
// is a no-op and the hub stays clientless.
var Sentry = fx.Module("sentry", fx.Invoke(InitSentry))

func InitSentry(lc fx.Lifecycle, cfg *config.Config) error {
	if cfg.Sentry.DSN == "" {
		return nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.AppVersion,
		EnableTracing:    cfg.Sentry.TracesSampleRate > 0,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	}); err != nil {
		zap.L().Error("sentry init failed", zap.Error(err))
		return err
	}

	zap.L().Info("sentry initialized", zap.String("env", cfg.AppEnv))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sentry.Flush(2 * time.Second)
			return nil
		},
	})
	return nil
}
