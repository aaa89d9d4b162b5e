package job

import (
	"context"

	"sendpool/pkg/config"
	"sendpool/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("job.service",
	fx.Provide(
		NewService,
		NewHandler,
		newLimiter,
	),
	fx.Invoke(registerRoutes),
)

func newLimiter(lc fx.Lifecycle, cfg *config.Config) *middleware.AccountLimiter {
	l := middleware.NewAccountLimiter(cfg.JobTake.PerMinute, cfg.JobTake.Burst)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go l.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return l
}

func registerRoutes(r *gin.Engine, h *Handler, cfg *config.Config) {
	h.Register(r, middleware.AuthRequired(cfg.Auth.JWTSecret))
}
