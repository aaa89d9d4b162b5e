package task

import (
	"sendpool/pkg/config"
	"sendpool/pkg/middleware"
	"sendpool/pkg/taskname"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module serves the admin trigger on the API side.
var Module = fx.Module("task.service",
	fx.Provide(
		NewService,
		NewHandler,
	),
	fx.Invoke(
		migrate,
		registerRoutes,
	),
)

// Worker handles the reconcile task and schedules it daily.
var Worker = fx.Module("task.worker",
	fx.Provide(
		NewService,
		NewScheduler,
	),
	fx.Invoke(
		migrate,
		registerHandlers,
		StartScheduler,
	),
)

func migrate(cfg *config.Config, db *gorm.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	if err := db.AutoMigrate(&ReconcileRun{}); err != nil {
		zap.L().Error("[Task] auto migrate failed", zap.Error(err))
		return err
	}
	return nil
}

func registerRoutes(r *gin.Engine, h *Handler, cfg *config.Config) {
	h.Register(r, middleware.AuthRequired(cfg.Auth.JWTSecret))
}

func registerHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(taskname.LedgerReconcile, svc.HandleReconcileTask)
}
