package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sendpool/pkg/errutil"
	"sendpool/pkg/metrics"
	"sendpool/pkg/repository"
	taskq "sendpool/pkg/task"
	"sendpool/pkg/taskname"
	"sendpool/services/ledger"
	"sendpool/services/store"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	ledger   *ledger.Service
	enqueuer taskq.Enqueuer
	now      func() time.Time

	runs repository.Repository[ReconcileRun]
}

type Params struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Ledger   *ledger.Service
	Enqueuer taskq.Enqueuer
}

func NewService(p Params) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		ledger:   p.Ledger,
		enqueuer: p.Enqueuer,
		now:      store.Now,
		runs:     repository.ProvideStore[ReconcileRun](p.DB),
	}
}

// Enqueue records a pending run and hands it to the worker queue.
func (s *Service) Enqueue(ctx context.Context, trigger string) (*ReconcileRun, error) {
	run := &ReconcileRun{
		ID:        s.node.Generate().Int64(),
		Trigger:   trigger,
		Status:    RunPending,
		CreatedAt: s.now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(reconcilePayload{RunID: run.ID})
	if err != nil {
		return nil, err
	}

	info, err := s.enqueuer.Enqueue(ctx, asynq.NewTask(taskname.LedgerReconcile, payload),
		asynq.Queue("low"),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
	)
	if err != nil {
		_ = s.runs.Update(ctx, run.ID, map[string]any{"status": RunFailed, "error_msg": err.Error()})
		zap.L().Error("failed to enqueue ledger reconcile", zap.Int64("run_id", run.ID), zap.Error(err))
		return nil, err
	}

	zap.L().Info("enqueued ledger reconcile",
		zap.Int64("run_id", run.ID),
		zap.String("trigger", trigger),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return run, nil
}

// HandleReconcileTask is the asynq handler. It only decodes the payload and
// delegates to Run.
func (s *Service) HandleReconcileTask(ctx context.Context, t *asynq.Task) error {
	var payload reconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("invalid reconcile payload", zap.Error(err))
		return fmt.Errorf("invalid reconcile payload: %v: %w", err, asynq.SkipRetry)
	}

	_, err := s.Run(ctx, payload.RunID)
	return err
}

// Run verifies every account's balance against its ledger and stores the
// report on the run.
func (s *Service) Run(ctx context.Context, runID int64) (*ledger.Report, error) {
	started := s.now()
	if err := s.runs.Update(ctx, runID, map[string]any{
		"status":     RunRunning,
		"started_at": started,
	}); err != nil {
		return nil, err
	}

	report, err := s.ledger.VerifyAll(ctx)
	if err != nil {
		_ = s.runs.Update(ctx, runID, map[string]any{
			"status":       RunFailed,
			"error_msg":    err.Error(),
			"completed_at": s.now(),
		})
		zap.L().Error("ledger reconcile failed", zap.Int64("run_id", runID), zap.Error(err))
		return nil, err
	}

	metrics.LedgerMismatches.Set(float64(len(report.Mismatches)))

	raw, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	if err := s.runs.Update(ctx, runID, map[string]any{
		"status":       RunSuccess,
		"checked":      report.Checked,
		"mismatches":   len(report.Mismatches),
		"report":       datatypes.JSON(raw),
		"completed_at": s.now(),
	}); err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.Int64("run_id", runID),
		zap.Int("checked", report.Checked),
		zap.Int("mismatches", len(report.Mismatches)),
		zap.Duration("duration", s.now().Sub(started)),
	)
	if report.Consistent() {
		log.Info("ledger reconcile finished")
	} else {
		log.Warn("ledger reconcile found mismatches")
	}
	return report, nil
}

func (s *Service) Get(ctx context.Context, runID int64) (*ReconcileRun, error) {
	run, err := s.runs.FindOne(ctx, &ReconcileRun{ID: runID})
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errutil.NotFound("reconcile run not found", nil)
	}
	return run, nil
}
