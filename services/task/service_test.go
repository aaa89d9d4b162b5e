package task

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"sendpool/pkg/middleware"
	taskq "sendpool/pkg/task"
	"sendpool/pkg/taskname"
	"sendpool/services/ledger"
	"sendpool/services/store"
	"sendpool/services/testutil"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type taskEnv struct {
	db       *gorm.DB
	fx       *testutil.Fixtures
	enqueuer *taskq.MockEnqueuer
	svc      *Service
}

func newTaskEnv(t *testing.T) *taskEnv {
	t.Helper()
	db := testutil.NewTestDB(t, append(store.Models(), &ReconcileRun{})...)
	fx := testutil.NewFixtures(t, db)
	enqueuer := taskq.NewMockEnqueuer(gomock.NewController(t))

	return &taskEnv{
		db:       db,
		fx:       fx,
		enqueuer: enqueuer,
		svc: NewService(Params{
			DB:       db,
			Node:     fx.Node(),
			Ledger:   ledger.NewService(ledger.ServiceParams{DB: db, Node: fx.Node()}),
			Enqueuer: enqueuer,
		}),
	}
}

func anyOpts() []any {
	return []any{gomock.Any(), gomock.Any(), gomock.Any()}
}

func TestEnqueueThenRunRecordsReport(t *testing.T) {
	env := newTaskEnv(t)
	env.fx.Account()
	drifted := env.fx.Account(func(a *store.Account) { a.CreditBalance = decimal.RequireFromString("5.00") })

	var queued *asynq.Task
	env.enqueuer.EXPECT().Enqueue(gomock.Any(), gomock.Any(), anyOpts()...).
		DoAndReturn(func(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
			queued = task
			return &asynq.TaskInfo{ID: "t-1", Queue: "low"}, nil
		})

	run, err := env.svc.Enqueue(context.Background(), TriggerManual)
	require.NoError(t, err)
	require.Equal(t, RunPending, run.Status)
	require.Equal(t, taskname.LedgerReconcile, queued.Type())

	require.NoError(t, env.svc.HandleReconcileTask(context.Background(), queued))

	got, err := env.svc.Get(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, RunSuccess, got.Status)
	require.Equal(t, 2, got.Checked)
	require.Equal(t, 1, got.Mismatches)
	require.NotNil(t, got.CompletedAt)
	require.Contains(t, string(got.Report), strconv.FormatInt(drifted.ID, 10))
}

func TestEnqueueFailureMarksRunFailed(t *testing.T) {
	env := newTaskEnv(t)
	env.enqueuer.EXPECT().Enqueue(gomock.Any(), gomock.Any(), anyOpts()...).
		Return(nil, errors.New("redis down"))

	_, err := env.svc.Enqueue(context.Background(), TriggerScheduled)
	require.Error(t, err)

	var run ReconcileRun
	require.NoError(t, env.db.Take(&run).Error)
	require.Equal(t, RunFailed, run.Status)
	require.Equal(t, "redis down", run.ErrorMsg)
}

func TestHandleReconcileTaskBadPayload(t *testing.T) {
	env := newTaskEnv(t)
	err := env.svc.HandleReconcileTask(context.Background(), asynq.NewTask(taskname.LedgerReconcile, []byte("{")))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestGetUnknownRun(t *testing.T) {
	env := newTaskEnv(t)
	_, err := env.svc.Get(context.Background(), 42)
	require.Error(t, err)
}

func TestNextRunTime(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC) }

	require.Equal(t, at(1, 0), nextRunTime(at(0, 30), 1, 0))
	require.Equal(t, at(1, 0).AddDate(0, 0, 1), nextRunTime(at(1, 0), 1, 0))
	require.Equal(t, at(1, 0).AddDate(0, 0, 1), nextRunTime(at(13, 0), 1, 0))
	require.Equal(t, at(23, 45), nextRunTime(at(23, 44), 23, 45))
}

func TestVerifyEndpointRequiresAdmin(t *testing.T) {
	env := newTaskEnv(t)
	user := env.fx.Account()
	admin := env.fx.Account(func(a *store.Account) { a.Role = store.RoleAdmin })

	r := gin.New()
	r.Use(middleware.Error())
	NewHandler(env.svc).Register(r, middleware.AuthRequired("s"))

	post := func(a *store.Account) int {
		token, err := middleware.IssueToken("s", a.ID, string(a.Role), time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/admin/ledger/verify", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusForbidden, post(user))

	env.enqueuer.EXPECT().Enqueue(gomock.Any(), gomock.Any(), anyOpts()...).
		Return(&asynq.TaskInfo{ID: "t-2", Queue: "low"}, nil)
	require.Equal(t, http.StatusAccepted, post(admin))
}
