package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"sendpool/pkg/errutil"
	"sendpool/services/assignment"
	"sendpool/services/campaign"
	"sendpool/services/store"
	"sendpool/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type dispatchEnv struct {
	db       *gorm.DB
	fx       *testutil.Fixtures
	sender   *MockSender
	dispatch *Dispatcher
	account  *store.Account
	campaign *store.Campaign
}

func newDispatchEnv(t *testing.T) *dispatchEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	fx := testutil.NewFixtures(t, db)

	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	sender.EXPECT().Driver().Return("mock").AnyTimes()

	return &dispatchEnv{
		db:       db,
		fx:       fx,
		sender:   sender,
		dispatch: NewDispatcher(db, sender, campaign.NewTemplates(db), time.Second),
		account:  fx.Account(),
		campaign: fx.Campaign(2),
	}
}

func (e *dispatchEnv) assign(t *testing.T) *assignment.Assignment {
	t.Helper()
	locker := assignment.NewLocker(assignment.Params{DB: e.db, Node: e.fx.Node()})
	a, err := locker.Assign(context.Background(), e.account, []*store.Campaign{e.campaign})
	require.NoError(t, err)
	return a
}

func TestDispatchSent(t *testing.T) {
	env := newDispatchEnv(t)
	env.fx.Template(env.campaign.ID, func(m *store.MessageTemplate) { m.Body = "Hello there" })
	a := env.assign(t)

	var sent Message
	env.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, msg Message) (string, error) {
			_, hasDeadline := ctx.Deadline()
			require.True(t, hasDeadline)
			sent = msg
			return "MSG-1", nil
		})

	res, err := env.dispatch.Dispatch(context.Background(), env.account, a)
	require.NoError(t, err)
	require.Equal(t, store.JobStatusSent, res.Status)
	require.Equal(t, a.Job.ID, res.JobID)
	require.Equal(t, "promo", res.CampaignName)
	require.Equal(t, 30, res.CooldownSeconds)
	require.Equal(t, "Hello there", sent.Text)
	require.Equal(t, a.Target.Phone, sent.To)

	var target store.Target
	env.fx.Reload(&target, a.Target.ID)
	require.Equal(t, store.TargetSent, target.Status)
	require.Equal(t, "MSG-1", target.MessageID)
	require.NotNil(t, target.SentAt)

	var job store.Job
	env.fx.Reload(&job, a.Job.ID)
	require.Equal(t, store.JobStatusSent, job.Status)
	require.Equal(t, "MSG-1", job.MessageID)
}

func TestDispatchSenderFailure(t *testing.T) {
	env := newDispatchEnv(t)
	env.fx.Template(env.campaign.ID)
	a := env.assign(t)

	env.sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return("", errors.New("connection refused"))

	_, err := env.dispatch.Dispatch(context.Background(), env.account, a)
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusDispatchFailed, be.Code)
	require.Equal(t, 502, be.Code.HTTPStatus())
	require.NotEmpty(t, be.Meta["job_id"])

	var target store.Target
	env.fx.Reload(&target, a.Target.ID)
	require.Equal(t, store.TargetFailed, target.Status)
	require.NotNil(t, target.FailedAt)

	var job store.Job
	env.fx.Reload(&job, a.Job.ID)
	require.Equal(t, store.JobStatusFailed, job.Status)

	var account store.Account
	env.fx.Reload(&account, env.account.ID)
	require.NotNil(t, account.CooldownUntil, "a failed send keeps its cooldown")
}

func TestDispatchMissingMessageID(t *testing.T) {
	env := newDispatchEnv(t)
	env.fx.Template(env.campaign.ID)
	a := env.assign(t)

	env.sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return("", nil)

	_, err := env.dispatch.Dispatch(context.Background(), env.account, a)
	require.True(t, errutil.Is(err, errutil.StatusDispatchFailed))
	require.True(t, errors.Is(err, ErrNoMessageID))
}

func TestDispatchWithoutTemplate(t *testing.T) {
	env := newDispatchEnv(t)
	a := env.assign(t)

	_, err := env.dispatch.Dispatch(context.Background(), env.account, a)
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusDispatchFailed, be.Code)
	require.True(t, errutil.Is(be.Err, errutil.StatusInvalidState))

	var target store.Target
	env.fx.Reload(&target, a.Target.ID)
	require.Equal(t, store.TargetFailed, target.Status)

	var c store.Campaign
	env.fx.Reload(&c, env.campaign.ID)
	require.Equal(t, 1, c.TargetAssigned)
}

type reservingSender struct {
	*MockSender
	*MockIDReserver
}

func TestDispatchStoresReservedIDBeforeSend(t *testing.T) {
	env := newDispatchEnv(t)
	env.fx.Template(env.campaign.ID)
	a := env.assign(t)

	reserver := NewMockIDReserver(gomock.NewController(t))
	reserver.EXPECT().ReserveMessageID(env.account.PhoneNumber).Return("RES-1", nil)
	d := NewDispatcher(env.db, reservingSender{env.sender, reserver}, campaign.NewTemplates(env.db), time.Second)

	env.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, msg Message) (string, error) {
			require.Equal(t, "RES-1", msg.ID)

			var target store.Target
			env.fx.Reload(&target, a.Target.ID)
			require.Equal(t, "RES-1", target.MessageID)
			require.Equal(t, store.TargetAssigned, target.Status)

			var job store.Job
			env.fx.Reload(&job, a.Job.ID)
			require.Equal(t, "RES-1", job.MessageID)
			return "RES-1", nil
		})

	res, err := d.Dispatch(context.Background(), env.account, a)
	require.NoError(t, err)
	require.Equal(t, "RES-1", res.MessageID)

	var target store.Target
	env.fx.Reload(&target, a.Target.ID)
	require.Equal(t, store.TargetSent, target.Status)
}

func TestDispatchReserveFailure(t *testing.T) {
	env := newDispatchEnv(t)
	env.fx.Template(env.campaign.ID)
	a := env.assign(t)

	reserver := NewMockIDReserver(gomock.NewController(t))
	reserver.EXPECT().ReserveMessageID(gomock.Any()).Return("", errors.New("no connected session"))
	d := NewDispatcher(env.db, reservingSender{env.sender, reserver}, campaign.NewTemplates(env.db), time.Second)

	_, err := d.Dispatch(context.Background(), env.account, a)
	require.True(t, errutil.Is(err, errutil.StatusDispatchFailed))

	var target store.Target
	env.fx.Reload(&target, a.Target.ID)
	require.Equal(t, store.TargetFailed, target.Status)
	require.Empty(t, target.MessageID)
}
