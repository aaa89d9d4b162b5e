package ratelimit

import (
	"context"
	"testing"
	"time"

	"sendpool/pkg/errutil"
	"sendpool/services/store"
	"sendpool/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestGate(t *testing.T) (*Gate, *testutil.Fixtures) {
	db := testutil.NewTestDB(t)
	g := NewGate(db)
	g.now = func() time.Time { return noon }
	return g, testutil.NewFixtures(t, db)
}

func requireRateLimited(t *testing.T, err error, reason string) errutil.BaseError {
	t.Helper()
	be, ok := errutil.As(err)
	require.True(t, ok, "expected BaseError, got %v", err)
	require.Equal(t, errutil.StatusTooManyRequests, be.Code)
	require.Equal(t, reason, be.Reason)
	return be
}

func TestCheckUnknownAccount(t *testing.T) {
	g, _ := newTestGate(t)

	_, err := g.Check(context.Background(), 7)
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestCheckOrder(t *testing.T) {
	g, fx := newTestGate(t)
	ctx := context.Background()
	cooldown := noon.Add(time.Minute)

	// suspended wins over every later failure
	a := fx.Account(func(a *store.Account) {
		a.Status = store.AccountStatusSuspended
		a.ChannelConnected = false
		a.CooldownUntil = &cooldown
	})
	_, err := g.Check(ctx, a.ID)
	be, _ := errutil.As(err)
	require.Equal(t, errutil.StatusForbidden, be.Code)
	require.Equal(t, ReasonSuspended, be.Reason)

	// then the channel
	b := fx.Account(func(a *store.Account) {
		a.ChannelConnected = false
		a.CooldownUntil = &cooldown
	})
	_, err = g.Check(ctx, b.ID)
	require.True(t, errutil.Is(err, errutil.StatusInvalidState))

	// cooldown before quotas
	c := fx.Account(func(a *store.Account) {
		a.CooldownUntil = &cooldown
		a.DailyLimit = 1
	})
	fx.Jobs(c.ID, 1, 1, noon.Add(-10*time.Minute))
	_, err = g.Check(ctx, c.ID)
	requireRateLimited(t, err, ReasonCooldown)
}

func TestCheckCooldownRetryAfter(t *testing.T) {
	g, fx := newTestGate(t)
	until := noon.Add(30 * time.Second)
	a := fx.Account(func(a *store.Account) { a.CooldownUntil = &until })

	_, err := g.Check(context.Background(), a.ID)
	be := requireRateLimited(t, err, ReasonCooldown)
	require.Equal(t, 30, be.RetryAfter)

	// an elapsed cooldown no longer blocks
	g.now = func() time.Time { return until }
	got, err := g.Check(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
}

func TestCheckDailyBoundary(t *testing.T) {
	g, fx := newTestGate(t)
	ctx := context.Background()
	a := fx.Account(func(a *store.Account) {
		a.DailyLimit = 100
		a.HourlyLimit = 1000
	})

	// yesterday's jobs do not count
	fx.Jobs(a.ID, 1, 5, noon.Add(-13*time.Hour))
	fx.Jobs(a.ID, 1, 99, noon.Add(-2*time.Hour))

	_, err := g.Check(ctx, a.ID)
	require.NoError(t, err)

	fx.Jobs(a.ID, 1, 1, noon.Add(-2*time.Hour))
	_, err = g.Check(ctx, a.ID)
	be := requireRateLimited(t, err, ReasonDaily)
	require.Equal(t, 12*60*60, be.RetryAfter)
}

func TestCheckHourlySlidingWindow(t *testing.T) {
	g, fx := newTestGate(t)
	ctx := context.Background()
	a := fx.Account(func(a *store.Account) { a.HourlyLimit = 3 })

	fx.Jobs(a.ID, 1, 2, noon.Add(-30*time.Minute))
	fx.Jobs(a.ID, 1, 1, noon.Add(-61*time.Minute))
	_, err := g.Check(ctx, a.ID)
	require.NoError(t, err)

	fx.Jobs(a.ID, 1, 1, noon.Add(-5*time.Minute))
	_, err = g.Check(ctx, a.ID)
	requireRateLimited(t, err, ReasonHourly)

	usage, err := g.Usage(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4), usage.Today)
	require.Equal(t, int64(3), usage.LastHour)
}

func TestRetryAfterRoundsUp(t *testing.T) {
	require.Equal(t, 1, RetryAfter(noon.Add(100*time.Millisecond), noon))
	require.Equal(t, 30, RetryAfter(noon.Add(30*time.Second), noon))
	require.Equal(t, 0, RetryAfter(noon.Add(-time.Second), noon))
}
