package ratelimit

import (
	"context"
	"math"
	"time"

	"sendpool/pkg/db/option"
	"sendpool/pkg/errutil"
	"sendpool/pkg/repository"
	"sendpool/services/store"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("ratelimit", fx.Provide(NewGate))

const (
	ReasonSuspended     = "suspended"
	ReasonNotConnected  = "not_connected"
	ReasonCooldown      = "cooldown"
	ReasonDaily         = "daily"
	ReasonHourly        = "hourly"
	ReasonCampaignDaily = "campaign_daily"
)

// Gate decides whether an account may request a job right now. It only
// reads; the cooldown it checks is written by the assignment transaction.
type Gate struct {
	now func() time.Time

	accounts repository.Repository[store.Account]
	jobs     repository.Repository[store.Job]
}

func NewGate(db *gorm.DB) *Gate {
	return &Gate{
		now:      store.Now,
		accounts: repository.ProvideStore[store.Account](db),
		jobs:     repository.ProvideStore[store.Job](db),
	}
}

type Usage struct {
	Today    int64 `json:"jobs_today"`
	LastHour int64 `json:"jobs_last_hour"`
}

// Check runs the eligibility checks in a fixed order and returns the first
// failure.
func (g *Gate) Check(ctx context.Context, accountID int64) (*store.Account, error) {
	account, err := g.accounts.FindOne(ctx, &store.Account{ID: accountID})
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errutil.NotFound("account not found", nil)
	}

	if !account.IsActive() {
		return nil, errutil.Forbidden("account is suspended", nil, errutil.WithReason(ReasonSuspended))
	}

	if !account.ChannelConnected {
		return nil, errutil.InvalidState("messaging channel is not connected", nil, errutil.WithReason(ReasonNotConnected))
	}

	now := g.now()
	if account.CooldownUntil != nil && account.CooldownUntil.After(now) {
		return nil, errutil.TooManyRequest("cooldown active", nil,
			errutil.WithReason(ReasonCooldown),
			errutil.WithRetryAfter(RetryAfter(*account.CooldownUntil, now)),
		)
	}

	usage, err := g.usage(ctx, accountID, now)
	if err != nil {
		return nil, err
	}

	if usage.Today >= int64(account.DailyLimit) {
		return nil, errutil.TooManyRequest("daily job limit reached", nil,
			errutil.WithReason(ReasonDaily),
			errutil.WithRetryAfter(RetryAfter(store.StartOfDay(now).Add(24*time.Hour), now)),
		)
	}

	if usage.LastHour >= int64(account.HourlyLimit) {
		return nil, errutil.TooManyRequest("hourly job limit reached", nil, errutil.WithReason(ReasonHourly))
	}

	return account, nil
}

// Usage reports the counts the daily and hourly checks compare against.
func (g *Gate) Usage(ctx context.Context, accountID int64) (*Usage, error) {
	return g.usage(ctx, accountID, g.now())
}

func (g *Gate) usage(ctx context.Context, accountID int64, now time.Time) (*Usage, error) {
	today, err := g.jobs.Count(ctx, &store.Job{UserID: accountID}, option.ApplyOperator(option.Condition{
		Field: "created_at", Operator: option.GTE, Value: store.StartOfDay(now),
	}))
	if err != nil {
		return nil, err
	}

	hour, err := g.jobs.Count(ctx, &store.Job{UserID: accountID}, option.ApplyOperator(option.Condition{
		Field: "created_at", Operator: option.GTE, Value: now.Add(-time.Hour),
	}))
	if err != nil {
		return nil, err
	}

	return &Usage{Today: today, LastHour: hour}, nil
}

// RetryAfter is the whole seconds until t, rounded up.
func RetryAfter(t, now time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
