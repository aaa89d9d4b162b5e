package job

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"sendpool/pkg/db/option"
	"sendpool/pkg/db/pagination"
	"sendpool/pkg/errutil"
	"sendpool/pkg/metrics"
	"sendpool/pkg/repository"
	"sendpool/services/assignment"
	"sendpool/services/campaign"
	"sendpool/services/dispatch"
	"sendpool/services/ratelimit"
	"sendpool/services/store"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db         *gorm.DB
	gate       *ratelimit.Gate
	selector   *campaign.Selector
	locker     *assignment.Locker
	dispatcher *dispatch.Dispatcher
	now        func() time.Time

	jobs repository.Repository[store.Job]
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Gate       *ratelimit.Gate
	Selector   *campaign.Selector
	Locker     *assignment.Locker
	Dispatcher *dispatch.Dispatcher
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		gate:       p.Gate,
		selector:   p.Selector,
		locker:     p.Locker,
		dispatcher: p.Dispatcher,
		now:        store.Now,
		jobs:       repository.ProvideStore[store.Job](p.DB),
	}
}

// TakeJob hands the account one target and sends its message. Once the
// assignment commits, the send runs to completion even if the caller goes
// away.
func (s *Service) TakeJob(ctx context.Context, accountID int64) (res *dispatch.Result, err error) {
	defer func() {
		label := "ok"
		if err != nil {
			label = string(errutil.CodeOf(err))
		}
		metrics.JobTake.WithLabelValues(label).Inc()
	}()

	account, err := s.gate.Check(ctx, accountID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.selector.Candidates(ctx, account)
	if err != nil {
		return nil, err
	}

	a, err := s.locker.Assign(ctx, account, candidates)
	if err != nil {
		return nil, err
	}

	return s.dispatcher.Dispatch(context.WithoutCancel(ctx), account, a)
}

// History pages through the account's jobs, newest first.
func (s *Service) History(ctx context.Context, accountID int64, p pagination.Pagination) ([]*store.Job, *pagination.PageInfo, error) {
	jobs, err := s.jobs.Find(ctx, &store.Job{UserID: accountID}, option.ApplyPagination(p))
	if err != nil {
		zap.L().Error("failed to list jobs", zap.Int64("account_id", accountID), zap.Error(err))
		return nil, nil, err
	}

	jobs, info := pagination.BuildCursorPageInfo(jobs, p.NormalizedLimit(), func(j *store.Job) pagination.Cursor {
		return pagination.Cursor{ID: strconv.FormatInt(j.ID, 10), CreatedAt: j.CreatedAt.Format(time.RFC3339Nano)}
	})
	return jobs, info, nil
}

type Profile struct {
	Account           *store.Account `json:"account"`
	CooldownRemaining int            `json:"cooldown_remaining"`
	JobsToday         int64          `json:"jobs_today"`
	JobsLastHour      int64          `json:"jobs_last_hour"`
}

func (s *Service) Profile(ctx context.Context, accountID int64) (*Profile, error) {
	var account store.Account
	if err := s.db.WithContext(ctx).Take(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("account not found", nil)
		}
		return nil, err
	}

	usage, err := s.gate.Usage(ctx, accountID)
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		Account:      &account,
		JobsToday:    usage.Today,
		JobsLastHour: usage.LastHour,
	}
	if account.CooldownUntil != nil {
		profile.CooldownRemaining = ratelimit.RetryAfter(*account.CooldownUntil, s.now())
	}
	return profile, nil
}

type ReferralView struct {
	ReferredUserID   int64           `json:"referred_user_id,string"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	Status           string          `json:"status"`
	TotalBonusEarned decimal.Decimal `json:"total_bonus_earned"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (v ReferralView) MarshalJSON() ([]byte, error) {
	type referralView ReferralView
	return json.Marshal(struct {
		referralView
		TotalBonusEarned store.Money `json:"total_bonus_earned"`
	}{referralView(v), store.Money(v.TotalBonusEarned)})
}

// Referrals lists the accounts accountID referred, with the bonus each has
// earned it.
func (s *Service) Referrals(ctx context.Context, accountID int64) ([]ReferralView, error) {
	out := []ReferralView{}
	err := s.db.WithContext(ctx).Table("users").
		Select("users.id AS referred_user_id, users.name, users.email, users.status, " +
			"COALESCE(referrals.total_bonus_earned, 0) AS total_bonus_earned, users.created_at").
		Joins("LEFT JOIN referrals ON referrals.referred_user_id = users.id AND referrals.referrer_id = users.referred_by").
		Where("users.referred_by = ?", accountID).
		Order("users.id").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
