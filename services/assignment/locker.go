package assignment

import (
	"context"
	"errors"
	"time"

	"sendpool/pkg/db/option"
	"sendpool/pkg/errutil"
	"sendpool/services/ratelimit"
	"sendpool/services/store"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("assignment", fx.Provide(NewLocker))

// errExhausted means the campaign had nothing left to hand out. The caller
// moves on to the next candidate.
var errExhausted = errors.New("campaign exhausted")

// maxLostRaces bounds how often one campaign is retried when another
// transaction claimed the selected target between read and update.
const maxLostRaces = 3

type Assignment struct {
	Job      *store.Job
	Target   *store.Target
	Campaign *store.Campaign
}

type Locker struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time
}

type Params struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewLocker(p Params) *Locker {
	return &Locker{db: p.DB, node: p.Node, now: store.Now}
}

// Assign walks the candidates in order and claims one pending target for the
// account. Each attempt is its own transaction: the target, the campaign's
// assigned counter, the account's cooldown and the new job commit together or
// not at all.
func (l *Locker) Assign(ctx context.Context, account *store.Account, candidates []*store.Campaign) (*Assignment, error) {
	for _, c := range candidates {
		for attempt := 0; attempt < maxLostRaces; attempt++ {
			a, err := l.assignFrom(ctx, account, c)
			if err == nil {
				return a, nil
			}
			if errors.Is(err, errLostRace) {
				continue
			}
			if errors.Is(err, errExhausted) {
				break
			}
			return nil, err
		}
	}

	return nil, errutil.NoTargetsAvailable("no targets available", nil)
}

var errLostRace = errors.New("target claimed concurrently")

func (l *Locker) assignFrom(ctx context.Context, account *store.Account, c *store.Campaign) (*Assignment, error) {
	zapLog := zap.L().With(zap.Int64("account_id", account.ID), zap.Int64("campaign_id", c.ID))

	var out *Assignment
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := l.now()

		// Claim the cooldown first. Two requests from the same account that
		// both passed the gate serialize here and only one gets through.
		res := tx.Model(&store.Account{}).
			Where("id = ? AND (cooldown_until IS NULL OR cooldown_until <= ?)", account.ID, now).
			Updates(map[string]any{
				"cooldown_until": now.Add(time.Duration(c.CooldownSeconds) * time.Second),
				"last_job_at":    now,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return l.cooldownError(tx, account.ID, now)
		}

		var target store.Target
		err := tx.Scopes(option.SkipLocked).
			Where("campaign_id = ? AND status = ?", c.ID, store.TargetPending).
			Order("id").
			Limit(1).
			Take(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errExhausted
		}
		if err != nil {
			return err
		}

		res = tx.Model(&store.Target{}).
			Where("id = ? AND status = ?", target.ID, store.TargetPending).
			Updates(map[string]any{
				"status":              store.TargetAssigned,
				"assigned_to_user_id": account.ID,
				"assigned_at":         now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return errLostRace
		}

		res = tx.Model(&store.Campaign{}).
			Where("id = ? AND target_assigned < target_total", c.ID).
			Updates(map[string]any{
				"target_assigned": gorm.Expr("target_assigned + 1"),
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return errExhausted
		}

		job := &store.Job{
			ID:               l.node.Generate().Int64(),
			UserID:           account.ID,
			CampaignID:       c.ID,
			CampaignTargetID: target.ID,
			Status:           store.JobStatusPending,
			RewardAmount:     c.RewardPerJob,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Create(job).Error; err != nil {
			return err
		}

		target.Status = store.TargetAssigned
		target.AssignedToUserID = &account.ID
		target.AssignedAt = &now
		out = &Assignment{Job: job, Target: &target, Campaign: c}
		return nil
	})
	if err != nil {
		if !errors.Is(err, errExhausted) && !errors.Is(err, errLostRace) {
			if _, ok := errutil.As(err); !ok {
				zapLog.Error("assignment transaction failed", zap.Error(err))
			}
		}
		return nil, err
	}

	zapLog.Info("target assigned",
		zap.Int64("job_id", out.Job.ID),
		zap.Int64("target_id", out.Target.ID),
	)
	return out, nil
}

func (l *Locker) cooldownError(tx *gorm.DB, accountID int64, now time.Time) error {
	var current store.Account
	if err := tx.Select("id", "cooldown_until").Take(&current, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errutil.NotFound("account not found", nil)
		}
		return err
	}

	retry := 0
	if current.CooldownUntil != nil {
		retry = ratelimit.RetryAfter(*current.CooldownUntil, now)
	}
	return errutil.TooManyRequest("cooldown active", nil,
		errutil.WithReason(ratelimit.ReasonCooldown),
		errutil.WithRetryAfter(retry),
	)
}
