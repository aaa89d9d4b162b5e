package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"sendpool/pkg/config"
	"sendpool/pkg/db/option"
	"sendpool/pkg/errutil"
	"sendpool/pkg/metrics"
	"sendpool/pkg/repository"
	"sendpool/services/ledger"
	"sendpool/services/store"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	eventMessagesUpdate = "messages.update"

	ReasonUnknownMessage = "unknown_message"
	ReasonAlreadySettled = "already_settled"
)

type Processor struct {
	db          *gorm.DB
	ledger      *ledger.Service
	node        *snowflake.Node
	now         func() time.Time
	concurrency int

	webhookLogs repository.Repository[store.WebhookLog]
}

type Params struct {
	fx.In
	DB     *gorm.DB
	Ledger *ledger.Service
	Node   *snowflake.Node
	Config *config.Config `optional:"true"`
}

func NewProcessor(p Params) *Processor {
	concurrency := 0
	if p.Config != nil {
		concurrency = p.Config.Settlement.Concurrency
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Processor{
		db:          p.DB,
		ledger:      p.Ledger,
		node:        p.Node,
		now:         store.Now,
		concurrency: concurrency,
		webhookLogs: repository.ProvideStore[store.WebhookLog](p.DB),
	}
}

// HandlePayload records raw verbatim, then settles every delivered message
// it mentions. The log row is written before parsing so malformed payloads
// are kept too.
func (p *Processor) HandlePayload(ctx context.Context, source string, raw []byte) error {
	metrics.NotificationBatches.WithLabelValues(source).Inc()

	payload := raw
	if !json.Valid(payload) {
		payload, _ = json.Marshal(string(raw))
	}
	entry := &store.WebhookLog{
		ID:        p.node.Generate().Int64(),
		Source:    source,
		EventType: eventMessagesUpdate,
		Payload:   datatypes.JSON(payload),
		CreatedAt: p.now(),
	}
	if err := p.webhookLogs.Create(ctx, entry); err != nil {
		zap.L().Error("failed to store webhook log", zap.String("source", source), zap.Error(err))
		return err
	}

	notifications, err := Parse(raw)
	if err != nil {
		p.finish(ctx, entry.ID, err)
		return errutil.BadRequest("malformed notification payload", err)
	}

	seen := map[string]bool{}
	var delivered []string
	for _, n := range notifications {
		if !IsDelivered(n.Status) || seen[n.MessageID] {
			continue
		}
		seen[n.MessageID] = true
		delivered = append(delivered, n.MessageID)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for _, id := range delivered {
		g.Go(func() error {
			err := p.Settle(ctx, id)
			if err == nil || errutil.Is(err, errutil.StatusSettlementSkipped) {
				return nil
			}
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	batchErr := errors.Join(errs...)
	p.finish(ctx, entry.ID, batchErr)
	return batchErr
}

func (p *Processor) finish(ctx context.Context, logID int64, err error) {
	updates := map[string]any{"processed": true}
	if err != nil {
		updates["error"] = err.Error()
	}
	if uerr := p.webhookLogs.Update(ctx, logID, updates); uerr != nil {
		zap.L().Error("failed to mark webhook log processed", zap.Int64("webhook_log_id", logID), zap.Error(uerr))
	}
}

// Settle pays out the job behind messageID exactly once. A message that is
// unknown or already settled yields SettlementSkipped and changes nothing.
func (p *Processor) Settle(ctx context.Context, messageID string) error {
	zapLog := zap.L().With(zap.String("message_id", messageID))

	var settled *store.Job
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target store.Target
		err := tx.Scopes(option.LockingUpdate).Where("message_id = ?", messageID).Take(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return skipped(ReasonUnknownMessage)
		}
		if err != nil {
			return err
		}
		if target.Status >= store.TargetDelivered {
			return skipped(ReasonAlreadySettled)
		}

		var job store.Job
		err = tx.Where("campaign_target_id = ?", target.ID).Take(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return skipped(ReasonUnknownMessage)
		}
		if err != nil {
			return err
		}
		if job.Status == store.JobStatusDelivered {
			return skipped(ReasonAlreadySettled)
		}

		var c store.Campaign
		if err := tx.Take(&c, "id = ?", job.CampaignID).Error; err != nil {
			return err
		}
		var account store.Account
		if err := tx.Take(&account, "id = ?", job.UserID).Error; err != nil {
			return err
		}

		now := p.now()
		res := tx.Model(&store.Target{}).
			Where("id = ? AND status < ?", target.ID, store.TargetDelivered).
			Updates(map[string]any{"status": store.TargetDelivered, "delivered_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return skipped(ReasonAlreadySettled)
		}

		if err := tx.Model(&store.Job{}).
			Where("id = ?", job.ID).
			Updates(map[string]any{
				"status":       store.JobStatusDelivered,
				"delivered_at": now,
				"updated_at":   now,
			}).Error; err != nil {
			return err
		}

		if job.RewardAmount.IsPositive() {
			if _, err := p.ledger.Credit(ctx, tx, ledger.Entry{
				AccountID:   account.ID,
				Type:        store.CreditTypeJobReward,
				Amount:      job.RewardAmount,
				ReferenceID: &job.ID,
				Description: fmt.Sprintf("Reward for job #%d - %s", job.ID, c.Name),
			}); err != nil {
				return err
			}

			if err := p.payReferrer(ctx, tx, &account, &job, now); err != nil {
				return err
			}
		}

		if err := tx.Model(&store.Campaign{}).
			Where("id = ?", c.ID).
			Updates(map[string]any{
				"target_delivered": gorm.Expr("target_delivered + 1"),
				"updated_at":       now,
			}).Error; err != nil {
			return err
		}

		res = tx.Model(&store.Campaign{}).
			Where("id = ? AND target_delivered >= target_total AND status = ?", c.ID, store.CampaignStatusActive).
			Updates(map[string]any{"status": store.CampaignStatusCompleted, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			zapLog.Info("campaign completed", zap.Int64("campaign_id", c.ID))
		}

		settled = &job
		return nil
	})
	if err != nil {
		if errutil.Is(err, errutil.StatusSettlementSkipped) {
			metrics.Settlement.WithLabelValues("skipped").Inc()
			zapLog.Debug("settlement skipped", zap.Error(err))
			return err
		}
		metrics.Settlement.WithLabelValues("error").Inc()
		zapLog.Error("settlement failed", zap.Error(err))
		return err
	}

	metrics.Settlement.WithLabelValues("settled").Inc()
	zapLog.Info("job settled",
		zap.Int64("job_id", settled.ID),
		zap.Int64("account_id", settled.UserID),
		zap.String("reward", settled.RewardAmount.StringFixed(2)),
	)
	return nil
}

// ReferralBonus is percent of reward, rounded half away from zero to cents.
func ReferralBonus(reward, percent decimal.Decimal) decimal.Decimal {
	return reward.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}

func (p *Processor) payReferrer(ctx context.Context, tx *gorm.DB, account *store.Account, job *store.Job, now time.Time) error {
	if account.ReferredBy == nil {
		return nil
	}

	var referrer store.Account
	err := tx.Take(&referrer, "id = ?", *account.ReferredBy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !referrer.IsActive() {
		return nil
	}

	bonus := ReferralBonus(job.RewardAmount, referrer.ReferralPercent)
	if !bonus.IsPositive() {
		return nil
	}

	if _, err := p.ledger.Credit(ctx, tx, ledger.Entry{
		AccountID:   referrer.ID,
		Type:        store.CreditTypeReferralBonus,
		Amount:      bonus,
		ReferenceID: &job.ID,
		Description: fmt.Sprintf("Referral bonus from %s - Job #%d", account.Name, job.ID),
	}); err != nil {
		return err
	}

	res := tx.Model(&store.Referral{}).
		Where("referrer_id = ? AND referred_user_id = ?", referrer.ID, account.ID).
		Updates(map[string]any{
			"total_bonus_earned": gorm.Expr("total_bonus_earned + ?", bonus),
			"updated_at":         now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tx.Create(&store.Referral{
			ID:               p.node.Generate().Int64(),
			ReferrerID:       referrer.ID,
			ReferredUserID:   account.ID,
			TotalBonusEarned: bonus,
			CreatedAt:        now,
			UpdatedAt:        now,
		}).Error
	}
	return nil
}

func skipped(reason string) error {
	return errutil.SettlementSkipped("notification already settled or unknown", nil, errutil.WithReason(reason))
}
