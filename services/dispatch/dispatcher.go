package dispatch

import (
	"context"
	"strconv"
	"time"

	"sendpool/pkg/errutil"
	"sendpool/pkg/metrics"
	"sendpool/services/assignment"
	"sendpool/services/campaign"
	"sendpool/services/store"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Result struct {
	JobID           int64           `json:"jobId,string"`
	CampaignName    string          `json:"campaignName"`
	Reward          store.Money     `json:"reward"`
	CooldownSeconds int             `json:"cooldownSeconds"`
	Status          store.JobStatus `json:"status"`
	MessageID       string          `json:"messageId,omitempty"`
}

// Dispatcher sends the message for a committed assignment and records the
// outcome on the target and the job. It never touches the account: a failed
// send keeps the cooldown it cost.
type Dispatcher struct {
	db        *gorm.DB
	sender    Sender
	templates *campaign.Templates
	timeout   time.Duration
	now       func() time.Time
}

func NewDispatcher(db *gorm.DB, sender Sender, templates *campaign.Templates, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		db:        db,
		sender:    sender,
		templates: templates,
		timeout:   timeout,
		now:       store.Now,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, account *store.Account, a *assignment.Assignment) (*Result, error) {
	zapLog := zap.L().With(
		zap.Int64("job_id", a.Job.ID),
		zap.Int64("target_id", a.Target.ID),
		zap.String("driver", d.sender.Driver()),
	)

	result := &Result{
		JobID:           a.Job.ID,
		CampaignName:    a.Campaign.Name,
		Reward:          store.Money(a.Job.RewardAmount),
		CooldownSeconds: a.Campaign.CooldownSeconds,
	}

	tpl, err := d.templates.Random(ctx, a.Campaign.ID)
	if err != nil {
		return nil, d.fail(ctx, zapLog, a, "no message template", err)
	}

	msg, err := BuildMessage(account, a.Target, tpl)
	if err != nil {
		return nil, d.fail(ctx, zapLog, a, "invalid message template", err)
	}

	if r, ok := d.sender.(IDReserver); ok {
		id, err := r.ReserveMessageID(msg.From)
		if err != nil {
			return nil, d.fail(ctx, zapLog, a, "failed to reserve message id", err)
		}
		if err := d.reserve(ctx, a, id); err != nil {
			return nil, d.fail(ctx, zapLog, a, "failed to record message id", err)
		}
		msg.ID = id
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	start := time.Now()
	messageID, err := d.sender.Send(sendCtx, msg)
	cancel()
	metrics.DispatchLatency.WithLabelValues(d.sender.Driver()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, d.fail(ctx, zapLog, a, "failed to send message", err)
	}
	if messageID == "" {
		return nil, d.fail(ctx, zapLog, a, "failed to send message", ErrNoMessageID)
	}

	if err := d.markSent(ctx, a, messageID); err != nil {
		zapLog.Error("failed to record sent message", zap.String("message_id", messageID), zap.Error(err))
		return nil, err
	}

	metrics.Dispatch.WithLabelValues(d.sender.Driver(), "sent").Inc()
	zapLog.Info("message sent", zap.String("message_id", messageID))

	result.Status = store.JobStatusSent
	result.MessageID = messageID
	return result, nil
}

// reserve stores the message id before the send. The rows keep their
// assigned and pending statuses until the outcome is known.
func (d *Dispatcher) reserve(ctx context.Context, a *assignment.Assignment, messageID string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&store.Target{}).
			Where("id = ? AND status = ?", a.Target.ID, store.TargetAssigned).
			Update("message_id", messageID).Error; err != nil {
			return err
		}
		if err := tx.Model(&store.Job{}).
			Where("id = ? AND status = ?", a.Job.ID, store.JobStatusPending).
			Update("message_id", messageID).Error; err != nil {
			return err
		}
		a.Target.MessageID = messageID
		a.Job.MessageID = messageID
		return nil
	})
}

// markSent moves the target and job to sent. A receipt settled during the
// send has already moved them past sent, and the conditional updates leave
// them there.
func (d *Dispatcher) markSent(ctx context.Context, a *assignment.Assignment, messageID string) error {
	now := d.now()
	db := d.db.WithContext(ctx)

	if err := db.Model(&store.Target{}).
		Where("id = ? AND status = ?", a.Target.ID, store.TargetAssigned).
		Updates(map[string]any{
			"status":     store.TargetSent,
			"message_id": messageID,
			"sent_at":    now,
		}).Error; err != nil {
		return err
	}

	if err := db.Model(&store.Job{}).
		Where("id = ? AND status = ?", a.Job.ID, store.JobStatusPending).
		Updates(map[string]any{
			"status":     store.JobStatusSent,
			"message_id": messageID,
			"sent_at":    now,
			"updated_at": now,
		}).Error; err != nil {
		return err
	}

	a.Target.Status = store.TargetSent
	a.Target.MessageID = messageID
	a.Target.SentAt = &now
	a.Job.Status = store.JobStatusSent
	a.Job.MessageID = messageID
	a.Job.SentAt = &now
	return nil
}

// fail marks the target and job failed and returns the error the caller
// reports. The target is not returned to the pool.
func (d *Dispatcher) fail(ctx context.Context, zapLog *zap.Logger, a *assignment.Assignment, msg string, cause error) error {
	metrics.Dispatch.WithLabelValues(d.sender.Driver(), "failed").Inc()
	zapLog.Warn("dispatch failed", zap.String("reason", msg), zap.Error(cause))

	now := d.now()
	db := d.db.WithContext(ctx)
	if err := db.Model(&store.Target{}).
		Where("id = ? AND status = ?", a.Target.ID, store.TargetAssigned).
		Updates(map[string]any{
			"status":    store.TargetFailed,
			"failed_at": now,
		}).Error; err != nil {
		zapLog.Error("failed to mark target failed", zap.Error(err))
	}
	if err := db.Model(&store.Job{}).
		Where("id = ? AND status = ?", a.Job.ID, store.JobStatusPending).
		Updates(map[string]any{
			"status":     store.JobStatusFailed,
			"updated_at": now,
		}).Error; err != nil {
		zapLog.Error("failed to mark job failed", zap.Error(err))
	}

	a.Target.Status = store.TargetFailed
	a.Target.FailedAt = &now
	a.Job.Status = store.JobStatusFailed

	return errutil.DispatchFailed(msg, cause,
		errutil.WithMeta("job_id", strconv.FormatInt(a.Job.ID, 10)),
	)
}
