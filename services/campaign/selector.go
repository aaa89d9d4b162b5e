package campaign

import (
	"context"
	"time"

	"sendpool/pkg/db/option"
	"sendpool/pkg/errutil"
	"sendpool/pkg/repository"
	"sendpool/services/ratelimit"
	"sendpool/services/store"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Selector lists the campaigns an account may take work from, oldest first.
type Selector struct {
	db  *gorm.DB
	now func() time.Time

	campaigns repository.Repository[store.Campaign]
}

func NewSelector(db *gorm.DB) *Selector {
	return &Selector{
		db:        db,
		now:       store.Now,
		campaigns: repository.ProvideStore[store.Campaign](db),
	}
}

type campaignCount struct {
	CampaignID int64
	Total      int64
}

// Candidates returns active, unfinished campaigns targeting the account's
// country (or no country), minus the ones whose per-account daily cap is used
// up. An empty result is reported as an error saying why.
func (s *Selector) Candidates(ctx context.Context, account *store.Account) ([]*store.Campaign, error) {
	tx := s.db.WithContext(ctx).
		Where("status = ?", store.CampaignStatusActive).
		Where("target_delivered < target_total")
	if account.Country != nil {
		tx = tx.Where("(country_target = ? OR country_target IS NULL)", *account.Country)
	} else {
		tx = tx.Where("country_target IS NULL")
	}

	campaigns, err := s.campaigns.WithTrx(tx).Find(ctx, nil, option.WithSortBy(option.QuerySortBy{OrderBy: "asc"}))
	if err != nil {
		zap.L().Error("failed to list candidate campaigns", zap.Int64("account_id", account.ID), zap.Error(err))
		return nil, err
	}
	if len(campaigns) == 0 {
		return nil, errutil.NoTargetsAvailable("no active campaigns available", nil)
	}

	ids := make([]int64, 0, len(campaigns))
	for _, c := range campaigns {
		ids = append(ids, c.ID)
	}

	var counts []campaignCount
	if err := s.db.WithContext(ctx).Model(&store.Job{}).
		Select("campaign_id, COUNT(*) AS total").
		Where("user_id = ? AND created_at >= ? AND campaign_id IN ?", account.ID, store.StartOfDay(s.now()), ids).
		Group("campaign_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}

	used := make(map[int64]int64, len(counts))
	for _, c := range counts {
		used[c.CampaignID] = c.Total
	}

	eligible := campaigns[:0]
	for _, c := range campaigns {
		if used[c.ID] >= int64(c.DailyLimitPerUser) {
			continue
		}
		eligible = append(eligible, c)
	}

	if len(eligible) == 0 {
		return nil, errutil.TooManyRequest("daily limit reached for every available campaign", nil,
			errutil.WithReason(ratelimit.ReasonCampaignDaily))
	}

	return eligible, nil
}
