package campaign

import (
	"context"

	"sendpool/pkg/errutil"
	"sendpool/pkg/repository"
	"sendpool/services/store"

	"gorm.io/gorm"
)

type Stats struct {
	CampaignID      int64                `json:"campaign_id,string"`
	Status          store.CampaignStatus `json:"status"`
	TargetTotal     int                  `json:"target_total"`
	TargetAssigned  int                  `json:"target_assigned"`
	TargetDelivered int                  `json:"target_delivered"`
	ByStatus        map[string]int64     `json:"by_status"`
}

type StatsReader struct {
	db        *gorm.DB
	campaigns repository.Repository[store.Campaign]
}

func NewStatsReader(db *gorm.DB) *StatsReader {
	return &StatsReader{db: db, campaigns: repository.ProvideStore[store.Campaign](db)}
}

type statusCount struct {
	Status store.TargetStatus
	Total  int64
}

// Stats returns the campaign counters alongside a live count of its targets
// per status.
func (r *StatsReader) Stats(ctx context.Context, campaignID int64) (*Stats, error) {
	c, err := r.campaigns.FindOne(ctx, &store.Campaign{ID: campaignID})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errutil.NotFound("campaign not found", nil)
	}

	var counts []statusCount
	if err := r.db.WithContext(ctx).Model(&store.Target{}).
		Select("status, COUNT(*) AS total").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}

	byStatus := map[string]int64{}
	for s := store.TargetPending; s <= store.TargetFailed; s++ {
		byStatus[s.String()] = 0
	}
	for _, sc := range counts {
		byStatus[sc.Status.String()] = sc.Total
	}

	return &Stats{
		CampaignID:      c.ID,
		Status:          c.Status,
		TargetTotal:     c.TargetTotal,
		TargetAssigned:  c.TargetAssigned,
		TargetDelivered: c.TargetDelivered,
		ByStatus:        byStatus,
	}, nil
}
