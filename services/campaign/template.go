package campaign

import (
	"context"
	"math/rand/v2"

	"sendpool/pkg/errutil"
	"sendpool/services/store"

	"gorm.io/gorm"
)

// Templates picks the message a dispatch sends. Pick returns an index in
// [0, n); tests replace it to make the choice deterministic.
type Templates struct {
	db   *gorm.DB
	Pick func(n int) int
}

func NewTemplates(db *gorm.DB) *Templates {
	return &Templates{db: db, Pick: rand.IntN}
}

func (t *Templates) List(ctx context.Context, campaignID int64) ([]*store.MessageTemplate, error) {
	var out []*store.MessageTemplate
	err := t.db.WithContext(ctx).
		Joins("JOIN campaign_templates ON campaign_templates.template_id = message_templates.id").
		Where("campaign_templates.campaign_id = ?", campaignID).
		Order("message_templates.id").
		Find(&out).Error
	return out, err
}

// Random returns one of the campaign's templates, uniformly.
func (t *Templates) Random(ctx context.Context, campaignID int64) (*store.MessageTemplate, error) {
	templates, err := t.List(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, errutil.InvalidState("campaign has no message template", nil)
	}
	return templates[t.Pick(len(templates))], nil
}
