package testutil

import (
	"fmt"
	"testing"
	"time"

	"sendpool/services/store"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Fixtures seeds store rows with sensible defaults. Options mutate the row
// before insert.
type Fixtures struct {
	t    *testing.T
	db   *gorm.DB
	node *snowflake.Node
}

func NewFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	return &Fixtures{t: t, db: db, node: node}
}

func (f *Fixtures) Node() *snowflake.Node { return f.node }

func (f *Fixtures) ID() int64 { return f.node.Generate().Int64() }

func (f *Fixtures) create(v any) {
	f.t.Helper()
	if err := f.db.Create(v).Error; err != nil {
		f.t.Fatalf("seed %T: %v", v, err)
	}
}

func (f *Fixtures) Account(opts ...func(*store.Account)) *store.Account {
	f.t.Helper()
	id := f.ID()
	a := &store.Account{
		ID:               id,
		Name:             fmt.Sprintf("sender %d", id),
		Email:            fmt.Sprintf("sender%d@example.test", id),
		Role:             store.RoleUser,
		Status:           store.AccountStatusActive,
		HourlyLimit:      10,
		DailyLimit:       100,
		ReferralPercent:  decimal.RequireFromString("105"),
		ChannelConnected: true,
		SessionID:        fmt.Sprintf("user-%d", id),
		PhoneNumber:      "6281200000000",
	}
	for _, opt := range opts {
		opt(a)
	}
	f.create(a)
	return a
}

// Campaign creates an active campaign with n pending targets.
func (f *Fixtures) Campaign(n int, opts ...func(*store.Campaign)) *store.Campaign {
	f.t.Helper()
	c := &store.Campaign{
		ID:                f.ID(),
		Name:              "promo",
		RewardPerJob:      decimal.RequireFromString("10.00"),
		CooldownSeconds:   30,
		DailyLimitPerUser: 50,
		TargetTotal:       n,
		Status:            store.CampaignStatusActive,
	}
	for _, opt := range opts {
		opt(c)
	}
	f.create(c)

	for i := 0; i < n; i++ {
		f.create(&store.Target{
			ID:         f.ID(),
			CampaignID: c.ID,
			Phone:      fmt.Sprintf("62812%07d", i),
			Name:       fmt.Sprintf("target %d", i),
		})
	}
	return c
}

func (f *Fixtures) Template(campaignID int64, opts ...func(*store.MessageTemplate)) *store.MessageTemplate {
	f.t.Helper()
	tpl := &store.MessageTemplate{
		ID:          f.ID(),
		Name:        "hello",
		MessageType: store.MessageTypeText,
		Body:        "Hello from promo",
	}
	for _, opt := range opts {
		opt(tpl)
	}
	f.create(tpl)
	f.create(&store.CampaignTemplate{CampaignID: campaignID, TemplateID: tpl.ID})
	return tpl
}

// Jobs inserts n historical jobs for quota tests. They point at synthetic
// target ids.
func (f *Fixtures) Jobs(accountID, campaignID int64, n int, createdAt time.Time) {
	f.t.Helper()
	for i := 0; i < n; i++ {
		f.create(&store.Job{
			ID:               f.ID(),
			UserID:           accountID,
			CampaignID:       campaignID,
			CampaignTargetID: f.ID(),
			Status:           store.JobStatusSent,
			RewardAmount:     decimal.RequireFromString("1.00"),
			CreatedAt:        createdAt.UTC(),
		})
	}
}

func (f *Fixtures) Reload(v any, id int64) {
	f.t.Helper()
	if err := f.db.First(v, "id = ?", id).Error; err != nil {
		f.t.Fatalf("reload %T %d: %v", v, id, err)
	}
}

func Ptr[T any](v T) *T { return &v }
