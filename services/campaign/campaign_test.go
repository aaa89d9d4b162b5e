package campaign

import (
	"context"
	"testing"
	"time"

	"sendpool/pkg/errutil"
	"sendpool/services/ratelimit"
	"sendpool/services/store"
	"sendpool/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestCandidatesFiltersAndOrders(t *testing.T) {
	db := testutil.NewTestDB(t)
	fx := testutil.NewFixtures(t, db)
	sel := NewSelector(db)
	sel.now = func() time.Time { return noon }

	account := fx.Account(func(a *store.Account) { a.Country = testutil.Ptr("ID") })

	first := fx.Campaign(2)
	fx.Campaign(2, func(c *store.Campaign) { c.CountryTarget = testutil.Ptr("MY") })
	fx.Campaign(2, func(c *store.Campaign) { c.Status = store.CampaignStatusPaused })
	fx.Campaign(2, func(c *store.Campaign) { c.TargetDelivered = 2 })
	local := fx.Campaign(2, func(c *store.Campaign) { c.CountryTarget = testutil.Ptr("ID") })

	got, err := sel.Candidates(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, first.ID, got[0].ID)
	require.Equal(t, local.ID, got[1].ID)
}

func TestCandidatesWithoutCountry(t *testing.T) {
	db := testutil.NewTestDB(t)
	fx := testutil.NewFixtures(t, db)
	sel := NewSelector(db)

	account := fx.Account()
	fx.Campaign(1, func(c *store.Campaign) { c.CountryTarget = testutil.Ptr("ID") })

	_, err := sel.Candidates(context.Background(), account)
	require.True(t, errutil.Is(err, errutil.StatusNoTargetsAvailable))
}

func TestCandidatesPerCampaignDailyCap(t *testing.T) {
	db := testutil.NewTestDB(t)
	fx := testutil.NewFixtures(t, db)
	sel := NewSelector(db)
	sel.now = func() time.Time { return noon }

	account := fx.Account()
	capped := fx.Campaign(5, func(c *store.Campaign) { c.DailyLimitPerUser = 2 })
	fx.Jobs(account.ID, capped.ID, 2, noon.Add(-time.Hour))

	_, err := sel.Candidates(context.Background(), account)
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusTooManyRequests, be.Code)
	require.Equal(t, ratelimit.ReasonCampaignDaily, be.Reason)

	open := fx.Campaign(5)
	got, err := sel.Candidates(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, open.ID, got[0].ID)
}

func TestTemplatesRandom(t *testing.T) {
	db := testutil.NewTestDB(t)
	fx := testutil.NewFixtures(t, db)
	c := fx.Campaign(1)
	other := fx.Campaign(1)

	tpl := NewTemplates(db)
	_, err := tpl.Random(context.Background(), c.ID)
	require.True(t, errutil.Is(err, errutil.StatusInvalidState))

	a := fx.Template(c.ID, func(m *store.MessageTemplate) { m.Body = "a" })
	b := fx.Template(c.ID, func(m *store.MessageTemplate) { m.Body = "b" })
	fx.Template(other.ID)

	list, err := tpl.List(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	var seen int
	tpl.Pick = func(n int) int {
		seen = n
		return 1
	}
	got, err := tpl.Random(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, seen)
	require.Equal(t, b.ID, got.ID)

	tpl.Pick = func(int) int { return 0 }
	got, err = tpl.Random(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
}

func TestStats(t *testing.T) {
	db := testutil.NewTestDB(t)
	fx := testutil.NewFixtures(t, db)
	c := fx.Campaign(3)

	require.NoError(t, db.Model(&store.Target{}).
		Where("id = (SELECT MIN(id) FROM campaign_targets WHERE campaign_id = ?)", c.ID).
		Update("status", store.TargetDelivered).Error)

	stats, err := NewStatsReader(db).Stats(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.ByStatus["pending"])
	require.Equal(t, int64(1), stats.ByStatus["delivered"])
	require.Equal(t, int64(0), stats.ByStatus["failed"])
	require.Equal(t, 3, stats.TargetTotal)

	_, err = NewStatsReader(db).Stats(context.Background(), 1)
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}
