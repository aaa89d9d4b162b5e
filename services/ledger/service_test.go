package ledger

import (
	"context"
	"errors"
	"testing"

	"sendpool/pkg/db/option"
	"sendpool/pkg/db/pagination"
	"sendpool/pkg/errutil"
	"sendpool/pkg/repository"
	"sendpool/services/store"
	"sendpool/services/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type repoMock[T any] struct {
	findFn    func(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	findOneFn func(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	createFn  func(ctx context.Context, resource *T) error
}

func (m *repoMock[T]) WithTrx(tx *gorm.DB) repository.Repository[T] { return m }

func (m *repoMock[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	if m.findFn != nil {
		return m.findFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) Create(ctx context.Context, resource *T) error {
	if m.createFn != nil {
		return m.createFn(ctx, resource)
	}
	return nil
}

func (m *repoMock[T]) Update(ctx context.Context, resourceID any, resource any) error { return nil }

func (m *repoMock[T]) Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	return 0, nil
}

func newTestService(t *testing.T) (*Service, *testutil.Fixtures, *gorm.DB) {
	db := testutil.NewTestDB(t)
	fx := testutil.NewFixtures(t, db)
	svc := NewService(ServiceParams{DB: db, Node: fx.Node()})
	return svc, fx, db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewService(t *testing.T) {
	svc, _, _ := newTestService(t)

	require.NotNil(t, svc.logs)
	require.NotNil(t, svc.accounts)
	require.NotNil(t, svc.now)
}

func TestBalanceNotFound(t *testing.T) {
	svc := &Service{
		accounts: &repoMock[store.Account]{
			findOneFn: func(ctx context.Context, _ *store.Account, opts ...option.QueryOption) (*store.Account, error) {
				return nil, nil
			},
		},
	}

	_, err := svc.Balance(context.Background(), 42)
	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusNotFound, be.Status())
}

func TestCreditMovesBalanceWithEntry(t *testing.T) {
	svc, fx, db := newTestService(t)
	account := fx.Account()
	ref := fx.ID()

	var entry *store.CreditLog
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = svc.Credit(context.Background(), tx, Entry{
			AccountID:   account.ID,
			Type:        store.CreditTypeJobReward,
			Amount:      dec("10.00"),
			ReferenceID: &ref,
			Description: "job reward",
		})
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, store.CreditTypeJobReward, entry.Type)

	balance, err := svc.Balance(context.Background(), account.ID)
	require.NoError(t, err)
	require.Equal(t, "10.00", balance.StringFixed(2))

	mismatch, err := svc.VerifyAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.Nil(t, mismatch)
}

func TestCreditRollsBackWithTransaction(t *testing.T) {
	svc, fx, db := newTestService(t)
	account := fx.Account()

	boom := errors.New("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Credit(context.Background(), tx, Entry{
			AccountID: account.ID,
			Type:      store.CreditTypeJobReward,
			Amount:    dec("5.00"),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&store.CreditLog{}).Count(&count).Error)
	require.Zero(t, count)

	balance, err := svc.Balance(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, balance.IsZero())
}

func TestCreditUnknownAccount(t *testing.T) {
	svc, _, db := newTestService(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Credit(context.Background(), tx, Entry{
			AccountID: 999,
			Type:      store.CreditTypeJobReward,
			Amount:    dec("1.00"),
		})
		return err
	})
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestAdjust(t *testing.T) {
	svc, fx, _ := newTestService(t)
	account := fx.Account()
	ctx := context.Background()

	_, err := svc.Adjust(ctx, account.ID, dec("25.50"), "")
	require.NoError(t, err)

	_, err = svc.Adjust(ctx, account.ID, dec("-30"), "clawback")
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	entry, err := svc.Adjust(ctx, account.ID, dec("-5.50"), "clawback")
	require.NoError(t, err)
	require.Equal(t, store.CreditTypeManualAdjust, entry.Type)

	balance, err := svc.Balance(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "20.00", balance.StringFixed(2))

	_, err = svc.Adjust(ctx, account.ID, decimal.Zero, "")
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	_, err = svc.Adjust(ctx, 12345, dec("1"), "")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestVerifyAllReportsDrift(t *testing.T) {
	svc, fx, db := newTestService(t)
	ctx := context.Background()
	good := fx.Account()
	drifted := fx.Account()

	_, err := svc.Adjust(ctx, good.ID, dec("10.00"), "")
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, drifted.ID, dec("10.00"), "")
	require.NoError(t, err)

	// balance edited behind the ledger's back
	require.NoError(t, db.Model(&store.Account{}).Where("id = ?", drifted.ID).
		Update("credit_balance", dec("12.00")).Error)

	report, err := svc.VerifyAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Checked)
	require.False(t, report.Consistent())
	require.Len(t, report.Mismatches, 1)
	require.Equal(t, drifted.ID, report.Mismatches[0].AccountID)
	require.Equal(t, "10.00", report.Mismatches[0].LedgerSum.StringFixed(2))
}

func TestListEntriesPaginates(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx := context.Background()
	account := fx.Account()

	for i := 0; i < 3; i++ {
		_, err := svc.Adjust(ctx, account.ID, dec("1.00"), "")
		require.NoError(t, err)
	}

	page, info, err := svc.ListEntries(ctx, account.ID, pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.True(t, info.HasMore)
	require.Greater(t, page[0].ID, page[1].ID)

	rest, info, err := svc.ListEntries(ctx, account.ID, pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.False(t, info.HasMore)
	require.Less(t, rest[0].ID, page[1].ID)
}
