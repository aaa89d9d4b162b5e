package ledger

import (
	"context"
	"strconv"
	"time"

	"sendpool/pkg/db/option"
	"sendpool/pkg/db/pagination"
	"sendpool/pkg/errutil"
	"sendpool/pkg/repository"
	"sendpool/services/store"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time

	logs     repository.Repository[store.CreditLog]
	accounts repository.Repository[store.Account]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		now:  store.Now,

		logs:     repository.ProvideStore[store.CreditLog](p.DB),
		accounts: repository.ProvideStore[store.Account](p.DB),
	}
}

func logFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// Credit appends e to the ledger and moves the account's cached balance by the
// same amount. It must run inside the caller's transaction so the two writes
// commit or roll back together.
func (s *Service) Credit(ctx context.Context, tx *gorm.DB, e Entry) (*store.CreditLog, error) {
	if e.Amount.IsZero() {
		return nil, errutil.BadRequest("credit amount must not be zero", nil)
	}

	entry := &store.CreditLog{
		ID:          s.node.Generate().Int64(),
		UserID:      e.AccountID,
		Type:        e.Type,
		Amount:      e.Amount,
		ReferenceID: e.ReferenceID,
		Description: e.Description,
		CreatedAt:   s.now(),
	}
	if err := s.logs.WithTrx(tx).Create(ctx, entry); err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to append credit log", zap.Int64("account_id", e.AccountID), zap.Error(err))
		return nil, err
	}

	res := tx.WithContext(ctx).Model(&store.Account{}).
		Where("id = ?", e.AccountID).
		Updates(map[string]any{
			"credit_balance": gorm.Expr("credit_balance + ?", e.Amount),
			"updated_at":     s.now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, errutil.NotFound("account not found", nil)
	}

	return entry, nil
}

// Adjust posts a manual_adjust entry. A negative amount may not take the
// balance below zero.
func (s *Service) Adjust(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*store.CreditLog, error) {
	amount = amount.Round(2)
	if amount.IsZero() {
		return nil, errutil.BadRequest("amount must not be zero", nil)
	}
	if description == "" {
		description = "Manual adjustment"
	}

	var entry *store.CreditLog
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accounts.WithTrx(tx).FindOne(ctx, &store.Account{ID: accountID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if account == nil {
			return errutil.NotFound("account not found", nil)
		}
		if account.CreditBalance.Add(amount).IsNegative() {
			return errutil.BadRequest("adjustment would make balance negative", nil,
				errutil.WithMeta("balance", account.CreditBalance.StringFixed(2)))
		}

		entry, err = s.Credit(ctx, tx, Entry{
			AccountID:   accountID,
			Type:        store.CreditTypeManualAdjust,
			Amount:      amount,
			Description: description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().With(logFields(ctx)...).Info("manual credit adjustment",
		zap.Int64("account_id", accountID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return entry, nil
}

func (s *Service) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	account, err := s.accounts.FindOne(ctx, &store.Account{ID: accountID})
	if err != nil {
		return decimal.Zero, err
	}
	if account == nil {
		return decimal.Zero, errutil.NotFound("account not found", nil)
	}
	return account.CreditBalance, nil
}

// ListEntries pages through an account's ledger, newest first.
func (s *Service) ListEntries(ctx context.Context, accountID int64, p pagination.Pagination) ([]*store.CreditLog, *pagination.PageInfo, error) {
	entries, err := s.logs.Find(ctx, &store.CreditLog{UserID: accountID}, option.ApplyPagination(p))
	if err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to list credit logs", zap.Error(err))
		return nil, nil, err
	}

	entries, info := pagination.BuildCursorPageInfo(entries, p.NormalizedLimit(), func(e *store.CreditLog) pagination.Cursor {
		return pagination.Cursor{ID: itoa(e.ID), CreatedAt: e.CreatedAt.Format(time.RFC3339Nano)}
	})
	return entries, info, nil
}

func (s *Service) sums(tx *gorm.DB) *gorm.DB {
	return tx.Table("users").
		Select("users.id, users.credit_balance, COALESCE(SUM(credit_logs.amount), 0) AS ledger_sum").
		Joins("LEFT JOIN credit_logs ON credit_logs.user_id = users.id").
		Group("users.id, users.credit_balance")
}

// VerifyAccount checks one account's balance against its entries. It
// returns nil when they agree.
func (s *Service) VerifyAccount(ctx context.Context, accountID int64) (*Mismatch, error) {
	var rows []Mismatch
	if err := s.sums(s.db.WithContext(ctx)).Where("users.id = ?", accountID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errutil.NotFound("account not found", nil)
	}
	if rows[0].CreditBalance.Equal(rows[0].LedgerSum) {
		return nil, nil
	}
	return &rows[0], nil
}

// VerifyAll scans every account. It is a background check, never part of a
// request path.
func (s *Service) VerifyAll(ctx context.Context) (*Report, error) {
	var rows []Mismatch
	if err := s.sums(s.db.WithContext(ctx)).Order("users.id").Scan(&rows).Error; err != nil {
		zap.L().With(logFields(ctx)...).Error("ledger verification query failed", zap.Error(err))
		return nil, err
	}

	report := &Report{Checked: len(rows), Mismatches: []Mismatch{}}
	for _, row := range rows {
		if row.CreditBalance.Equal(row.LedgerSum) {
			continue
		}
		report.Mismatches = append(report.Mismatches, row)
		zap.L().With(logFields(ctx)...).Warn("ledger mismatch",
			zap.Int64("account_id", row.AccountID),
			zap.String("credit_balance", row.CreditBalance.StringFixed(2)),
			zap.String("ledger_sum", row.LedgerSum.StringFixed(2)),
		)
	}
	return report, nil
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
