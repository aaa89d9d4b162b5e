package ledger

import (
	"encoding/json"

	"sendpool/services/store"

	"github.com/shopspring/decimal"
)

// Entry is one credit to post. Amount may be negative only for manual
// adjustments.
type Entry struct {
	AccountID   int64
	Type        store.CreditType
	Amount      decimal.Decimal
	ReferenceID *int64
	Description string
}

// Mismatch is an account whose cached balance disagrees with its entries.
type Mismatch struct {
	AccountID     int64           `json:"account_id,string" gorm:"column:id"`
	CreditBalance decimal.Decimal `json:"credit_balance" gorm:"column:credit_balance"`
	LedgerSum     decimal.Decimal `json:"ledger_sum" gorm:"column:ledger_sum"`
}

func (m Mismatch) MarshalJSON() ([]byte, error) {
	type mismatch Mismatch
	return json.Marshal(struct {
		mismatch
		CreditBalance store.Money `json:"credit_balance"`
		LedgerSum     store.Money `json:"ledger_sum"`
	}{mismatch(m), store.Money(m.CreditBalance), store.Money(m.LedgerSum)})
}

type Report struct {
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches"`
}

func (r *Report) Consistent() bool {
	return len(r.Mismatches) == 0
}
