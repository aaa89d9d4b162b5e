package store

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Money renders an amount as a JSON string with exactly two decimals.
type Money decimal.Decimal

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(decimal.Decimal(m).StringFixed(2))
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*m = Money(d)
	return nil
}

func (a Account) MarshalJSON() ([]byte, error) {
	type account Account
	return json.Marshal(struct {
		account
		CreditBalance   Money `json:"credit_balance"`
		ReferralPercent Money `json:"referral_percent"`
	}{account(a), Money(a.CreditBalance), Money(a.ReferralPercent)})
}

func (r Referral) MarshalJSON() ([]byte, error) {
	type referral Referral
	return json.Marshal(struct {
		referral
		TotalBonusEarned Money `json:"total_bonus_earned"`
	}{referral(r), Money(r.TotalBonusEarned)})
}

func (c Campaign) MarshalJSON() ([]byte, error) {
	type campaign Campaign
	return json.Marshal(struct {
		campaign
		RewardPerJob Money `json:"reward_per_job"`
	}{campaign(c), Money(c.RewardPerJob)})
}

func (j Job) MarshalJSON() ([]byte, error) {
	type job Job
	return json.Marshal(struct {
		job
		RewardAmount Money `json:"reward_amount"`
	}{job(j), Money(j.RewardAmount)})
}

func (l CreditLog) MarshalJSON() ([]byte, error) {
	type creditLog CreditLog
	return json.Marshal(struct {
		creditLog
		Amount Money `json:"amount"`
	}{creditLog(l), Money(l.Amount)})
}
