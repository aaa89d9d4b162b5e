package store

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMoneyRendersTwoDecimals(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10", `"10.00"`},
		{"10.5", `"10.50"`},
		{"-3.333", `"-3.33"`},
		{"0", `"0.00"`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(Money(decimal.RequireFromString(tt.in)))
		require.NoError(t, err)
		require.Equal(t, tt.want, string(b), tt.in)
	}

	var m Money
	require.NoError(t, json.Unmarshal([]byte(`"12.30"`), &m))
	require.True(t, decimal.RequireFromString("12.3").Equal(decimal.Decimal(m)))
}

func TestAccountJSONKeepsOtherFields(t *testing.T) {
	a := Account{
		ID:              42,
		Name:            "ana",
		CreditBalance:   decimal.NewFromInt(10),
		ReferralPercent: decimal.NewFromInt(105),
	}
	b, err := json.Marshal(&a)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Equal(t, "42", raw["id"])
	require.Equal(t, "ana", raw["name"])
	require.Equal(t, "10.00", raw["credit_balance"])
	require.Equal(t, "105.00", raw["referral_percent"])

	var back Account
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, int64(42), back.ID)
	require.True(t, a.CreditBalance.Equal(back.CreditBalance))
}

func TestCreditLogJSONAmount(t *testing.T) {
	b, err := json.Marshal(CreditLog{ID: 1, Type: CreditTypeJobReward, Amount: decimal.RequireFromString("0.5")})
	require.NoError(t, err)
	require.Contains(t, string(b), `"amount":"0.50"`)
	require.Contains(t, string(b), `"type":"job_reward"`)
}
