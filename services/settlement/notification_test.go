package settlement

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsDelivered(t *testing.T) {
	cases := []struct {
		status any
		want   bool
	}{
		{float64(1), false},
		{float64(2), true},
		{float64(4), true},
		{json.Number("3"), true},
		{2, true},
		{"2", true},
		{"1", false},
		{" 3 ", true},
		{"Inf", false},
		{"Infinity", false},
		{"1e9", false},
		{"2.5", false},
		{json.Number("1e9"), false},
		{"DELIVERY_ACK", true},
		{"delivered", true},
		{"read", true},
		{"SERVER_ACK", false},
		{"pending", false},
		{nil, false},
		{true, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, IsDelivered(tc.status), "status %#v", tc.status)
	}
}

func TestParseShapes(t *testing.T) {
	envelope := `{"updates":[{"key":{"id":"A"},"update":{"status":3}},{"messageId":"B","status":"read"},{"status":2}]}`
	got, err := Parse([]byte(envelope))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "A", got[0].MessageID)
	require.Equal(t, float64(3), got[0].Status)
	require.Equal(t, "B", got[1].MessageID)
	require.Equal(t, "read", got[1].Status)

	got, err = Parse([]byte(`[{"messageId":"C","status":"delivered"}]`))
	require.NoError(t, err)
	require.Equal(t, []Notification{{MessageID: "C", Status: "delivered"}}, got)

	got, err = Parse([]byte(` {"key":{"id":"D"},"status":1,"update":{"status":"DELIVERY_ACK"}} `))
	require.NoError(t, err)
	require.Equal(t, []Notification{{MessageID: "D", Status: "DELIVERY_ACK"}}, got)
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{"", "not json", "42", `{"updates":[1,`} {
		_, err := Parse([]byte(raw))
		require.Error(t, err, raw)
	}
}
