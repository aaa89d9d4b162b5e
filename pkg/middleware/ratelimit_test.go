package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAccountLimiterSweepDropsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewAccountLimiter(15, 15)
	l.now = func() time.Time { return now }

	first := l.get(1)
	now = now.Add(9 * time.Minute)
	l.get(2)

	now = now.Add(2 * time.Minute)
	require.Equal(t, 1, l.Sweep())
	require.Len(t, l.buckets, 1)
	require.Contains(t, l.buckets, int64(2))

	require.NotSame(t, first, l.get(1))
	require.Len(t, l.buckets, 2)
}

func TestAccountLimiterKeepsBucketUntilRefilled(t *testing.T) {
	l := NewAccountLimiter(1, 30)
	require.Equal(t, 30*time.Minute, l.idleTTL)
}
