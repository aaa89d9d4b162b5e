package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"sendpool/pkg/errutil"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL   = 10 * time.Minute
	limiterSweepTick = 5 * time.Minute
)

type accountBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// AccountLimiter keeps one token bucket per authenticated account. Buckets
// idle for longer than idleTTL are full again and get dropped by Sweep.
type AccountLimiter struct {
	mu      sync.Mutex
	buckets map[int64]*accountBucket
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

func NewAccountLimiter(perMinute, burst int) *AccountLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	interval := time.Minute / time.Duration(max(perMinute, 1))
	return &AccountLimiter{
		buckets: make(map[int64]*accountBucket),
		limit:   rate.Every(interval),
		burst:   burst,
		idleTTL: max(limiterIdleTTL, interval*time.Duration(burst)),
		now:     time.Now,
	}
}

func (l *AccountLimiter) get(accountID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[accountID]
	if !ok {
		b = &accountBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[accountID] = b
	}
	b.lastSeen = l.now()
	return b.limiter
}

// Sweep drops idle buckets and returns how many it removed.
func (l *AccountLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, id)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (l *AccountLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Middleware must follow AuthRequired.
func (l *AccountLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := l.get(AccountID(c))

		r := limiter.Reserve()
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			retry := int(delay.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retry))
			abort(c, errutil.TooManyRequest("too many job requests", nil,
				errutil.WithReason("requests"),
				errutil.WithRetryAfter(retry),
			))
			return
		}

		c.Next()
	}
}
