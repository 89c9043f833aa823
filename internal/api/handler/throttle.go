package handler

import (
	"sync"
	"time"

	"supportbot/backend/internal/config"

	"github.com/RussellLuo/slidingwindow"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// complaintThrottle caps how many complaints one user may file per window.
// Limiters of users idle for two windows are evicted; by then their sliding
// count has decayed to zero.
type complaintThrottle struct {
	mu       sync.Mutex
	limiters *expirable.LRU[int64, *slidingwindow.Limiter]
	limit    int64
}

func newComplaintThrottle(limit int64) *complaintThrottle {
	return newComplaintThrottleSize(limit, config.ComplaintThrottleSize)
}

func newComplaintThrottleSize(limit int64, size int) *complaintThrottle {
	return &complaintThrottle{
		limiters: expirable.NewLRU[int64, *slidingwindow.Limiter](size, nil, 2*config.ComplaintThrottleWindow),
		limit:    limit,
	}
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

// limiter returns the user's limiter and renews its expiry.
func (t *complaintThrottle) limiter(userID int64) *slidingwindow.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.limiters.Get(userID)
	if !ok {
		lim, _ = slidingwindow.NewLimiter(config.ComplaintThrottleWindow, t.limit, windowFunc)
	}
	t.limiters.Add(userID, lim)
	return lim
}

// Take charges one complaint to the user. It reports false when the user is
// over the limit.
func (t *complaintThrottle) Take(userID int64) bool {
	return t.limiter(userID).Allow()
}

// Refund hands back the charge of a complaint that was not recorded.
func (t *complaintThrottle) Refund(userID int64) {
	t.limiter(userID).AllowN(time.Now(), -1)
}

// Tracked is the number of users holding a limiter.
func (t *complaintThrottle) Tracked() int {
	return t.limiters.Len()
}
