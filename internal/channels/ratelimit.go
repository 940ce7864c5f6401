package channels

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedChats caps the number of tracked per-chat limiters so a flood of
// distinct chat ids cannot exhaust memory.
const maxTrackedChats = 4096

// SendLimiter applies a per-chat token bucket to outbound sends.
// Safe for concurrent use.
type SendLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewSendLimiter creates a limiter allowing rpm sends per chat per minute.
// rpm <= 0 disables limiting.
func NewSendLimiter(rpm int) *SendLimiter {
	var limit rate.Limit = rate.Inf
	burst := 1
	if rpm > 0 {
		limit = rate.Limit(float64(rpm) / 60.0)
		burst = rpm
	}
	return &SendLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether a send to chatID is within the rate limit.
func (l *SendLimiter) Allow(chatID string) bool {
	return l.limiter(chatID).Allow()
}

func (l *SendLimiter) limiter(chatID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[chatID]; ok {
		return lim
	}

	// Hard eviction at cap (map iteration order is effectively random)
	for len(l.limiters) >= maxTrackedChats {
		for k := range l.limiters {
			delete(l.limiters, k)
			break
		}
	}

	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters[chatID] = lim
	return lim
}
