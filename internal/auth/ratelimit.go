package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter keeps a token bucket per client address
type IPLimiter struct {
	every rate.Limit
	burst int
	idle  time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewIPLimiter allows perMinute attempts per address with an equal burst
func NewIPLimiter(perMinute int) *IPLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	return &IPLimiter{
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		idle:     10 * time.Minute,
		visitors: make(map[string]*visitor),
	}
}

// Allow consumes one attempt for ip
func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	for addr, other := range l.visitors {
		if now.Sub(other.lastSeen) > l.idle {
			delete(l.visitors, addr)
		}
	}
	return v.limiter.AllowN(now, 1)
}
