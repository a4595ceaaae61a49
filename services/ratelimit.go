package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter tracks request quotas per client address. Each address gets
// a token bucket sized to the configured ceiling, refilled over the window,
// so a client that exhausts its quota recovers fully after one idle window.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows up to `requests` requests per `window` for each
// client address.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests < 1 {
		requests = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		// Idle buckets are purged after three full windows.
		ttl: 3 * window,
	}
}

// Allow reports whether a request from addr may proceed now.
func (r *RateLimiter) Allow(addr string) bool {
	return r.AllowAt(time.Now(), addr)
}

// AllowAt is Allow with an explicit clock, used by tests.
func (r *RateLimiter) AllowAt(now time.Time, addr string) bool {
	r.mu.Lock()
	v, ok := r.visitors[addr]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.visitors[addr] = v
	}
	v.lastSeen = now
	r.purgeStale(now)
	r.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// purgeStale drops buckets idle past the TTL. Caller holds the lock.
func (r *RateLimiter) purgeStale(now time.Time) {
	for addr, v := range r.visitors {
		if now.Sub(v.lastSeen) > r.ttl {
			delete(r.visitors, addr)
		}
	}
}

// ActiveClients returns the number of tracked addresses.
func (r *RateLimiter) ActiveClients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}
