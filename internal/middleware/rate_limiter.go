package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleAfter is how long a limiter may go unused before cleanup drops it.
const idleAfter = 10 * time.Minute

// RateLimiter keeps token buckets per user (chat messages) and per IP
// (connection upgrades).
type RateLimiter struct {
	userLimits map[uint]*limitEntry
	ipLimits   map[string]*limitEntry
	mu         sync.Mutex

	userLimit rate.Limit
	userBurst int
	ipLimit   rate.Limit
	ipBurst   int

	cleanupInterval time.Duration
}

type limitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows userPerMinute messages per user and ipPerMinute
// upgrades per IP, each with its own burst.
func NewRateLimiter(userPerMinute, userBurst, ipPerMinute, ipBurst int) *RateLimiter {
	return &RateLimiter{
		userLimits:      make(map[uint]*limitEntry),
		ipLimits:        make(map[string]*limitEntry),
		userLimit:       perMinute(userPerMinute),
		userBurst:       atLeastOne(userBurst),
		ipLimit:         perMinute(ipPerMinute),
		ipBurst:         atLeastOne(ipBurst),
		cleanupInterval: 5 * time.Minute,
	}
}

func perMinute(n int) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Minute / time.Duration(n))
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// CheckUserLimit reports whether the user may send another message now.
func (rl *RateLimiter) CheckUserLimit(userID uint) bool {
	rl.mu.Lock()
	e, ok := rl.userLimits[userID]
	if !ok {
		e = &limitEntry{limiter: rate.NewLimiter(rl.userLimit, rl.userBurst)}
		rl.userLimits[userID] = e
	}
	e.lastSeen = time.Now()
	rl.mu.Unlock()

	return e.limiter.Allow()
}

// CheckIPLimit reports whether the IP may open another connection now.
func (rl *RateLimiter) CheckIPLimit(ip string) bool {
	rl.mu.Lock()
	e, ok := rl.ipLimits[ip]
	if !ok {
		e = &limitEntry{limiter: rate.NewLimiter(rl.ipLimit, rl.ipBurst)}
		rl.ipLimits[ip] = e
	}
	e.lastSeen = time.Now()
	rl.mu.Unlock()

	return e.limiter.Allow()
}

// LimitByIP rejects requests from IPs over their limit with 429.
func (rl *RateLimiter) LimitByIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.CheckIPLimit(clientIP(r)) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Serve drops idle limiters until ctx is cancelled.
func (rl *RateLimiter) Serve(ctx context.Context) error {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-idleAfter))
		}
	}
}

func (rl *RateLimiter) String() string {
	return "rate-limiter-cleanup"
}

func (rl *RateLimiter) cleanup(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for userID, e := range rl.userLimits {
		if e.lastSeen.Before(cutoff) {
			delete(rl.userLimits, userID)
		}
	}
	for ip, e := range rl.ipLimits {
		if e.lastSeen.Before(cutoff) {
			delete(rl.ipLimits, ip)
		}
	}
}

// Reset clears all rate limits (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.userLimits = make(map[uint]*limitEntry)
	rl.ipLimits = make(map[string]*limitEntry)
}
