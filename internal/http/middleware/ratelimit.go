package middleware

import (
	"net/http"
	"path"
	"sync"
	"time"
)

// RateLimiter provides per-IP rate limiting using a token bucket algorithm.
// Requests carry a cost: endpoints that fan out to an LLM provider drain the
// bucket faster than reads and lifecycle flips.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // max tokens
}

type bucket struct {
	tokens   float64
	lastTime time.Time
}

// llmRequestCost is charged for endpoints whose handler round-trips to an
// LLM provider (and retries up to three times on transient failures).
const llmRequestCost = 4

// NewRateLimiter creates a rate limiter allowing rate tokens/sec with the
// given burst size per IP.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
	}
	// Periodically evict stale entries to prevent memory growth.
	go rl.cleanup()
	return rl
}

// Allow charges one token for the request from ip.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.AllowN(ip, 1)
}

// AllowN charges cost tokens for the request from ip, reporting whether the
// bucket could cover it.
func (rl *RateLimiter) AllowN(ip string, cost float64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), lastTime: now}
		rl.buckets[ip] = b
	}

	elapsed := now.Sub(b.lastTime).Seconds()
	b.tokens += elapsed * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastTime = now

	if b.tokens < cost {
		return false
	}
	b.tokens -= cost
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for ip, b := range rl.buckets {
			if b.lastTime.Before(cutoff) {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// requestCost weighs a request by what its handler triggers. Starting a
// session, submitting a response, clarifying, regenerating a report, and
// ending (which runs the three evaluation sub-calls) all hit an LLM
// provider; everything else is a read or a state flip.
func requestCost(r *http.Request) float64 {
	if r.Method != http.MethodPost {
		return 1
	}
	switch path.Base(r.URL.Path) {
	case "start", "responses", "clarify", "end", "report":
		return llmRequestCost
	}
	return 1
}

// RateLimit returns an HTTP middleware that rejects requests exceeding the
// configured rate with 429 Too Many Requests.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			// Prefer X-Real-Ip set by chi's RealIP middleware.
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				ip = xri
			}
			if !limiter.AllowN(ip, requestCost(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
