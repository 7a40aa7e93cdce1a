package server

import (
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"tailorcv/internal/errors"
)

const defaultEvictionAge = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key. Idle buckets are
// evicted so a key that comes back starts full.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	perSec   rate.Limit
	burst    int
	evict    time.Duration
	rejected atomic.Int64
	stop     chan struct{}
	once     sync.Once
	logger   *errors.Logger
}

// NewRateLimiter allows requestsPerMin per key with the given burst. Keys
// idle for longer than evictAfter are forgotten.
func NewRateLimiter(requestsPerMin int, evictAfter time.Duration, burst int, logger *errors.Logger) *RateLimiter {
	if evictAfter <= 0 {
		evictAfter = defaultEvictionAge
	}
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		perSec:  rate.Limit(float64(requestsPerMin) / 60),
		burst:   max(burst, 1),
		evict:   evictAfter,
		stop:    make(chan struct{}),
		logger:  logger,
	}
	go rl.evictLoop()
	return rl
}

// Allow takes a token for key.
func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.take(key)
	return ok
}

// take reports whether key may proceed and, if not, how long until it may.
func (rl *RateLimiter) take(key string) (bool, time.Duration) {
	now := time.Now()
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.perSec, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		rl.rejected.Add(1)
		return false, rl.evict
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		rl.rejected.Add(1)
		return false, min(wait, rl.evict)
	}
	return true, 0
}

// GetStats reports the limiter settings and counters for /stats.
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mu.Lock()
	active := len(rl.buckets)
	rl.mu.Unlock()

	return map[string]any{
		"active_limiters": active,
		"rate_per_second": float64(rl.perSec),
		"rate_per_minute": float64(rl.perSec) * 60,
		"burst_capacity":  rl.burst,
		"eviction_age":    rl.evict.String(),
		"rejected_total":  rl.rejected.Load(),
	}
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.evict)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(rl.evict)
		case <-rl.stop:
			return
		}
	}
}

// cleanup drops buckets idle for longer than age.
func (rl *RateLimiter) cleanup(age time.Duration) {
	cutoff := time.Now().Add(-age)
	rl.mu.Lock()
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
	remaining := len(rl.buckets)
	rl.mu.Unlock()

	if rl.logger != nil {
		rl.logger.Debug("Rate limiter cleanup completed", "remaining_limiters", remaining)
	}
}

// Close stops eviction. It may be called more than once.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// rateLimitMiddleware rejects clients that ran out of tokens with 429 and a
// Retry-After header.
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := getRateLimitKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			if key == "" {
				next(w, r)
				return
			}
			ok, wait := s.RateLimiter.take(key)
			if !ok {
				s.metrics.RecordRateLimitHit(r.Context(), r.URL.Path)
				s.Logger.Info("Rate limit exceeded",
					"key", logSafeKey(key),
					"endpoint", r.URL.Path,
					"client_ip", getClientIP(r),
					"retry_after", wait.String())
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeErrorResponse(w, "Rate limit exceeded", "Too many requests", http.StatusTooManyRequests)
				return
			}
			next(w, r)
		}
	}
}

// getRateLimitKey prefers the API key when both are enabled.
func getRateLimitKey(r *http.Request, byAPIKey, byIP bool) string {
	if byAPIKey {
		if apiKey := requestAPIKey(r); apiKey != "" {
			return "api:" + apiKey
		}
	}
	if byIP {
		return "ip:" + getClientIP(r)
	}
	return ""
}

func logSafeKey(key string) string {
	if apiKey, ok := strings.CutPrefix(key, "api:"); ok {
		return "api:" + maskAPIKey(apiKey)
	}
	return key
}

// getClientIP trusts X-Forwarded-For, then X-Real-IP, then RemoteAddr.
func getClientIP(r *http.Request) string {
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
