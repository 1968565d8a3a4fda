// Package ratelimit throttles requests per client with token buckets.
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Limiter is a token bucket.
type Limiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	burst    float64
	tokens   float64
	lastTime time.Time
	now      func() time.Time
}

// New returns a full bucket refilling at rate tokens per second.
func New(rate float64, burst int) *Limiter {
	return newLimiter(rate, burst, time.Now)
}

func newLimiter(rate float64, burst int, now func() time.Time) *Limiter {
	return &Limiter{rate: rate, burst: float64(burst), tokens: float64(burst), lastTime: now(), now: now}
}

// Allow consumes one token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.tokens = min(l.burst, l.tokens+now.Sub(l.lastTime).Seconds()*l.rate)
	l.lastTime = now

	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// KeyLimiter keeps one Limiter per key and forgets keys idle for ttl.
type KeyLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rate     float64
	burst    int
	ttl      time.Duration
	now      func() time.Time

	stopCh chan struct{}
	once   sync.Once
}

type entry struct {
	limiter  *Limiter
	lastSeen time.Time
}

// NewKeyLimiter starts a sweeper that runs every ttl until Close.
func NewKeyLimiter(rate float64, burst int, ttl time.Duration) *KeyLimiter {
	if ttl <= 0 {
		ttl = time.Hour
	}
	kl := &KeyLimiter{
		limiters: make(map[string]*entry),
		rate:     rate,
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go kl.cleanup()
	return kl
}

// Allow reports whether key may proceed.
func (kl *KeyLimiter) Allow(key string) bool {
	kl.mu.Lock()
	e, ok := kl.limiters[key]
	if !ok {
		e = &entry{limiter: newLimiter(kl.rate, kl.burst, kl.now)}
		kl.limiters[key] = e
	}
	e.lastSeen = kl.now()
	kl.mu.Unlock()
	return e.limiter.Allow()
}

// Size returns the number of tracked keys.
func (kl *KeyLimiter) Size() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}

// Close stops the sweeper.
func (kl *KeyLimiter) Close() {
	kl.once.Do(func() { close(kl.stopCh) })
}

func (kl *KeyLimiter) cleanup() {
	ticker := time.NewTicker(kl.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.removeIdle()
		}
	}
}

func (kl *KeyLimiter) removeIdle() {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	now := kl.now()
	for key, e := range kl.limiters {
		if now.Sub(e.lastSeen) > kl.ttl {
			delete(kl.limiters, key)
		}
	}
}

// ClientIP keys requests by RemoteAddr without the port. Run chi's
// RealIP first when behind a proxy.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Config configures Middleware.
type Config struct {
	// Rate is requests per second per client.
	Rate float64
	// Burst is the bucket size.
	Burst int
	// KeyFunc defaults to ClientIP.
	KeyFunc func(r *http.Request) string
	// TTL defaults to 1 hour.
	TTL time.Duration
}

// Middleware answers 429 to clients over their budget. The returned
// KeyLimiter should be closed on shutdown.
func Middleware(cfg Config, logger *zap.Logger) (func(http.Handler) http.Handler, *KeyLimiter) {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := NewKeyLimiter(cfg.Rate, cfg.Burst, cfg.TTL)
	retryAfter := "1"
	if cfg.Rate > 0 && cfg.Rate < 1 {
		retryAfter = strconv.Itoa(int(1/cfg.Rate + 0.5))
	}

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)
			if !limiter.Allow(key) {
				logger.Warn("rate limited", zap.String("key", key), zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	return mw, limiter
}
