package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

type window struct {
	start time.Time
	count float64
	prev  float64
}

// SlidingWindow approximates a sliding log by weighting the previous fixed
// window by its overlap with the current one.
type SlidingWindow struct {
	max   int
	size  time.Duration
	mu    sync.Mutex
	byKey map[string]*window
}

// NewSlidingWindow allows limit events per size for each key.
func NewSlidingWindow(limit int, size time.Duration) *SlidingWindow {
	return &SlidingWindow{max: limit, size: size, byKey: make(map[string]*window)}
}

// Decision is the outcome of SlidingWindow.Allow.
type Decision struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Allow records an event for key at now if it fits in the limit.
func (s *SlidingWindow) Allow(key string, now time.Time) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.byKey[key]
	if !ok {
		w = &window{start: now}
		s.byKey[key] = w
	}
	if since := now.Sub(w.start); since >= s.size {
		w.prev = w.count
		if since >= 2*s.size {
			w.prev = 0
		}
		w.count = 0
		w.start = now.Truncate(s.size)
	}

	overlap := max(0, 1-now.Sub(w.start).Seconds()/s.size.Seconds())
	used := w.prev*overlap + w.count
	reset := w.start.Add(s.size)
	if used >= float64(s.max) {
		return Decision{Reset: reset}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Remaining: max(0, int(float64(s.max)-used-1)),
		Reset:     reset,
	}
}

// Evict drops keys idle for two windows.
func (s *SlidingWindow) Evict(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, w := range s.byKey {
		if now.Sub(w.start) >= 2*s.size {
			delete(s.byKey, key)
		}
	}
}

// Len returns the number of tracked keys.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}

// RateLimit rejects clients over the limit with 429 and reports the limit
// state in X-RateLimit-* headers. Idle keys are never evicted; use
// RateLimitWithCleanup for long running servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return rateLimit(cfg, NewSlidingWindow(cfg.Max, cfg.Window))
}

// RateLimitWithCleanup is RateLimit with a background eviction loop that
// runs every two windows until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	sw := NewSlidingWindow(cfg.Max, cfg.Window)
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				sw.Evict(now)
			}
		}
	}()
	return rateLimit(cfg, sw)
}

func rateLimit(cfg RateLimitConfig, sw *SlidingWindow) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			d := sw.Allow(keyFunc(r), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
			if !d.Allowed {
				wait := max(0, d.Reset.Sub(now))
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For address, then X-Real-IP, then
// the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// APIKeyOrIP keys authenticated clients by their API key and everyone else
// by ClientIP.
func APIKeyOrIP(r *http.Request) string {
	if key := r.Header.Get("api_key"); key != "" {
		return "key:" + key
	}
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "Bearer ") {
		return "key:" + strings.TrimPrefix(v, "Bearer ")
	}
	return "ip:" + ClientIP(r)
}
