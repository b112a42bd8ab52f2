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

// DefaultRateLimitMessage is the 429 body message used when
// RateLimitConfig.Message is empty.
const DefaultRateLimitMessage = "Too many requests from this IP, please try again later"

// RateLimitConfig configures a fixed window limiter. Each client gets Max
// requests per Window, counted from its first request in the window.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// Message replaces DefaultRateLimitMessage.
	Message string
	// KeyFunc identifies the client. Defaults to ClientIP, see
	// TrustedClientIP for other proxy depths.
	KeyFunc func(*http.Request) string
	// Skip exempts matching requests. Skipped requests get no RateLimit
	// headers.
	Skip func(*http.Request) bool
}

type window struct {
	hits    int
	resetAt time.Time
}

// quota is the state of a client's window after counting one request.
type quota struct {
	remaining int
	resetIn   time.Duration
	exceeded  bool
}

// resetSeconds rounds the time to reset up to whole seconds.
func (q quota) resetSeconds() string {
	return strconv.Itoa(int(math.Ceil(max(q.resetIn, 0).Seconds())))
}

type rateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	windows map[string]window
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Message == "" {
		cfg.Message = DefaultRateLimitMessage
	}
	return &rateLimiter{cfg: cfg, now: time.Now, windows: make(map[string]window)}
}

// take counts one request for key.
func (rl *rateLimiter) take(key string) quota {
	now := rl.now()

	rl.mu.Lock()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = window{resetAt: now.Add(rl.cfg.Window)}
	}
	w.hits++
	rl.windows[key] = w
	rl.mu.Unlock()

	return quota{
		remaining: max(rl.cfg.Max-w.hits, 0),
		resetIn:   w.resetAt.Sub(now),
		exceeded:  w.hits > rl.cfg.Max,
	}
}

// evictExpired drops windows that ended before now.
func (rl *rateLimiter) evictExpired(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

func (rl *rateLimiter) runEviction(ctx context.Context) {
	ticker := time.NewTicker(rl.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evictExpired(now)
		}
	}
}

// RateLimit limits each client to cfg.Max requests per cfg.Window and
// answers 429 with a JSON error once the quota is spent. Responses carry
// the RateLimit-Policy, RateLimit-Limit, RateLimit-Remaining and
// RateLimit-Reset headers. Expired windows are only replaced, never evicted,
// so long-running servers should use RateLimitWithCleanup.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newRateLimiter(cfg).middleware()
}

// RateLimitWithCleanup is RateLimit plus a goroutine that evicts expired
// windows every cfg.Window until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	go rl.runEviction(ctx)
	return rl.middleware()
}

func (rl *rateLimiter) middleware() Middleware {
	limit := strconv.Itoa(rl.cfg.Max)
	policy := limit + ";w=" + strconv.Itoa(int(rl.cfg.Window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.cfg.Skip != nil && rl.cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			q := rl.take(rl.cfg.KeyFunc(r))
			reset := q.resetSeconds()

			h := w.Header()
			h.Set("RateLimit-Policy", policy)
			h.Set("RateLimit-Limit", limit)
			h.Set("RateLimit-Remaining", strconv.Itoa(q.remaining))
			h.Set("RateLimit-Reset", reset)

			if q.exceeded {
				h.Set("Retry-After", reset)
				writeError(w, http.StatusTooManyRequests, rl.cfg.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys a request by the address the nearest proxy saw, which is
// the last X-Forwarded-For entry. It matches TrustedClientIP(1).
func ClientIP(r *http.Request) string {
	return clientIP(r, 1)
}

// TrustedClientIP returns a KeyFunc for a server behind hops proxies. Each
// proxy appends the address it received from, so entries left of the last
// hops are client supplied and ignored. Zero trusts no headers and keys by
// RemoteAddr.
func TrustedClientIP(hops int) func(*http.Request) string {
	return func(r *http.Request) string { return clientIP(r, hops) }
}

func clientIP(r *http.Request, hops int) string {
	if hops > 0 {
		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			entries := strings.Split(strings.Join(xff, ","), ",")
			if ip := strings.TrimSpace(entries[max(len(entries)-hops, 0)]); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
