package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/log"
)

// Limiter allows a fixed number of requests per client per window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	now     func() time.Time

	limit  int
	window time.Duration
	hits   int64
}

type clientWindow struct {
	count     int
	resetTime time.Time
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	// Window defaults to one minute.
	Window time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{RequestsPerMinute: 60, Window: time.Minute}
}

// NewLimiter creates a limiter. Expired windows are dropped by
// CleanExpired, which the cache manager calls on its sweep.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	return &Limiter{
		clients: make(map[string]*clientWindow),
		now:     time.Now,
		limit:   config.RequestsPerMinute,
		window:  config.Window,
	}
}

// Allow records a request from clientIP and reports whether it is within
// the limit. The second value is how long until the window resets.
func (rl *Limiter) Allow(clientIP string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, ok := rl.clients[clientIP]
	if !ok || !now.Before(client.resetTime) {
		rl.clients[clientIP] = &clientWindow{count: 1, resetTime: now.Add(rl.window)}
		return true, rl.window
	}
	if client.count >= rl.limit {
		atomic.AddInt64(&rl.hits, 1)
		return false, client.resetTime.Sub(now)
	}
	client.count++
	return true, client.resetTime.Sub(now)
}

// CleanExpired drops clients whose window has passed.
func (rl *Limiter) CleanExpired() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for ip, client := range rl.clients {
		if !now.Before(client.resetTime) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Hits returns how many requests were rejected so far.
func (rl *Limiter) Hits() int64 {
	return atomic.LoadInt64(&rl.hits)
}

// Middleware rejects requests over the limit. onLimit writes the response;
// when nil a plain 429 is sent. Retry-After is always set.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractIP(r)
			ok, reset := rl.Allow(ip)
			if !ok {
				log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).
					DebugContext(r.Context(), "Rate limit exceeded", log.FieldClientIP, ip, log.FieldPath, r.URL.Path)
				secs := int(reset.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
