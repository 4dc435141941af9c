package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	sweepInterval = 5 * time.Minute
	clientMaxIdle = 10 * time.Minute
)

// RateLimitConfig holds the token-bucket parameters for one client.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate (tokens added per second).
	RequestsPerSecond float64
	// Burst is the maximum number of requests allowed at once.
	Burst int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos; read by the sweeper
}

// RateLimiter enforces a per-client token-bucket limit keyed by remote IP.
// Exceeding the limit yields 429 with a Retry-After hint. A background
// sweeper drops limiters for idle clients; call Stop to end it.
type RateLimiter struct {
	cfg      RateLimitConfig
	clients  sync.Map // map[string]*clientLimiter
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{cfg: cfg, stop: make(chan struct{})}
	go rl.sweep()
	return rl
}

// Stop ends the background sweeper. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-clientMaxIdle).UnixNano()
			rl.clients.Range(func(key, value any) bool {
				if value.(*clientLimiter).lastSeen.Load() < cutoff {
					rl.clients.Delete(key)
				}
				return true
			})
		}
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := rl.clients.Load(ip); ok {
		cl := v.(*clientLimiter)
		cl.lastSeen.Store(now)
		return cl.limiter
	}
	cl := &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
	cl.lastSeen.Store(now)
	if existing, loaded := rl.clients.LoadOrStore(ip, cl); loaded {
		ecl := existing.(*clientLimiter)
		ecl.lastSeen.Store(now)
		return ecl.limiter
	}
	return cl.limiter
}

// Middleware is the http.Handler wrapper enforcing the limit.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := rl.limiterFor(clientIP(r))

		reservation := limiter.Reserve()
		if !reservation.OK() {
			writeTooManyRequests(w, 0)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			writeTooManyRequests(w, int(delay.Seconds())+1)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP uses only RemoteAddr. X-Forwarded-For is untrusted and ignored
// so a spoofed header cannot dodge the limit.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"reason":  "rate_limited",
			"message": "rate limit exceeded",
		},
	})
}
