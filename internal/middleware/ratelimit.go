package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for the rate limiter middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate (tokens added per second).
	RequestsPerSecond float64
	// Burst is the maximum number of requests allowed at once.
	Burst int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-client-IP token bucket and answers 429 with
// Retry-After when it is exhausted. Idle clients are forgotten after ten minutes.
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	var (
		mu      sync.Mutex
		clients = map[string]*clientLimiter{}
		sweptAt = time.Now()
	)

	getLimiter := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if now.Sub(sweptAt) > 5*time.Minute {
			for k, cl := range clients {
				if now.Sub(cl.lastSeen) > 10*time.Minute {
					delete(clients, k)
				}
			}
			sweptAt = now
		}
		cl, ok := clients[ip]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			clients[ip] = cl
		}
		cl.lastSeen = now
		return cl.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := getLimiter(clientIP(r))
			res := limiter.Reserve()
			if !res.OK() {
				writeTooManyRequests(w, 0)
				return
			}
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				writeTooManyRequests(w, int(delay.Seconds())+1)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP uses RemoteAddr only; X-Forwarded-For can be spoofed.
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
	_ = json.NewEncoder(w).Encode(map[string]any{"error": "rateLimited"})
}
