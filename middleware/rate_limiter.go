package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GabeYou/Hack-The-Valley-2025/metrics"
	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// clientIPGeneric returns the client IP string. If trustedCIDR is provided,
// X-Forwarded-For / X-Real-IP headers are honored when remote addr is inside
// one of the trusted CIDRs or IPs.
func clientIPGeneric(r *http.Request, trustedCIDR []string) string {
	remoteHost, _, _ := net.SplitHostPort(r.RemoteAddr)
	remoteIP := net.ParseIP(remoteHost)
	trusted := false
	for _, cidr := range trustedCIDR {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if strings.Contains(cidr, "/") {
			if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
				if remoteIP != nil && ipnet.Contains(remoteIP) {
					trusted = true
					break
				}
			}
			continue
		}
		if ip := net.ParseIP(cidr); ip != nil && remoteIP != nil && ip.Equal(remoteIP) {
			trusted = true
			break
		}
	}
	if trusted {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if len(parts) > 0 {
				return strings.TrimSpace(parts[0])
			}
		}
		if xr := r.Header.Get("X-Real-IP"); xr != "" {
			return strings.TrimSpace(xr)
		}
	}
	if remoteHost == "" {
		return r.RemoteAddr
	}
	return remoteHost
}

// IPRateLimiter throttles each client IP with a token bucket.
type IPRateLimiter struct {
	limit       rate.Limit
	burst       int
	idle        time.Duration
	trustedCIDR []string

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter allows requestsPerMinute per client. A non-positive budget
// disables limiting.
func NewIPRateLimiter(requestsPerMinute int, trustedCIDR []string) *IPRateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		limit:       rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:       burst,
		idle:        5 * time.Minute,
		trustedCIDR: trustedCIDR,
		clients:     make(map[string]*clientLimiter),
	}
}

// Middleware rejects clients over budget with 429.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := l.getLimiter(clientIPGeneric(r, l.trustedCIDR))
		res := limiter.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(delay.Seconds()))))
			utils.WriteJSON(w, http.StatusTooManyRequests, utils.ErrorResponse{Error: "Too many requests. Please slow down."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *IPRateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.clients[key] = &clientLimiter{limiter: limiter, lastSeen: now}
	l.cleanupLocked(now)
	return limiter
}

func (l *IPRateLimiter) cleanupLocked(now time.Time) {
	for key, entry := range l.clients {
		if now.Sub(entry.lastSeen) > l.idle {
			delete(l.clients, key)
		}
	}
}

// LoginGuard locks an account out after repeated failed logins. Counters live
// in Redis when available so every instance sees them.
type LoginGuard struct {
	redis     *redis.Client
	threshold int
	now       func() time.Time

	mu     sync.Mutex
	failed map[string]int
	locked map[string]time.Time
}

func NewLoginGuard(rc *redis.Client) *LoginGuard {
	return &LoginGuard{
		redis:     rc,
		threshold: 5,
		now:       time.Now,
		failed:    make(map[string]int),
		locked:    make(map[string]time.Time),
	}
}

// lockoutFor grows with each failure past the threshold: 1m, 5m, 15m, then 30m.
func (g *LoginGuard) lockoutFor(failures int) time.Duration {
	switch over := failures - g.threshold; {
	case over < 0:
		return 0
	case over == 0:
		return time.Minute
	case over == 1:
		return 5 * time.Minute
	case over == 2:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// Locked reports whether account is locked and for how long.
func (g *LoginGuard) Locked(ctx context.Context, account string) (bool, time.Duration) {
	if g.redis != nil {
		ttl, err := g.redis.TTL(ctx, "login:lock:"+account).Result()
		if err == nil {
			return ttl > 0, max(ttl, 0)
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.locked[account]
	if !ok {
		return false, 0
	}
	if left := until.Sub(g.now()); left > 0 {
		return true, left
	}
	delete(g.locked, account)
	return false, 0
}

func (g *LoginGuard) RecordFailure(ctx context.Context, account string) {
	if g.redis != nil {
		failures, err := g.redis.Incr(ctx, "login:fail:"+account).Result()
		if err == nil {
			_ = g.redis.Expire(ctx, "login:fail:"+account, 30*time.Minute).Err()
			if d := g.lockoutFor(int(failures)); d > 0 {
				_ = g.redis.Set(ctx, "login:lock:"+account, "1", d).Err()
				metrics.LoginLockouts.Inc()
			}
			return
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed[account]++
	if d := g.lockoutFor(g.failed[account]); d > 0 {
		g.locked[account] = g.now().Add(d)
		metrics.LoginLockouts.Inc()
	}
}

func (g *LoginGuard) Reset(ctx context.Context, account string) {
	if g.redis != nil {
		if err := g.redis.Del(ctx, "login:fail:"+account, "login:lock:"+account).Err(); err == nil {
			return
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failed, account)
	delete(g.locked, account)
}
