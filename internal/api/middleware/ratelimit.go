package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatmsg/internal/apierror"
	"github.com/eldtechnologies/chatmsg/internal/metrics"
)

// Auto-block policy: this many rejected requests within violationWindow block
// the client for blockDuration.
const (
	violationThreshold = 10
	violationWindow    = time.Hour
	blockDuration      = 24 * time.Hour
)

// RateLimit is the request budget for one route prefix.
type RateLimit struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) string
}

// RateLimiterConfig configures NewRateLimiter.
type RateLimiterConfig struct {
	Whitelist        []string
	AutoBlockEnabled bool
	CreateLimit      int
	CreateWindow     time.Duration
}

// RateLimiter enforces per-client request budgets with counters in Redis.
// Clients are identified by ClientIP, so RealIP must run first when the
// service sits behind a proxy.
type RateLimiter struct {
	client           *redis.Client
	limits           map[string]RateLimit
	blocker          *IPBlocker
	logger           zerolog.Logger
	whitelist        IPList
	autoBlockEnabled bool
	now              func() time.Time
	seq              atomic.Uint64
}

// NewRateLimiter builds a limiter for the message API routes.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	if cfg.CreateLimit <= 0 {
		cfg.CreateLimit = 3
	}
	if cfg.CreateWindow <= 0 {
		cfg.CreateWindow = time.Minute
	}

	rl := &RateLimiter{
		client:           client,
		blocker:          NewIPBlocker(client),
		logger:           logger,
		whitelist:        NewIPList(cfg.Whitelist, logger),
		autoBlockEnabled: cfg.AutoBlockEnabled,
		now:              time.Now,
		limits: map[string]RateLimit{
			"POST /api/messages": {cfg.CreateLimit, cfg.CreateWindow, ipKey},
			"GET /api/messages/": {120, time.Minute, ipKey},
			"GET /health":        {60, time.Minute, ipKey},
		},
	}

	if !rl.whitelist.Empty() {
		logger.Info().Strs("entries", cfg.Whitelist).Msg("rate limit whitelist configured")
	}
	return rl
}

func ipKey(r *http.Request) string {
	return "ratelimit:ip:" + ClientIP(r)
}

// CheckAndIncrement records a request against key and reports whether it is
// within limit, how many requests remain and when the window resets.
// Redis errors allow the request.
func (rl *RateLimiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time) {
	now := rl.now()
	resetAt := now.Add(window)
	bucket := fmt.Sprintf("%s:%d", key, now.Unix()/int64(window.Seconds()))

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, bucket, "-inf", strconv.FormatInt(now.Add(-window).UnixMilli(), 10))
	countCmd := pipe.ZCard(ctx, bucket)
	pipe.ZAdd(ctx, bucket, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d-%d", now.UnixNano(), rl.seq.Add(1)),
	})
	pipe.Expire(ctx, bucket, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Error().Err(err).Str("key", key).Msg("rate limit check failed")
		return true, limit, resetAt
	}

	count := int(countCmd.Val())
	return count < limit, max(limit-count-1, 0), resetAt
}

// Middleware applies the limiter to matching routes.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if rl.whitelist.Contains(ip) {
			next.ServeHTTP(w, r)
			return
		}

		if rl.blocker.IsBlocked(r.Context(), ip) {
			rl.logger.Warn().
				Str("event", "blocked_request").
				Str("ip", ip).
				Str("path", r.URL.Path).
				Msg("request from blocked client")
			metrics.BlockedRequests.WithLabelValues("auto_block").Inc()
			apierror.Write(w, http.StatusForbidden, apierror.CodeForbidden, "")
			return
		}

		pattern, limit := rl.findLimit(r)
		if limit == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := limit.KeyFunc(r)
		allowed, remaining, resetAt := rl.CheckAndIncrement(r.Context(), key, limit.Requests, limit.Window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(resetAt.Sub(rl.now()).Seconds())))
			rl.trackViolation(r.Context(), ip)
			metrics.RateLimitHits.WithLabelValues(pattern).Inc()

			rl.logger.Warn().
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("path", r.URL.Path).
				Str("key", key).
				Msg("rate limit exceeded")

			apierror.Write(w, http.StatusTooManyRequests, apierror.CodeRateLimitExceeded, "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// findLimit returns the limit whose "METHOD /prefix" pattern matches r.
func (rl *RateLimiter) findLimit(r *http.Request) (string, *RateLimit) {
	target := r.Method + " " + r.URL.Path
	for pattern, limit := range rl.limits {
		if strings.HasPrefix(target, pattern) {
			return pattern, &limit
		}
	}
	return "", nil
}

func (rl *RateLimiter) trackViolation(ctx context.Context, ip string) {
	if !rl.autoBlockEnabled {
		return
	}

	key := "violations:ip:" + ip
	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return
	}
	rl.client.Expire(ctx, key, violationWindow)

	if count >= violationThreshold {
		rl.blocker.Block(ctx, ip, blockDuration, "repeated rate limit violations")
		rl.logger.Warn().
			Str("event", "ip_auto_blocked").
			Str("ip", ip).
			Int64("violations", count).
			Msg("client blocked after repeated rate limit violations")
	}
}

// IPBlocker stores temporary client blocks in Redis.
type IPBlocker struct {
	client *redis.Client
}

func NewIPBlocker(client *redis.Client) *IPBlocker {
	return &IPBlocker{client: client}
}

func blockKey(ip string) string {
	return "blocked:ip:" + ip
}

// IsBlocked reports whether ip is blocked. Lookup errors count as not blocked.
func (b *IPBlocker) IsBlocked(ctx context.Context, ip string) bool {
	exists, _ := b.client.Exists(ctx, blockKey(ip)).Result()
	return exists > 0
}

// Block blocks ip for duration, recording reason as the value.
func (b *IPBlocker) Block(ctx context.Context, ip string, duration time.Duration, reason string) {
	b.client.Set(ctx, blockKey(ip), reason, duration)
}

// Unblock lifts a block on ip.
func (b *IPBlocker) Unblock(ctx context.Context, ip string) {
	b.client.Del(ctx, blockKey(ip))
}
