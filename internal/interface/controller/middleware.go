package controller

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"tripdesk-service/internal/domain/entity"
)

const (
	HeaderActorID    = "X-Actor-ID"
	HeaderActorScope = "X-Actor-Scope"
	ScopeAll         = "all"

	actorKey = "actor"
)

// ActorMiddleware reads the caller identity set by the upstream gateway
func ActorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := strings.TrimSpace(c.Request().Header.Get(HeaderActorID))
			if id == "" {
				return c.JSON(http.StatusUnauthorized, Response{
					Status:  http.StatusUnauthorized,
					Message: "Missing caller identity",
				})
			}
			c.Set(actorKey, entity.Actor{
				ID:         id,
				CanViewAll: strings.EqualFold(c.Request().Header.Get(HeaderActorScope), ScopeAll),
			})
			return next(c)
		}
	}
}

// actorFrom returns the identity stored by ActorMiddleware
func actorFrom(c echo.Context) entity.Actor {
	actor, _ := c.Get(actorKey).(entity.Actor)
	return actor
}

// RateLimiter throttles mutating requests per actor
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perSecond requests with the given burst per actor
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

// RateLimit returns the middleware. Safe methods pass through.
func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			key := actorFrom(c).ID
			if key == "" {
				key = c.RealIP()
			}
			limiter := r.getLimiter(key)
			if !limiter.Allow() {
				if r.limit > 0 {
					retry := time.Duration(float64(time.Second) / float64(r.limit))
					c.Response().Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				}
				return c.JSON(http.StatusTooManyRequests, Response{
					Status:  http.StatusTooManyRequests,
					Message: "Too many requests",
				})
			}
			return next(c)
		}
	}
}

func (r *RateLimiter) getLimiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, exists := r.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// Cleanup drops limiters idle for longer than the idle TTL
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	cutoff := r.now().Add(-r.idleTTL)
	for key, entry := range r.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
			removed++
		}
	}
	return removed
}
