package api

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimitConfig holds rate limiter configuration.
type RateLimitConfig struct {
	RPS   int // sustained requests per second
	Burst int // bucket size
}

type bucket struct {
	tokens     float64
	max        float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newBucket(rps, burst int) *bucket {
	return &bucket{
		tokens:     float64(burst),
		max:        float64(burst),
		refillRate: float64(rps),
		lastRefill: time.Now(),
	}
}

func (b *bucket) allow() bool {
	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.max {
		b.tokens = b.max
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// newRateLimitMiddleware returns a per-client-IP token-bucket limiter.
// Probe endpoints are exempt.
func newRateLimitMiddleware(cfg RateLimitConfig) fiber.Handler {
	var mu sync.Mutex
	clients := make(map[string]*bucket)

	// Drop buckets for clients idle longer than 10 minutes.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			mu.Lock()
			now := time.Now()
			for ip, b := range clients {
				if now.Sub(b.lastRefill) > 10*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		ip := c.IP()
		mu.Lock()
		b, ok := clients[ip]
		if !ok {
			b = newBucket(cfg.RPS, cfg.Burst)
			clients[ip] = b
		}
		allowed := b.allow()
		mu.Unlock()

		if !allowed {
			return problemResponse(c, fiber.StatusTooManyRequests,
				"rate_limit_exceeded", "Too Many Requests",
				"Rate limit exceeded. Please try again later.")
		}
		return c.Next()
	}
}
