package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type clientWindow struct {
	window int64
	count  int
}

// RateLimiter is a fixed-window per-client limiter keyed by caller IP.
type RateLimiter struct {
	maxRequests    int
	windowDuration time.Duration
	clients        map[string]*clientWindow
	mu             sync.Mutex
}

func NewRateLimiter(maxRequests int, windowDuration time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests:    maxRequests,
		windowDuration: windowDuration,
		clients:        make(map[string]*clientWindow),
	}
}

func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(100, time.Second)
}

func (rl *RateLimiter) clientID(c *fiber.Ctx) string {
	ip := c.Get("X-Forwarded-For")
	if ip == "" {
		ip = c.Get("X-Real-IP")
	}
	if ip == "" {
		ip = c.IP()
	}
	return ip
}

// Allow counts one request against the client's current window.
func (rl *RateLimiter) Allow(clientIP string) bool {
	window := time.Now().UnixNano() / int64(rl.windowDuration)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	cw, exists := rl.clients[clientIP]
	if !exists || cw.window != window {
		rl.clients[clientIP] = &clientWindow{window: window, count: 1}
		return true
	}
	if cw.count >= rl.maxRequests {
		return false
	}
	cw.count++
	return true
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID := rl.clientID(c)

		if !rl.Allow(clientID) {
			log.Warn().
				Str("client_ip", clientID).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("max_requests", rl.maxRequests).
				Msg("Rate limit exceeded")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "Rate limit exceeded",
				"message": "Too many requests. Please try again later.",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.maxRequests))
		c.Set("X-RateLimit-Window", rl.windowDuration.String())

		return c.Next()
	}
}
