package routes

import (
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"book-engine/src/handlers"
	"book-engine/src/middleware"
)

func SetupRoutes(app *fiber.App, orderHandler *handlers.OrderHandler) {
	rateLimitDisabled := os.Getenv("RATE_LIMIT_DISABLED") == "1"

	maxRequests := 100
	if envMax := os.Getenv("RATE_LIMIT_MAX"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxRequests = parsed
		}
	}

	windowDuration := time.Second
	if envWindow := os.Getenv("RATE_LIMIT_WINDOW"); envWindow != "" {
		if parsed, err := time.ParseDuration(envWindow); err == nil && parsed > 0 {
			windowDuration = parsed
		}
	}

	gate := middleware.DefaultAvailabilityGate()
	app.Use(gate.Middleware())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api/v1")

	if !rateLimitDisabled {
		rateLimiter := middleware.NewRateLimiter(maxRequests, windowDuration)
		api.Use(rateLimiter.Middleware())
	}

	api.Post("/instruments", orderHandler.RegisterInstrument)

	api.Post("/orders", orderHandler.SubmitOrder)
	api.Delete("/orders/:id", orderHandler.CancelOrder)
	api.Patch("/orders/:id", orderHandler.ModifyOrder)

	api.Get("/orderbook/:venue/:symbol", orderHandler.GetOrderBook)
	api.Get("/orderbook/:venue/:symbol/quote", orderHandler.GetQuote)
	api.Get("/orderbook/:venue/:symbol/dump", orderHandler.DumpOrderBook)

	app.Get("/health", orderHandler.HealthCheck)
	app.Get("/metrics", orderHandler.Metrics)
}
