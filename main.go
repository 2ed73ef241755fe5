package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"book-engine/src/engine"
	"book-engine/src/handlers"
	"book-engine/src/instrument"
	"book-engine/src/logger"
	"book-engine/src/routes"
)

func main() {
	logger.InitLogger()
	log := logger.GetLogger()

	log.Info().Msg("Initializing limit order book service")

	registry := instrument.NewRegistry()
	seedInstruments(registry, log)

	exchange := engine.NewExchange(registry)
	orderHandler := handlers.NewOrderHandler(exchange)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, orderHandler)

	port := ":8080"
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = ":" + envPort
	}

	serverError := make(chan error, 1)

	go func() {
		if err := app.Listen(port); err != nil {
			// edge case: ignore shutdown errors, only report real errors
			if err.Error() != "server is shutting down" {
				serverError <- err
			}
		}
	}()

	select {
	case err := <-serverError:
		log.Fatal().
			Err(err).
			Str("port", port).
			Str("hint", "Port may be already in use. Try: PORT=3000 go run main.go").
			Msg("Server failed to start")
	default:
		log.Info().
			Str("port", port).
			Msg("Limit order book service started")

		log.Info().
			Strs("endpoints", []string{
				"POST   /api/v1/instruments",
				"POST   /api/v1/orders",
				"DELETE /api/v1/orders/:id",
				"PATCH  /api/v1/orders/:id",
				"GET    /api/v1/orderbook/:venue/:symbol",
				"GET    /api/v1/orderbook/:venue/:symbol/quote",
				"GET    /api/v1/orderbook/:venue/:symbol/dump",
				"GET    /health",
				"GET    /metrics",
			}).
			Msg("API endpoints registered")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info().Msg("Received shutdown signal, shutting down...")

	shutdownTimeout := 10 * time.Second
	if envTimeout := os.Getenv("SHUTDOWN_TIMEOUT"); envTimeout != "" {
		if parsed, err := time.ParseDuration(envTimeout); err == nil && parsed > 0 {
			shutdownTimeout = parsed
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", shutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
		} else {
			log.Error().
				Err(err).
				Msg("Error during shutdown")
		}
	} else {
		log.Info().Msg("Shutdown complete")
	}

	logger.CloseLogger()
}

// seedInstruments pre-registers instruments listed in the INSTRUMENTS env
// var, formatted as "SYMBOL@VENUE:pricePrecision:quantityPrecision" entries
// separated by commas, e.g. "BTC-USD@SIM:2:8,AAPL@XNAS:2:0".
func seedInstruments(registry *instrument.Registry, log zerolog.Logger) {
	listing := os.Getenv("INSTRUMENTS")
	if listing == "" {
		return
	}

	for _, entry := range strings.Split(listing, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		name := strings.SplitN(parts[0], "@", 2)
		if len(parts) != 3 || len(name) != 2 {
			log.Warn().Str("entry", entry).Msg("Skipping malformed instrument entry")
			continue
		}

		pricePrec, err1 := strconv.ParseUint(parts[1], 10, 8)
		qtyPrec, err2 := strconv.ParseUint(parts[2], 10, 8)
		if err1 != nil || err2 != nil {
			log.Warn().Str("entry", entry).Msg("Skipping malformed instrument entry")
			continue
		}

		inst := instrument.Instrument{
			Symbol:            name[0],
			Venue:             name[1],
			PricePrecision:    uint8(pricePrec),
			QuantityPrecision: uint8(qtyPrec),
		}
		if _, err := registry.Intern(inst); err != nil {
			log.Warn().Str("entry", entry).Err(err).Msg("Instrument registration failed")
			continue
		}
		log.Info().Str("instrument", inst.String()).Msg("Instrument registered")
	}
}
