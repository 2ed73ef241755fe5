package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newGateApp(gate *AvailabilityGate) *fiber.App {
	app := fiber.New()
	app.Use(gate.Middleware())
	handler := func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
	app.Get("/api/v1/orders", handler)
	app.Get("/health", handler)
	app.Get("/metrics", handler)
	return app
}

func TestAvailabilityGatePassesThrough(t *testing.T) {
	app := newGateApp(NewAvailabilityGate(0))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/orders", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200, got: %d", resp.StatusCode)
	}
}

func TestAvailabilityGateMaintenanceMode(t *testing.T) {
	gate := NewAvailabilityGate(0)
	gate.SetMaintenanceMode(true)
	app := newGateApp(gate)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/orders", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("Expected 503, got: %d", resp.StatusCode)
	}

	// health and metrics stay reachable
	for _, path := range []string{"/health", "/metrics"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("Expected 200 for %s during maintenance, got: %d", path, resp.StatusCode)
		}
	}

	gate.SetMaintenanceMode(false)
	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/orders", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200 after maintenance, got: %d", resp.StatusCode)
	}
}

func TestAvailabilityGateInFlightTracking(t *testing.T) {
	gate := NewAvailabilityGate(5)
	app := newGateApp(gate)

	if gate.InFlightRequests() != 0 {
		t.Fatalf("Expected 0 in flight, got: %d", gate.InFlightRequests())
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/orders", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200, got: %d", resp.StatusCode)
	}
	if gate.InFlightRequests() != 0 {
		t.Errorf("Counter should return to 0 after request, got: %d", gate.InFlightRequests())
	}
}

func TestAvailabilityGateMaintenanceFromEnv(t *testing.T) {
	t.Setenv("MAINTENANCE_MODE", "1")

	gate := NewAvailabilityGate(0)
	if !gate.IsMaintenanceMode() {
		t.Error("Expected maintenance mode enabled from environment")
	}
}
