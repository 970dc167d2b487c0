package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/parkwatch/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// parkingsSunset is when the /v1/parkings alias goes away.
var parkingsSunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 300 requests per minute per IP. Map panning fires a
	// clusters request per gesture.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/v1/parkings", SunsetDate: parkingsSunset, Alternative: "/v1/lots"},
		{Path: "/v1/parkings/:id", SunsetDate: parkingsSunset, Alternative: "/v1/lots/{id}"},
	}))

	// Health and readiness, no timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/lots", timeout.NewWithContext(ListLotsHandler(deps), requestTimeout))
	v1.Get("/lots/nearby", timeout.NewWithContext(NearbyLotsHandler(deps), requestTimeout))
	v1.Get("/lots/:id", timeout.NewWithContext(GetLotHandler(deps), requestTimeout))
	v1.Get("/clusters", timeout.NewWithContext(ClustersHandler(deps), requestTimeout))
	v1.Get("/simulation/status", SimulationStatusHandler(deps))
	v1.Post("/simulation/refresh", RefreshSimulationHandler(deps))

	// Deprecated aliases
	v1.Get("/parkings", timeout.NewWithContext(ListLotsHandler(deps), requestTimeout))
	v1.Get("/parkings/:id", timeout.NewWithContext(GetLotHandler(deps), requestTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, DefaultSpecPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
