package http

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/samirrijal/parkwatch/internal/pkg/telemetry"
)

type ctxKey string

const loggerKey ctxKey = "logger"

// RequestIDLogMiddleware stores a request-scoped *slog.Logger carrying the
// Fiber request ID in the user context. An incoming W3C trace context is
// extracted first so spans started by handlers join the caller's trace.
// It must run after requestid.New.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		carrier := propagation.MapCarrier{}
		c.Request().Header.VisitAll(func(k, v []byte) {
			carrier[strings.ToLower(string(k))] = string(v)
		})
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), carrier)

		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			c.SetUserContext(ctx)
			return c.Next()
		}

		reqLogger := slog.Default().With("request_id", rid)
		if tid := telemetry.TraceID(ctx); tid != "" {
			reqLogger = reqLogger.With("trace_id", tid)
		}
		c.SetUserContext(context.WithValue(ctx, loggerKey, reqLogger))

		return c.Next()
	}
}

// LoggerFromCtx extracts the per-request slog.Logger from a context.
// Falls back to the default logger if none is set.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
