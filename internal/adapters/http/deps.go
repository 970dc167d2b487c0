package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/parkwatch/internal/core/usecases"
)

// Pinger is a dependency that can report its connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Parking    *usecases.ParkingService
	Map        *usecases.MapService
	Simulation *usecases.SimulationService
	NATS       *nats.Conn
	DB         Pinger
	Cache      Pinger
}
