package http

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/parkwatch/internal/core/clustering"
	"github.com/samirrijal/parkwatch/internal/core/domain"
)

// ListLotsHandler returns all lots with their live occupancy.
func ListLotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lots, err := deps.Parking.List(c.UserContext())
		if err != nil {
			return errInternal(c, err)
		}

		// Apply offset/limit pagination on the full list
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: len(lots)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: paginate(lots, pg), Pagination: pg})
	}
}

// GetLotHandler returns one lot.
func GetLotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		lot, err := deps.Parking.GetByID(c.UserContext(), id)
		if errors.Is(err, domain.ErrNotFound) {
			return errNotFound(c, "lot not found: "+id)
		}
		if err != nil {
			return errInternal(c, err)
		}
		return c.JSON(lotResponse{ParkingLot: *lot, OccupancyRate: lot.OccupancyRate(), Available: lot.Available()})
	}
}

type lotResponse struct {
	domain.ParkingLot
	OccupancyRate int `json:"occupancy_rate"`
	Available     int `json:"available"`
}

// NearbyLotsHandler returns lots within a radius of a point.
func NearbyLotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, err := queryFloat(c, "lat", true)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		lon, err := queryFloat(c, "lon", true)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		radius := c.QueryFloat("radius", 1000)
		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 0 and 50000 meters")
		}
		limit := c.QueryInt("limit", 20)

		lots, err := deps.Parking.Nearby(c.UserContext(), lat, lon, radius, limit)
		if errors.Is(err, domain.ErrInvalidArgument) {
			return errBadRequest(c, err.Error())
		}
		if err != nil {
			return errInternal(c, err)
		}
		return c.JSON(fiber.Map{"data": lots, "count": len(lots)})
	}
}

// ClustersHandler returns the map markers for a viewport.
func ClustersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var vp domain.Viewport
		var err error
		if vp.CenterLat, err = queryFloat(c, "center_lat", true); err != nil {
			return errBadRequest(c, err.Error())
		}
		if vp.CenterLon, err = queryFloat(c, "center_lon", true); err != nil {
			return errBadRequest(c, err.Error())
		}
		// a missing or degenerate span falls through to the point view
		if vp.LatSpan, err = queryFloat(c, "lat_span", false); err != nil {
			return errBadRequest(c, err.Error())
		}
		if vp.LonSpan, err = queryFloat(c, "lon_span", false); err != nil {
			return errBadRequest(c, err.Error())
		}

		view, err := deps.Map.Clusters(c.UserContext(), vp)
		if errors.Is(err, clustering.ErrNotLoaded) {
			return errUnavailable(c, "lots not loaded yet")
		}
		if err != nil {
			return errInternal(c, err)
		}
		return c.JSON(view)
	}
}

// SimulationStatusHandler reports the occupancy simulator state.
func SimulationStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Simulation.Status())
	}
}

// RefreshSimulationHandler runs an out-of-band simulation tick.
func RefreshSimulationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Simulation.Refresh(c.UserContext()))
	}
}

// queryFloat parses a float query parameter. Missing optional parameters
// yield NaN.
func queryFloat(c *fiber.Ctx, name string, required bool) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			return 0, errors.New(name + " is required")
		}
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	if required && (math.IsNaN(v) || math.IsInf(v, 0)) {
		return 0, errors.New(name + " must be finite")
	}
	return v, nil
}
