package usecases

import (
	"context"
	"fmt"
	"slices"

	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/ports"
	"github.com/samirrijal/parkwatch/internal/pkg/geospatial"
)

// LiveOccupancy exposes the latest simulated occupancy.
type LiveOccupancy interface {
	Snapshot() *domain.OccupancySnapshot
}

// NearbyLot is a lot annotated with its distance from the search point.
type NearbyLot struct {
	domain.ParkingLot
	DistanceText string `json:"distance_text"`
}

// ParkingService answers lot queries, preferring live occupancy over the
// stored values.
type ParkingService struct {
	lots ports.ParkingLotRepository
	live LiveOccupancy
}

// NewParkingService creates a new ParkingService. live may be nil, in which
// case every read goes to the repository.
func NewParkingService(lots ports.ParkingLotRepository, live LiveOccupancy) *ParkingService {
	return &ParkingService{lots: lots, live: live}
}

// List returns every known lot.
func (s *ParkingService) List(ctx context.Context) ([]domain.ParkingLot, error) {
	if snap := s.snapshot(); snap != nil {
		return snap.Lots, nil
	}
	if s.lots == nil {
		return nil, nil
	}
	lots, err := s.lots.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return lots, nil
}

// GetByID returns one lot with its current occupancy.
func (s *ParkingService) GetByID(ctx context.Context, id string) (*domain.ParkingLot, error) {
	if snap := s.snapshot(); snap != nil {
		if l, ok := snap.Lot(id); ok {
			return &l, nil
		}
	}
	if s.lots == nil {
		return nil, domain.ErrNotFound
	}
	return s.lots.GetByID(ctx, id)
}

// Nearby returns lots within radiusMeters of (lat, lon), closest first.
func (s *ParkingService) Nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]NearbyLot, error) {
	if !geospatial.ValidCoordinate(lat, lon) {
		return nil, fmt.Errorf("%w: coordinate (%g, %g) out of range", domain.ErrInvalidArgument, lat, lon)
	}
	if radiusMeters <= 0 || radiusMeters > 50000 {
		radiusMeters = 1000
	}
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	snap := s.snapshot()
	if snap == nil && s.lots != nil {
		return s.nearbyFromRepo(ctx, lat, lon, radiusMeters, limit)
	}
	var lots []domain.ParkingLot
	if snap != nil {
		lots = snap.Lots
	}

	var box domain.Bounds
	box.MinLat, box.MinLon, box.MaxLat, box.MaxLon = geospatial.BoundingBox(lat, lon, radiusMeters)

	out := make([]NearbyLot, 0, min(limit, len(lots)))
	for _, l := range lots {
		if !geospatial.ValidCoordinate(l.Location.Lat, l.Location.Lon) || !box.Contains(l.Location) {
			continue
		}
		d := geospatial.Haversine(lat, lon, l.Location.Lat, l.Location.Lon)
		if d > radiusMeters {
			continue
		}
		l.Distance = &d
		out = append(out, NearbyLot{ParkingLot: l, DistanceText: geospatial.FormatDistance(d)})
	}

	slices.SortStableFunc(out, func(a, b NearbyLot) int {
		switch {
		case *a.Distance < *b.Distance:
			return -1
		case *a.Distance > *b.Distance:
			return 1
		}
		return 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// nearbyFromRepo lets the database do the radius search when there is no
// live snapshot.
func (s *ParkingService) nearbyFromRepo(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]NearbyLot, error) {
	lots, err := s.lots.FindNearby(ctx, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, fmt.Errorf("find nearby lots: %w", err)
	}
	out := make([]NearbyLot, 0, len(lots))
	for _, l := range lots {
		text := ""
		if l.Distance != nil {
			text = geospatial.FormatDistance(*l.Distance)
		}
		out = append(out, NearbyLot{ParkingLot: l, DistanceText: text})
	}
	return out, nil
}

func (s *ParkingService) snapshot() *domain.OccupancySnapshot {
	if s.live == nil {
		return nil
	}
	return s.live.Snapshot()
}
