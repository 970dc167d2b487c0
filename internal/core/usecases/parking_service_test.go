package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/usecases"
)

var bilbaoLots = []domain.ParkingLot{
	{ID: "moyua", Name: "Plaza Moyua", Location: domain.GeoPoint{Lat: 43.2630, Lon: -2.9350}, Capacity: 300, Occupancy: 120},
	{ID: "indautxu", Name: "Indautxu", Location: domain.GeoPoint{Lat: 43.2610, Lon: -2.9420}, Capacity: 200, Occupancy: 190},
	{ID: "abando", Name: "Abando", Location: domain.GeoPoint{Lat: 43.2610, Lon: -2.9270}, Capacity: 500, Occupancy: 250},
	{ID: "getxo", Name: "Getxo", Location: domain.GeoPoint{Lat: 43.3560, Lon: -3.0110}, Capacity: 100, Occupancy: 10},
}

func TestParkingService_ListPrefersLiveSnapshot(t *testing.T) {
	repoCalled := false
	repo := &mockLotRepo{listFn: func(ctx context.Context) ([]domain.ParkingLot, error) {
		repoCalled = true
		return nil, nil
	}}
	live := &fakeLive{snap: &domain.OccupancySnapshot{Seq: 3, Lots: bilbaoLots}}

	lots, err := usecases.NewParkingService(repo, live).List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lots) != 4 {
		t.Fatalf("expected 4 lots, got %d", len(lots))
	}
	if repoCalled {
		t.Error("repository should not be read when a snapshot is available")
	}
}

func TestParkingService_ListFromRepo(t *testing.T) {
	repo := &mockLotRepo{listFn: func(ctx context.Context) ([]domain.ParkingLot, error) {
		return nil, errors.New("db down")
	}}
	_, err := usecases.NewParkingService(repo, nil).List(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParkingService_GetByID(t *testing.T) {
	live := &fakeLive{snap: &domain.OccupancySnapshot{Lots: bilbaoLots}}
	repo := &mockLotRepo{getByIDFn: func(ctx context.Context, id string) (*domain.ParkingLot, error) {
		if id == "stored" {
			return &domain.ParkingLot{ID: id}, nil
		}
		return nil, domain.ErrNotFound
	}}
	svc := usecases.NewParkingService(repo, live)

	lot, err := svc.GetByID(context.Background(), "abando")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lot.OccupancyRate() != 50 {
		t.Errorf("expected rate 50, got %d", lot.OccupancyRate())
	}

	if _, err := svc.GetByID(context.Background(), "stored"); err != nil {
		t.Errorf("expected repository fallback, got %v", err)
	}

	if _, err := svc.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestParkingService_Nearby(t *testing.T) {
	live := &fakeLive{snap: &domain.OccupancySnapshot{Lots: bilbaoLots}}
	svc := usecases.NewParkingService(nil, live)

	lots, err := svc.Nearby(context.Background(), 43.2630, -2.9350, 1500, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lots) != 3 {
		t.Fatalf("expected 3 lots within 1.5 km, got %d", len(lots))
	}
	if lots[0].ID != "moyua" {
		t.Errorf("expected closest lot moyua, got %s", lots[0].ID)
	}
	if lots[0].DistanceText != "0 m" {
		t.Errorf("expected 0 m, got %q", lots[0].DistanceText)
	}
	for i := 1; i < len(lots); i++ {
		if *lots[i].Distance < *lots[i-1].Distance {
			t.Errorf("results not sorted by distance at %d", i)
		}
	}
}

func TestParkingService_Nearby_AcrossAntimeridian(t *testing.T) {
	// Suva-side lots on both sides of 180°, about 2.1 km apart
	lots := []domain.ParkingLot{
		{ID: "west", Capacity: 10, Location: domain.GeoPoint{Lat: -17.7, Lon: 179.99}},
		{ID: "east", Capacity: 10, Location: domain.GeoPoint{Lat: -17.7, Lon: -179.99}},
		{ID: "far", Capacity: 10, Location: domain.GeoPoint{Lat: -17.7, Lon: 179.5}},
	}
	live := &fakeLive{snap: &domain.OccupancySnapshot{Lots: lots}}

	got, err := usecases.NewParkingService(nil, live).Nearby(context.Background(), -17.7, 179.99, 3000, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "west" || got[1].ID != "east" {
		t.Errorf("expected west then east, got %+v", got)
	}
}

func TestParkingService_Nearby_Limit(t *testing.T) {
	live := &fakeLive{snap: &domain.OccupancySnapshot{Lots: bilbaoLots}}
	lots, err := usecases.NewParkingService(nil, live).Nearby(context.Background(), 43.2630, -2.9350, 20000, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lots) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(lots))
	}
}

func TestParkingService_Nearby_InvalidCoordinate(t *testing.T) {
	svc := usecases.NewParkingService(nil, &fakeLive{snap: &domain.OccupancySnapshot{}})
	_, err := svc.Nearby(context.Background(), 95, 0, 500, 10)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestParkingService_Nearby_FromRepository(t *testing.T) {
	d := 850.4
	var gotRadius float64
	var gotLimit int
	repo := &mockLotRepo{findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.ParkingLot, error) {
		gotRadius, gotLimit = radius, limit
		return []domain.ParkingLot{{ID: "moyua", Distance: &d}}, nil
	}}

	lots, err := usecases.NewParkingService(repo, nil).Nearby(context.Background(), 43.2630, -2.9350, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRadius != 1000 || gotLimit != 50 {
		t.Errorf("expected defaults 1000 m / 50, got %v / %d", gotRadius, gotLimit)
	}
	if len(lots) != 1 || lots[0].DistanceText != "850 m" {
		t.Errorf("unexpected result %+v", lots)
	}
}

func TestParkingService_Nearby_RepositoryError(t *testing.T) {
	repo := &mockLotRepo{findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.ParkingLot, error) {
		return nil, errors.New("db down")
	}}
	if _, err := usecases.NewParkingService(repo, nil).Nearby(context.Background(), 43.26, -2.93, 500, 5); err == nil {
		t.Fatal("expected error")
	}
}
