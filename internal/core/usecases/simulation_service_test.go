package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/usecases"
)

func TestSimulationService_SyncFavorites(t *testing.T) {
	sim := &fakeSimulation{fakeLive: fakeLive{snap: &domain.OccupancySnapshot{}}}
	favs := &mockFavoriteRepo{favoritedFn: func(ctx context.Context) ([]string, error) {
		return []string{"moyua", "abando"}, nil
	}}
	svc := usecases.NewSimulationService(sim, favs, nil, 5*time.Second)

	if err := svc.SyncFavorites(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sim.favorites.Contains("moyua") || !sim.favorites.Contains("abando") || sim.favorites.Contains("getxo") {
		t.Errorf("unexpected favorites %v", sim.favorites)
	}
}

func TestSimulationService_SyncFavorites_KeepsOldSetOnError(t *testing.T) {
	sim := &fakeSimulation{fakeLive: fakeLive{snap: &domain.OccupancySnapshot{}}, favorites: domain.NewFavoriteSet("moyua")}
	favs := &mockFavoriteRepo{favoritedFn: func(ctx context.Context) ([]string, error) {
		return nil, errors.New("db down")
	}}
	svc := usecases.NewSimulationService(sim, favs, nil, 5*time.Second)

	if err := svc.SyncFavorites(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !sim.favorites.Contains("moyua") {
		t.Error("favorites should be left untouched on error")
	}
}

func TestSimulationService_CheckpointSkipsDegenerateLots(t *testing.T) {
	sim := &fakeSimulation{fakeLive: fakeLive{snap: &domain.OccupancySnapshot{Lots: []domain.ParkingLot{
		{ID: "ok", Capacity: 10, Occupancy: 4},
		{ID: "bad", Capacity: 0},
	}}}}
	var saved []domain.ParkingLot
	repo := &mockLotRepo{saveOccupancyFn: func(ctx context.Context, lots []domain.ParkingLot) error {
		saved = lots
		return nil
	}}

	if err := usecases.NewSimulationService(sim, nil, repo, time.Second).Checkpoint(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(saved) != 1 || saved[0].ID != "ok" {
		t.Errorf("unexpected checkpoint %+v", saved)
	}
}

func TestSimulationService_RefreshAndStatus(t *testing.T) {
	sim := &fakeSimulation{
		fakeLive:  fakeLive{snap: &domain.OccupancySnapshot{Seq: 4, Lots: bilbaoLots, Excluded: []string{"x"}}},
		since:     3 * time.Second,
		favorites: domain.NewFavoriteSet("moyua"),
	}
	svc := usecases.NewSimulationService(sim, nil, nil, 5*time.Second)

	res := svc.Refresh(context.Background())
	if res.Status.Seq != 5 {
		t.Errorf("expected seq 5 after refresh, got %d", res.Status.Seq)
	}
	if res.Events == nil {
		t.Error("events should be an empty slice, not nil")
	}
	if res.Status.Lots != 4 || res.Status.Favorites != 1 || res.Status.Period != "5s" {
		t.Errorf("unexpected status %+v", res.Status)
	}
	if res.Status.SinceLastTick != "3 seconds ago" {
		t.Errorf("unexpected since_last_tick %q", res.Status.SinceLastTick)
	}
}
