package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/occupancy"
	"github.com/samirrijal/parkwatch/internal/core/ports"
	"github.com/samirrijal/parkwatch/internal/pkg/metrics"
)

// Simulation is the part of occupancy.Simulator the service drives.
type Simulation interface {
	Snapshot() *domain.OccupancySnapshot
	Refresh(ctx context.Context) (*domain.OccupancySnapshot, []domain.AvailabilityEvent)
	TimeSinceLastTick() time.Duration
	SetFavorites(set domain.FavoriteSet)
	Favorites() domain.FavoriteSet
}

// SimulationStatus summarises the simulator for operators.
type SimulationStatus struct {
	Seq           uint64    `json:"seq"`
	TickedAt      time.Time `json:"ticked_at"`
	SinceLastTick string    `json:"since_last_tick"`
	Lots          int       `json:"lots"`
	Excluded      []string  `json:"excluded,omitempty"`
	Favorites     int       `json:"favorites"`
	Period        string    `json:"period"`
}

// RefreshResult is returned by a manual refresh.
type RefreshResult struct {
	Status SimulationStatus           `json:"status"`
	Events []domain.AvailabilityEvent `json:"events"`
}

// SimulationService exposes the occupancy simulator to the API and keeps
// its favorites and the stored occupancy in sync with the database.
type SimulationService struct {
	sim       Simulation
	favorites ports.FavoriteRepository
	lots      ports.ParkingLotRepository
	period    time.Duration
}

// NewSimulationService creates a new SimulationService. favorites and lots
// may be nil when running without a database.
func NewSimulationService(sim Simulation, favorites ports.FavoriteRepository, lots ports.ParkingLotRepository, period time.Duration) *SimulationService {
	return &SimulationService{sim: sim, favorites: favorites, lots: lots, period: period}
}

// Status reports the current simulator state.
func (s *SimulationService) Status() SimulationStatus {
	snap := s.sim.Snapshot()
	now := time.Now()
	return SimulationStatus{
		Seq:           snap.Seq,
		TickedAt:      snap.TickedAt,
		SinceLastTick: humanize.RelTime(now.Add(-s.sim.TimeSinceLastTick()), now, "ago", "from now"),
		Lots:          len(snap.Lots),
		Excluded:      snap.Excluded,
		Favorites:     len(s.sim.Favorites()),
		Period:        s.period.String(),
	}
}

// Refresh runs an out-of-band tick.
func (s *SimulationService) Refresh(ctx context.Context) RefreshResult {
	_, events := s.sim.Refresh(ctx)
	if events == nil {
		events = []domain.AvailabilityEvent{}
	}
	return RefreshResult{Status: s.Status(), Events: events}
}

// SyncFavorites replaces the simulator's favorite set with the lots users
// currently favorite.
func (s *SimulationService) SyncFavorites(ctx context.Context) error {
	if s.favorites == nil {
		return nil
	}
	ids, err := s.favorites.FavoritedLotIDs(ctx)
	if err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}
	s.sim.SetFavorites(domain.NewFavoriteSet(ids...))
	return nil
}

// Checkpoint writes the simulated occupancy back to the repository.
func (s *SimulationService) Checkpoint(ctx context.Context) error {
	if s.lots == nil {
		return nil
	}
	snap := s.sim.Snapshot()
	lots := make([]domain.ParkingLot, 0, len(snap.Lots))
	for _, l := range snap.Lots {
		if l.Capacity > 0 {
			lots = append(lots, l)
		}
	}
	if err := s.lots.SaveOccupancy(ctx, lots); err != nil {
		return fmt.Errorf("checkpoint occupancy: %w", err)
	}
	return nil
}

// RunSync calls SyncFavorites every interval until ctx is done.
func (s *SimulationService) RunSync(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.SyncFavorites(ctx); err != nil {
				slog.Warn("favorites sync failed", "error", err)
			}
		}
	}
}

// MetricsHook records per-tick metrics. Lots touched by a tick carry the
// tick's timestamp.
func MetricsHook() occupancy.TickHook {
	return func(trigger string, snap *domain.OccupancySnapshot, events []domain.AvailabilityEvent) {
		metrics.SimulationTicks.WithLabelValues(trigger).Inc()
		metrics.AvailabilityEvents.Add(float64(len(events)))
		metrics.DegenerateCapacityLots.Set(float64(len(snap.Excluded)))
		touched := 0
		for i := range snap.Lots {
			if snap.Lots[i].UpdatedAt.Equal(snap.TickedAt) {
				touched++
			}
		}
		metrics.OccupancyMutations.Add(float64(touched))
	}
}
