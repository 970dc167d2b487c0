// Package occupancy simulates a live occupancy feed for parking lots.
package occupancy

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/ports"
	"github.com/samirrijal/parkwatch/internal/pkg/timeutil"
)

const (
	// DefaultPeriod is the interval between scheduled ticks.
	DefaultPeriod = 5 * time.Second

	minChange = 0.05
	maxChange = 0.15
)

// Tick triggers.
const (
	TriggerTimer  = "timer"
	TriggerManual = "manual"
)

// ErrRunning is returned by Run when the simulator is already running.
var ErrRunning = errors.New("occupancy: simulator already running")

// TickHook is called after every tick with the published snapshot and
// the availability events it produced.
type TickHook func(trigger string, snap *domain.OccupancySnapshot, events []domain.AvailabilityEvent)

// Simulator owns the occupancy of a set of lots and perturbs a few of
// them on every tick.
//
// Tick and Refresh are serialized. Each tick builds a new snapshot and
// swaps it in atomically, so readers never see a partial update.
type Simulator struct {
	period      time.Duration
	clock       timeutil.Clock
	logger      *slog.Logger
	subscribers []ports.EventPublisher
	hook        TickHook

	mu       sync.Mutex
	rng      Rand
	tracker  *AvailabilityTracker
	suppress bool // first tick after Load seeds the tracker without emitting

	state     atomic.Pointer[domain.OccupancySnapshot]
	favorites atomic.Pointer[domain.FavoriteSet]

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithPeriod sets the interval between scheduled ticks.
func WithPeriod(d time.Duration) Option {
	return func(s *Simulator) { s.period = d }
}

// WithRand sets the random source. Use NewRand for reproducible runs.
func WithRand(r Rand) Option {
	return func(s *Simulator) { s.rng = r }
}

// WithClock sets the clock that drives Run and stamps snapshots.
func WithClock(c timeutil.Clock) Option {
	return func(s *Simulator) { s.clock = c }
}

// WithSubscriber adds a publisher that receives every snapshot and event.
func WithSubscriber(p ports.EventPublisher) Option {
	return func(s *Simulator) { s.subscribers = append(s.subscribers, p) }
}

// WithTickHook sets a callback run after every tick.
func WithTickHook(h TickHook) Option {
	return func(s *Simulator) { s.hook = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// New creates a Simulator over lots.
func New(lots []domain.ParkingLot, opts ...Option) *Simulator {
	s := &Simulator{
		period:  DefaultPeriod,
		clock:   timeutil.RealClock{},
		logger:  slog.Default(),
		tracker: NewAvailabilityTracker(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.period <= 0 {
		s.period = DefaultPeriod
	}
	if s.rng == nil {
		s.rng = NewRand(uint64(time.Now().UnixNano()))
	}
	s.Load(lots)
	return s
}

// Load replaces the simulated lots. Occupancy is clamped into
// [0, capacity]; lots without a positive capacity are kept in the
// snapshot but never selected, and are logged once per Load.
func (s *Simulator) Load(lots []domain.ParkingLot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	cp := slices.Clone(lots)
	var excluded []string
	for i := range cp {
		if cp[i].Capacity <= 0 {
			excluded = append(excluded, cp[i].ID)
			continue
		}
		cp[i].Occupancy = clamp(cp[i].Occupancy, 0, cp[i].Capacity)
	}
	if len(excluded) > 0 {
		s.logger.Warn("lots without usable capacity excluded from simulation",
			"count", len(excluded), "ids", excluded)
	}

	var seq uint64
	if prev := s.state.Load(); prev != nil {
		seq = prev.Seq + 1
	}
	s.state.Store(&domain.OccupancySnapshot{
		Seq:      seq,
		TickedAt: now,
		Lots:     cp,
		Excluded: excluded,
	})
	s.tracker.Seed(cp)
	s.suppress = true
}

// SetFavorites replaces the favorite set consulted by subsequent ticks.
func (s *Simulator) SetFavorites(set domain.FavoriteSet) {
	cp := make(domain.FavoriteSet, len(set))
	for id := range set {
		cp[id] = struct{}{}
	}
	s.favorites.Store(&cp)
}

// Favorites returns the current favorite set.
func (s *Simulator) Favorites() domain.FavoriteSet {
	if f := s.favorites.Load(); f != nil {
		return *f
	}
	return nil
}

// Tick runs one scheduled simulation step.
func (s *Simulator) Tick(ctx context.Context) (*domain.OccupancySnapshot, []domain.AvailabilityEvent) {
	return s.tick(ctx, TriggerTimer)
}

// Refresh runs an out-of-band step identical to a scheduled one. It does
// not reset the timer.
func (s *Simulator) Refresh(ctx context.Context) (*domain.OccupancySnapshot, []domain.AvailabilityEvent) {
	return s.tick(ctx, TriggerManual)
}

func (s *Simulator) tick(ctx context.Context, trigger string) (*domain.OccupancySnapshot, []domain.AvailabilityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.Load()
	now := s.clock.Now()
	lots := slices.Clone(prev.Lots)
	favorites := s.Favorites()

	eligible := make([]int, 0, len(lots))
	for i := range lots {
		if lots[i].Capacity > 0 {
			eligible = append(eligible, i)
		}
	}

	var events []domain.AvailabilityEvent
	if len(eligible) > 0 {
		k := min(1+s.rng.IntN(2), len(eligible))
		for n := 0; n < k; n++ {
			// partial Fisher-Yates: eligible[:n] holds the picks so far
			j := n + s.rng.IntN(len(eligible)-n)
			eligible[n], eligible[j] = eligible[j], eligible[n]

			lot := &lots[eligible[n]]
			lot.Occupancy = perturb(lot.Occupancy, lot.Capacity, s.rng)
			lot.UpdatedAt = now

			if s.tracker.Observe(*lot) && favorites.Contains(lot.ID) && !s.suppress {
				events = append(events, domain.AvailabilityEvent{
					ID:            uuid.NewString(),
					LotID:         lot.ID,
					LotName:       lot.Name,
					OccupancyRate: 100 * lot.Occupancy / lot.Capacity, // floored, so always below AvailableRate
					OccurredAt:    now,
				})
			}
		}
	}
	s.suppress = false

	next := &domain.OccupancySnapshot{
		Seq:      prev.Seq + 1,
		TickedAt: now,
		Lots:     lots,
		Excluded: prev.Excluded,
	}
	s.state.Store(next)

	s.publish(ctx, next, events)
	if s.hook != nil {
		s.hook(trigger, next, events)
	}
	return next, events
}

func (s *Simulator) publish(ctx context.Context, snap *domain.OccupancySnapshot, events []domain.AvailabilityEvent) {
	for _, sub := range s.subscribers {
		if err := sub.PublishSnapshot(ctx, snap); err != nil {
			s.logger.Warn("publish snapshot failed", "seq", snap.Seq, "error", err)
		}
		for i := range events {
			if err := sub.PublishAvailability(ctx, &events[i]); err != nil {
				s.logger.Warn("publish availability failed", "lot_id", events[i].LotID, "error", err)
			}
		}
	}
}

// perturb draws a change of 5-15% of capacity in a random direction.
// Draw order: Float64 for the magnitude, then IntN(2) for the direction.
func perturb(occupancy, capacity int, r Rand) int {
	magnitude := (minChange + (maxChange-minChange)*r.Float64()) * float64(capacity)
	direction := 1
	if r.IntN(2) == 1 {
		direction = -1
	}
	return clamp(occupancy+direction*int(math.Floor(magnitude)), 0, capacity)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Run ticks every period until ctx is cancelled or Stop is called.
func (s *Simulator) Run(ctx context.Context) error {
	s.runMu.Lock()
	if s.done != nil {
		s.runMu.Unlock()
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.runMu.Unlock()

	defer func() {
		cancel()
		s.runMu.Lock()
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.runMu.Unlock()
		close(done)
	}()

	ticker := s.clock.NewTicker(s.period)
	defer ticker.Stop()

	s.logger.Info("occupancy simulator started", "period", s.period.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("occupancy simulator stopped")
			return nil
		case <-ticker.C():
			if ctx.Err() != nil {
				return nil
			}
			s.tick(ctx, TriggerTimer)
		}
	}
}

// Stop cancels the timer and waits for the run loop to exit. No
// scheduled tick runs after Stop returns.
func (s *Simulator) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Snapshot returns the latest published state.
func (s *Simulator) Snapshot() *domain.OccupancySnapshot {
	return s.state.Load()
}

// OccupancyRate returns the current rate of a lot.
func (s *Simulator) OccupancyRate(id string) (int, bool) {
	snap := s.state.Load()
	lot, ok := snap.Lot(id)
	if !ok {
		return 0, false
	}
	return lot.OccupancyRate(), true
}

// TimeSinceLastTick returns the time elapsed since the last tick, or
// since Load when no tick has run yet.
func (s *Simulator) TimeSinceLastTick() time.Duration {
	return s.clock.Since(s.state.Load().TickedAt)
}
