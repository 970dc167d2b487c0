package usecases_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samirrijal/parkwatch/internal/core/domain"
)

// --- Mock ParkingLotRepository ---

type mockLotRepo struct {
	listFn          func(ctx context.Context) ([]domain.ParkingLot, error)
	findNearbyFn    func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.ParkingLot, error)
	getByIDFn       func(ctx context.Context, id string) (*domain.ParkingLot, error)
	saveOccupancyFn func(ctx context.Context, lots []domain.ParkingLot) error
}

func (m *mockLotRepo) Upsert(ctx context.Context, lot *domain.ParkingLot) error        { return nil }
func (m *mockLotRepo) UpsertBatch(ctx context.Context, lots []domain.ParkingLot) error { return nil }

func (m *mockLotRepo) GetByID(ctx context.Context, id string) (*domain.ParkingLot, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockLotRepo) List(ctx context.Context) ([]domain.ParkingLot, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockLotRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.ParkingLot, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}

func (m *mockLotRepo) SaveOccupancy(ctx context.Context, lots []domain.ParkingLot) error {
	if m.saveOccupancyFn != nil {
		return m.saveOccupancyFn(ctx, lots)
	}
	return nil
}

// --- Mock FavoriteRepository ---

type mockFavoriteRepo struct {
	favoritedFn   func(ctx context.Context) ([]string, error)
	usersForLotFn func(ctx context.Context, lotID string) ([]string, error)
}

func (m *mockFavoriteRepo) FavoritedLotIDs(ctx context.Context) ([]string, error) {
	if m.favoritedFn != nil {
		return m.favoritedFn(ctx)
	}
	return nil, nil
}

func (m *mockFavoriteRepo) UsersForLot(ctx context.Context, lotID string) ([]string, error) {
	if m.usersForLotFn != nil {
		return m.usersForLotFn(ctx, lotID)
	}
	return nil, nil
}

// --- Mock NotificationService ---

type mockNotifier struct {
	sendPushFn func(ctx context.Context, userID, title, body string) error
}

func (m *mockNotifier) SendPush(ctx context.Context, userID, title, body string) error {
	if m.sendPushFn != nil {
		return m.sendPushFn(ctx, userID, title, body)
	}
	return nil
}

// --- In-memory CacheService ---

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Fake live occupancy ---

type fakeLive struct {
	snap *domain.OccupancySnapshot
}

func (f *fakeLive) Snapshot() *domain.OccupancySnapshot { return f.snap }

// --- Fake Simulation ---

type fakeSimulation struct {
	fakeLive
	since     time.Duration
	favorites domain.FavoriteSet
	refreshFn func(ctx context.Context) (*domain.OccupancySnapshot, []domain.AvailabilityEvent)
}

func (f *fakeSimulation) Refresh(ctx context.Context) (*domain.OccupancySnapshot, []domain.AvailabilityEvent) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx)
	}
	f.snap = &domain.OccupancySnapshot{Seq: f.snap.Seq + 1, Lots: f.snap.Lots}
	return f.snap, nil
}

func (f *fakeSimulation) TimeSinceLastTick() time.Duration     { return f.since }
func (f *fakeSimulation) SetFavorites(set domain.FavoriteSet) { f.favorites = set }
func (f *fakeSimulation) Favorites() domain.FavoriteSet       { return f.favorites }
