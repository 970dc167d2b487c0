//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	handler "github.com/samirrijal/parkwatch/internal/adapters/http"
	"github.com/samirrijal/parkwatch/internal/adapters/postgres"
	"github.com/samirrijal/parkwatch/internal/core/clustering"
	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/usecases"
	"github.com/samirrijal/parkwatch/internal/pkg/config"
)

// setupTestDB connects to the test database and returns a DB instance.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("parkwatch-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return &postgres.DB{Pool: pool}
}

// setupTestDeps wires repository-backed services without a simulator, so
// every read goes to the database.
func setupTestDeps(t *testing.T, db *postgres.DB) *handler.Dependencies {
	lotRepo := postgres.NewLotRepo(db)
	favRepo := postgres.NewFavoriteRepo(db)
	sim := newSimulator(nil)

	lots, err := lotRepo.List(context.Background())
	if err != nil {
		t.Fatalf("list lots: %v", err)
	}
	mapSvc := usecases.NewMapService(clustering.New(), nil, nil, 0)
	mapSvc.Reload(lots)

	return &handler.Dependencies{
		Parking:    usecases.NewParkingService(lotRepo, nil),
		Map:        mapSvc,
		Simulation: usecases.NewSimulationService(sim, favRepo, lotRepo, 5*time.Second),
		DB:         db,
	}
}

// seedTestLots upserts the Bilbao fixture lots.
func seedTestLots(t *testing.T, db *postgres.DB) {
	if err := postgres.NewLotRepo(db).UpsertBatch(context.Background(), bilbaoLots()); err != nil {
		t.Fatalf("seed lots: %v", err)
	}
}

func seedTestFavorite(t *testing.T, db *postgres.DB, userID, lotID string) {
	if _, err := db.Pool.Exec(context.Background(), `
		INSERT INTO user_favorites (user_id, lot_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, lotID); err != nil {
		t.Fatalf("seed favorite: %v", err)
	}
}

func TestGetLot_Integration_WithRealDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()
	seedTestLots(t, db)

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/lots/p1", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var lot domain.ParkingLot
	if err := json.NewDecoder(resp.Body).Decode(&lot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lot.Name != "Plaza Moyua" || lot.Capacity != 200 {
		t.Errorf("unexpected lot %+v", lot)
	}
	if lot.Location.Lat < 43.26 || lot.Location.Lat > 43.27 {
		t.Errorf("location did not round-trip through PostGIS: %+v", lot.Location)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/lots/does-not-exist", nil), -1)
	if resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestNearbyLots_Integration_WithRealDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()
	seedTestLots(t, db)

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/lots/nearby?lat=43.2630&lon=-2.9350&radius=1000", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data []usecases.NearbyLot `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Data) < 3 {
		t.Fatalf("expected at least 3 nearby lots, got %d", len(result.Data))
	}
	if result.Data[0].ID != "p1" {
		t.Errorf("expected p1 first, got %s", result.Data[0].ID)
	}
}

func TestSaveOccupancy_Integration_WithRealDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()
	seedTestLots(t, db)

	ctx := context.Background()
	repo := postgres.NewLotRepo(db)
	if err := repo.SaveOccupancy(ctx, []domain.ParkingLot{{ID: "p3", Capacity: 100, Occupancy: 64}}); err != nil {
		t.Fatalf("save occupancy: %v", err)
	}

	lot, err := repo.GetByID(ctx, "p3")
	if err != nil {
		t.Fatalf("get lot: %v", err)
	}
	if lot.Occupancy != 64 {
		t.Errorf("expected occupancy 64, got %d", lot.Occupancy)
	}
}

func TestFavorites_Integration_WithRealDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()
	seedTestLots(t, db)
	seedTestFavorite(t, db, "user-ane", "p1")
	seedTestFavorite(t, db, "user-jon", "p1")
	seedTestFavorite(t, db, "user-jon", "p4")

	ctx := context.Background()
	repo := postgres.NewFavoriteRepo(db)

	users, err := repo.UsersForLot(ctx, "p1")
	if err != nil {
		t.Fatalf("users for lot: %v", err)
	}
	if len(users) < 2 {
		t.Errorf("expected at least 2 users for p1, got %v", users)
	}

	ids, err := repo.FavoritedLotIDs(ctx)
	if err != nil {
		t.Fatalf("favorited lots: %v", err)
	}
	set := domain.NewFavoriteSet(ids...)
	if !set.Contains("p1") || !set.Contains("p4") {
		t.Errorf("expected p1 and p4 favorited, got %v", ids)
	}
}
