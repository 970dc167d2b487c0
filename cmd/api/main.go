package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/parkwatch/internal/adapters/http"
	natsadapter "github.com/samirrijal/parkwatch/internal/adapters/nats"
	"github.com/samirrijal/parkwatch/internal/adapters/postgres"
	"github.com/samirrijal/parkwatch/internal/adapters/valkey"
	"github.com/samirrijal/parkwatch/internal/core/clustering"
	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/occupancy"
	"github.com/samirrijal/parkwatch/internal/core/ports"
	"github.com/samirrijal/parkwatch/internal/core/usecases"
	"github.com/samirrijal/parkwatch/internal/pkg/config"
	"github.com/samirrijal/parkwatch/internal/pkg/logging"
	"github.com/samirrijal/parkwatch/internal/pkg/metrics"
	"github.com/samirrijal/parkwatch/internal/pkg/telemetry"
)

const (
	// fallbackLots is how many synthetic lots are generated when the
	// database has none.
	fallbackLots       = 50
	checkpointInterval = time.Minute
	poolStatsInterval  = 15 * time.Second
)

func main() {
	cfg, err := config.Load("parkwatch-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{}

	// Database (optional: without it the API serves synthetic lots)
	var (
		lotRepo ports.ParkingLotRepository
		favRepo ports.FavoriteRepository
	)
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Warn("database unavailable, running on synthetic lots", "error", err)
	} else {
		defer db.Close()
		lotRepo = postgres.NewLotRepo(db)
		favRepo = postgres.NewFavoriteRepo(db)
		deps.DB = db
	}

	// Cache
	var cache ports.CacheService
	vc, err := valkey.New(cfg.Valkey.Addr, "parkwatch:")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	// NATS
	var publisher *natsadapter.Publisher
	if publisher, err = natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, snapshots stay in-process", "error", err)
		publisher = nil
	} else {
		defer publisher.Close()
	}

	// Raw NATS connection for WebSocket relay
	if natsConn, err := natsadapter.RawConn(cfg.NATS.URL); err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
		deps.NATS = natsConn
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := occupancy.NewRand(seed)

	lots := loadLots(ctx, lotRepo, cfg.Simulation, rng)
	slog.Info("lots loaded", "count", len(lots), "seed", seed)

	// Simulator
	simOpts := []occupancy.Option{
		occupancy.WithPeriod(cfg.Simulation.Period()),
		occupancy.WithRand(rng),
		occupancy.WithLogger(logger.With("component", "simulator")),
		occupancy.WithTickHook(usecases.MetricsHook()),
	}
	if publisher != nil {
		simOpts = append(simOpts, occupancy.WithSubscriber(publisher))
	}
	sim := occupancy.New(lots, simOpts...)

	// Clustering
	index := clustering.New(
		clustering.WithRadiusKm(cfg.Clustering.RadiusKm),
		clustering.WithPointZoom(cfg.Clustering.PointZoom),
		clustering.WithGridThreshold(cfg.Clustering.GridThreshold),
		clustering.WithLogger(logger.With("component", "clustering")),
	)

	// Use cases
	mapSvc := usecases.NewMapService(index, sim, cache, cfg.Valkey.ClusterTTL)
	if report := mapSvc.Reload(lots); report.Invalid > 0 {
		slog.Warn("lots with invalid coordinates left off the map", "count", report.Invalid)
	}
	simSvc := usecases.NewSimulationService(sim, favRepo, lotRepo, cfg.Simulation.Period())
	if err := simSvc.SyncFavorites(ctx); err != nil {
		slog.Warn("initial favorites sync failed", "error", err)
	}

	deps.Parking = usecases.NewParkingService(lotRepo, sim)
	deps.Map = mapSvc
	deps.Simulation = simSvc

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             1024 * 1024, // 1 MB max request body
		AppName:               "parkwatch API",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	if cfg.Simulation.Enabled {
		g.Go(func() error {
			if err := sim.Run(gctx); err != nil && !errors.Is(err, occupancy.ErrRunning) {
				return err
			}
			return nil
		})
	}

	if favRepo != nil {
		g.Go(func() error { return simSvc.RunSync(gctx, cfg.Simulation.FavoritesRefresh()) })
	}
	if lotRepo != nil {
		g.Go(func() error { return runCheckpoints(gctx, simSvc) })
	}
	if db != nil {
		g.Go(func() error {
			ticker := time.NewTicker(poolStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					metrics.UpdateDBPoolMetrics(db.Pool.Stat())
				}
			}
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		sim.Stop()

		// Give in-flight requests up to 10s to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("forced shutdown", "error", err)
		}

		// last checkpoint so a restart resumes from the latest occupancy
		if lotRepo != nil {
			if err := simSvc.Checkpoint(shutdownCtx); err != nil {
				slog.Warn("final checkpoint failed", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// loadLots reads the lots from the repository and falls back to synthetic
// lots around the configured center when there is no database or it is
// empty. A positive simulation.synthetic_lots always wins.
func loadLots(ctx context.Context, repo ports.ParkingLotRepository, cfg config.SimulationConfig, rng occupancy.Rand) []domain.ParkingLot {
	center := domain.GeoPoint{Lat: cfg.CenterLat, Lon: cfg.CenterLon}
	if cfg.SyntheticLots > 0 {
		return occupancy.GenerateLots(rng, cfg.SyntheticLots, center, cfg.RadiusKm)
	}
	if repo != nil {
		lots, err := repo.List(ctx)
		if err != nil {
			slog.Warn("list lots failed, using synthetic lots", "error", err)
		} else if len(lots) > 0 {
			return lots
		}
	}
	return occupancy.GenerateLots(rng, fallbackLots, center, cfg.RadiusKm)
}

// runCheckpoints writes the simulated occupancy back every
// checkpointInterval until ctx is done.
func runCheckpoints(ctx context.Context, svc *usecases.SimulationService) error {
	ticker := time.NewTicker(checkpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := svc.Checkpoint(ctx); err != nil {
				slog.Warn("occupancy checkpoint failed", "error", err)
			}
		}
	}
}
