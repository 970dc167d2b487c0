package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/parkwatch/internal/adapters/postgres"
	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/occupancy"
	"github.com/samirrijal/parkwatch/internal/pkg/config"
	"github.com/samirrijal/parkwatch/internal/pkg/geospatial"
	"github.com/samirrijal/parkwatch/internal/pkg/logging"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

// Manifest lists the lot feeds to ingest. Lots may also be given inline.
type Manifest struct {
	Source string              `json:"source"`
	Feeds  []FeedEntry         `json:"feeds"`
	Lots   []domain.ParkingLot `json:"lots,omitempty"`
}

// FeedEntry is one remote lot list, either a JSON array of lots or a CSV
// with an id,name,address,lat,lon,capacity,occupancy header.
type FeedEntry struct {
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	URL    string `json:"url"`
	Format string `json:"format"` // "json" (default) or "csv"
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	synthetic := flag.Int("synthetic", 0, "generate this many lots around the configured center instead of reading a manifest")
	seed := flag.Uint64("seed", 1, "seed for -synthetic")
	flag.Parse()

	cfg, err := config.Load("parkwatch-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewLotRepo(db)

	var lots []domain.ParkingLot
	if *synthetic > 0 {
		center := domain.GeoPoint{Lat: cfg.Simulation.CenterLat, Lon: cfg.Simulation.CenterLon}
		lots = occupancy.GenerateLots(occupancy.NewRand(*seed), *synthetic, center, cfg.Simulation.RadiusKm)
		slog.Info("generated synthetic lots", "count", len(lots), "seed", *seed)
	} else {
		manifestPath := "manifest.json"
		if flag.NArg() > 0 {
			manifestPath = flag.Arg(0)
		}
		manifest, err := readManifest(manifestPath)
		if err != nil {
			log.Fatalf("manifest: %v", err)
		}
		slog.Info("ingesting lots", "feeds", len(manifest.Feeds), "inline", len(manifest.Lots), "source", manifest.Source)

		client := &http.Client{Timeout: 60 * time.Second}
		if lots, err = collect(ctx, client, manifest); err != nil {
			log.Fatalf("collect: %v", err)
		}
	}

	valid, rejected := validate(lots)
	for _, r := range rejected {
		slog.Warn("lot rejected", "id", r.id, "reason", r.reason)
	}

	if err := repo.UpsertBatch(ctx, valid); err != nil {
		log.Fatalf("upsert: %v", err)
	}
	slog.Info("ingestion complete", "upserted", len(valid), "rejected", len(rejected))
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}

// collect downloads every feed, at most four at a time, and appends the
// inline lots. A failing feed is logged and skipped.
func collect(ctx context.Context, client *http.Client, m *Manifest) ([]domain.ParkingLot, error) {
	var (
		mu   sync.Mutex
		lots = append([]domain.ParkingLot(nil), m.Lots...)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, feed := range m.Feeds {
		g.Go(func() error {
			got, err := fetchFeed(gctx, client, feed)
			if err != nil {
				slog.Error("feed failed", "feed", feed.Slug, "error", err)
				return nil
			}
			slog.Info("feed fetched", "feed", feed.Slug, "lots", len(got))
			mu.Lock()
			lots = append(lots, got...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lots, nil
}

// ---------------------------------------------------------------------------
// Feeds
// ---------------------------------------------------------------------------

func fetchFeed(ctx context.Context, client *http.Client, feed FeedEntry) ([]domain.ParkingLot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, feed.URL)
	}

	lots, err := parseFeed(resp.Body, feed.Format)
	if err != nil {
		return nil, err
	}
	// namespace ids by feed so two operators can reuse the same numbering
	if feed.Slug != "" {
		for i := range lots {
			lots[i].ID = feed.Slug + ":" + lots[i].ID
		}
	}
	return lots, nil
}

func parseFeed(r io.Reader, format string) ([]domain.ParkingLot, error) {
	switch strings.ToLower(format) {
	case "", "json":
		var lots []domain.ParkingLot
		if err := json.NewDecoder(r).Decode(&lots); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return lots, nil
	case "csv":
		return parseCSV(r)
	default:
		return nil, fmt.Errorf("unknown feed format %q", format)
	}
}

func parseCSV(r io.Reader) ([]domain.ParkingLot, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := headerIndex(header)
	for _, col := range []string{"id", "name", "lat", "lon", "capacity"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var lots []domain.ParkingLot
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		lot := domain.ParkingLot{
			ID:      field(rec, idx, "id"),
			Name:    field(rec, idx, "name"),
			Address: field(rec, idx, "address"),
		}
		if lot.Location.Lat, err = strconv.ParseFloat(field(rec, idx, "lat"), 64); err != nil {
			return nil, fmt.Errorf("line %d: lat: %w", line, err)
		}
		if lot.Location.Lon, err = strconv.ParseFloat(field(rec, idx, "lon"), 64); err != nil {
			return nil, fmt.Errorf("line %d: lon: %w", line, err)
		}
		if lot.Capacity, err = strconv.Atoi(field(rec, idx, "capacity")); err != nil {
			return nil, fmt.Errorf("line %d: capacity: %w", line, err)
		}
		if occ := field(rec, idx, "occupancy"); occ != "" {
			if lot.Occupancy, err = strconv.Atoi(occ); err != nil {
				return nil, fmt.Errorf("line %d: occupancy: %w", line, err)
			}
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func field(rec []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

type rejection struct {
	id     string
	reason string
}

// validate drops lots that cannot be stored: a missing or malformed id,
// unusable coordinates, negative capacity or a duplicate id. Occupancy is
// clamped into [0, capacity].
func validate(lots []domain.ParkingLot) ([]domain.ParkingLot, []rejection) {
	seen := make(map[string]bool, len(lots))
	valid := make([]domain.ParkingLot, 0, len(lots))
	var rejected []rejection

	for _, l := range lots {
		switch {
		case l.ID == "":
			rejected = append(rejected, rejection{id: l.Name, reason: "missing id"})
			continue
		case !domain.ValidID(l.ID):
			rejected = append(rejected, rejection{id: l.ID, reason: "invalid id"})
			continue
		case !geospatial.ValidCoordinate(l.Location.Lat, l.Location.Lon):
			rejected = append(rejected, rejection{id: l.ID, reason: "invalid coordinates"})
			continue
		case l.Capacity < 0:
			rejected = append(rejected, rejection{id: l.ID, reason: "negative capacity"})
			continue
		case seen[l.ID]:
			rejected = append(rejected, rejection{id: l.ID, reason: "duplicate id"})
			continue
		}
		seen[l.ID] = true
		l.Occupancy = max(0, min(l.Occupancy, l.Capacity))
		valid = append(valid, l)
	}
	return valid, rejected
}
