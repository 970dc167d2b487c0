package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/parkwatch/internal/core/clustering"
	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/ports"
	"github.com/samirrijal/parkwatch/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/samirrijal/parkwatch/internal/core/usecases")

// ClusterView is what the map renders for one viewport.
type ClusterView struct {
	Seq      uint64                  `json:"seq"`
	Zoom     int                     `json:"zoom"`
	Features []domain.ClusterFeature `json:"features"`
	Invalid  int                     `json:"invalid"`
}

// MapService clusters lots for a viewport. Positions come from the index;
// point features are overlaid with the live occupancy of the snapshot the
// view was built from.
type MapService struct {
	index    *clustering.Index
	live     LiveOccupancy
	cache    ports.CacheService
	cacheTTL int
}

// NewMapService creates a new MapService. cache may be nil.
func NewMapService(index *clustering.Index, live LiveOccupancy, cache ports.CacheService, cacheTTL int) *MapService {
	return &MapService{index: index, live: live, cache: cache, cacheTTL: cacheTTL}
}

// Reload replaces the clustered lot set.
func (s *MapService) Reload(lots []domain.ParkingLot) clustering.LoadReport {
	report := s.index.Load(lots)
	metrics.InvalidGeometry.Add(float64(report.Invalid))
	return report
}

// Clusters returns the markers for vp.
func (s *MapService) Clusters(ctx context.Context, vp domain.Viewport) (*ClusterView, error) {
	ctx, span := tracer.Start(ctx, "MapService.Clusters")
	defer span.End()

	var snap *domain.OccupancySnapshot
	if s.live != nil {
		snap = s.live.Snapshot()
	}
	var seq uint64
	if snap != nil {
		seq = snap.Seq
	}
	span.SetAttributes(
		attribute.Int64("snapshot.seq", int64(seq)),
		attribute.Float64("viewport.lon_span", vp.LonSpan),
	)

	cacheKey := fmt.Sprintf("clusters:%d:%.5f:%.5f:%.5f:%.5f", seq, vp.CenterLat, vp.CenterLon, vp.LatSpan, vp.LonSpan)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var view ClusterView
			if err := json.Unmarshal(data, &view); err == nil {
				metrics.CacheHits.WithLabelValues("clusters").Inc()
				span.SetAttributes(attribute.Bool("cache.hit", true))
				return &view, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("clusters").Inc()
	}

	start := time.Now()
	res, err := s.index.Clusters(vp)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, clustering.ErrNotLoaded) {
			return nil, err
		}
		return nil, fmt.Errorf("clusters: %w", err)
	}
	metrics.ClusterDuration.Observe(time.Since(start).Seconds())
	metrics.ClusterRequests.WithLabelValues(mode(res)).Inc()
	span.SetAttributes(
		attribute.Int("clusters.zoom", res.Zoom),
		attribute.Int("clusters.features", len(res.Features)),
	)

	overlay(res.Features, snap)
	view := &ClusterView{Seq: seq, Zoom: res.Zoom, Features: res.Features, Invalid: res.Invalid}

	if s.cache != nil {
		if data, err := json.Marshal(view); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}
	return view, nil
}

func mode(res clustering.Result) string {
	for _, f := range res.Features {
		if f.IsCluster {
			return "clustered"
		}
	}
	return "points"
}

// overlay swaps the stored occupancy of point features for the snapshot's.
func overlay(features []domain.ClusterFeature, snap *domain.OccupancySnapshot) {
	if snap == nil || len(snap.Lots) == 0 {
		return
	}
	byID := make(map[string]*domain.ParkingLot, len(snap.Lots))
	for i := range snap.Lots {
		byID[snap.Lots[i].ID] = &snap.Lots[i]
	}
	for i := range features {
		f := &features[i]
		if f.IsCluster || f.Lot == nil {
			continue
		}
		if live, ok := byID[f.ID]; ok {
			lot := *f.Lot
			lot.Occupancy = live.Occupancy
			lot.Capacity = live.Capacity
			lot.UpdatedAt = live.UpdatedAt
			f.Lot = &lot
		}
	}
}
