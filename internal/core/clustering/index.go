// Package clustering groups parking lots into map markers.
//
// Grouping is a single greedy pass in input order: each unassigned lot
// seeds a group and pulls in every other unassigned lot within the
// radius of the seed. Membership is therefore not transitive; a group
// may hold lots up to twice the radius apart, and the result depends on
// input order. Callers that compare cluster counts rely on this exact
// behavior, so the grid neighbor search below must return the same
// groups as the brute-force scan.
package clustering

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"gonum.org/v1/gonum/stat"

	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/pkg/geospatial"
)

const (
	// DefaultRadiusKm is 0.01 degrees of longitude at the equator.
	DefaultRadiusKm = 1.11
	// DefaultPointZoom is the highest zoom that still clusters.
	DefaultPointZoom = 13
	// DefaultGridThreshold is the point count from which the grid search is used.
	DefaultGridThreshold = 256
)

// ErrNotLoaded is returned by Clusters when Load has never been called.
var ErrNotLoaded = errors.New("clustering: Clusters called before Load")

// Index holds the last loaded point set. Load swaps the whole set, so
// Clusters can run concurrently with Load and with itself.
type Index struct {
	radiusKm      float64
	pointZoom     int
	gridThreshold int
	logger        *slog.Logger

	set atomic.Pointer[pointSet]
}

type pointSet struct {
	lots    []domain.ParkingLot
	invalid []string
}

// Option configures an Index.
type Option func(*Index)

// WithRadiusKm sets the grouping radius.
func WithRadiusKm(km float64) Option {
	return func(ix *Index) { ix.radiusKm = km }
}

// WithPointZoom sets the zoom above which every lot is its own marker.
func WithPointZoom(z int) Option {
	return func(ix *Index) { ix.pointZoom = z }
}

// WithGridThreshold sets the minimum point count for the grid search.
func WithGridThreshold(n int) Option {
	return func(ix *Index) { ix.gridThreshold = n }
}

// WithLogger sets the logger used for data-quality warnings.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// New creates an empty Index. Non-positive settings fall back to defaults.
func New(opts ...Option) *Index {
	ix := &Index{}
	for _, o := range opts {
		o(ix)
	}
	if ix.radiusKm <= 0 {
		ix.radiusKm = DefaultRadiusKm
	}
	if ix.pointZoom <= 0 {
		ix.pointZoom = DefaultPointZoom
	}
	if ix.gridThreshold <= 0 {
		ix.gridThreshold = DefaultGridThreshold
	}
	if ix.logger == nil {
		ix.logger = slog.Default()
	}
	return ix
}

// LoadReport describes what Load accepted.
type LoadReport struct {
	Loaded     int      `json:"loaded"`
	Invalid    int      `json:"invalid"`
	InvalidIDs []string `json:"invalid_ids,omitempty"`
}

// Load replaces the point set. Lots with non-finite or out-of-range
// coordinates are left out and reported instead of failing the load.
func (ix *Index) Load(lots []domain.ParkingLot) LoadReport {
	set := &pointSet{lots: make([]domain.ParkingLot, 0, len(lots))}
	for _, l := range lots {
		if !geospatial.ValidCoordinate(l.Location.Lat, l.Location.Lon) {
			set.invalid = append(set.invalid, l.ID)
			continue
		}
		set.lots = append(set.lots, l)
	}
	ix.set.Store(set)

	if len(set.invalid) > 0 {
		ix.logger.Warn("lots with invalid coordinates excluded from clustering",
			"count", len(set.invalid), "ids", set.invalid)
	}

	return LoadReport{
		Loaded:     len(set.lots),
		Invalid:    len(set.invalid),
		InvalidIDs: set.invalid,
	}
}

// Result is the render contract for one viewport.
type Result struct {
	Zoom     int                     `json:"zoom"`
	Features []domain.ClusterFeature `json:"features"`
	Invalid  int                     `json:"invalid"`
}

// Clusters computes markers for the viewport from scratch. The output
// depends only on the loaded set and the viewport.
func (ix *Index) Clusters(vp domain.Viewport) (Result, error) {
	set := ix.set.Load()
	if set == nil {
		return Result{}, ErrNotLoaded
	}

	res := Result{
		Zoom:    geospatial.ZoomLevel(vp.LonSpan),
		Invalid: len(set.invalid),
	}
	if res.Zoom > ix.pointZoom {
		res.Features = pointFeatures(set.lots)
		return res, nil
	}
	res.Features = ix.greedy(set.lots)
	return res, nil
}

func pointFeatures(lots []domain.ParkingLot) []domain.ClusterFeature {
	features := make([]domain.ClusterFeature, len(lots))
	for i := range lots {
		features[i] = pointFeature(lots[i])
	}
	return features
}

func pointFeature(l domain.ParkingLot) domain.ClusterFeature {
	return domain.ClusterFeature{
		Latitude:  l.Location.Lat,
		Longitude: l.Location.Lon,
		ID:        l.ID,
		Lot:       &l,
	}
}

func (ix *Index) greedy(lots []domain.ParkingLot) []domain.ClusterFeature {
	var g *grid
	if len(lots) >= ix.gridThreshold {
		g = newGrid(lots, ix.radiusKm)
	}

	assigned := make([]bool, len(lots))
	features := make([]domain.ClusterFeature, 0, len(lots))
	group := make([]int, 0, 8)

	for i := range lots {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group = append(group[:0], i)
		seed := lots[i].Location

		join := func(j int) {
			if assigned[j] {
				return
			}
			p := lots[j].Location
			if geospatial.HaversineKm(seed.Lat, seed.Lon, p.Lat, p.Lon) <= ix.radiusKm {
				assigned[j] = true
				group = append(group, j)
			}
		}

		if g != nil {
			for _, j := range g.candidates(i) {
				join(j)
			}
		} else {
			for j := i + 1; j < len(lots); j++ {
				join(j)
			}
		}

		features = append(features, makeFeature(lots, group))
	}
	return features
}

func makeFeature(lots []domain.ParkingLot, group []int) domain.ClusterFeature {
	if len(group) == 1 {
		return pointFeature(lots[group[0]])
	}

	lats := make([]float64, len(group))
	lons := make([]float64, len(group))
	ids := make([]string, len(group))
	for k, idx := range group {
		lats[k] = lots[idx].Location.Lat
		lons[k] = lots[idx].Location.Lon
		ids[k] = lots[idx].ID
	}

	return domain.ClusterFeature{
		IsCluster:        true,
		Latitude:         stat.Mean(lats, nil),
		Longitude:        stat.Mean(lons, nil),
		MemberCount:      len(group),
		RepresentativeID: ids[0],
		MemberIDs:        ids,
	}
}
