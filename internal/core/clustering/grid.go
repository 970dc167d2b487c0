package clustering

import (
	"math"
	"sort"

	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/pkg/geospatial"
)

const (
	kmPerDegree = geospatial.EarthRadiusKm * math.Pi / 180

	// cells are padded so the 3x3 neighborhood always covers the radius
	cellPadding = 1.1

	// beyond this latitude longitude cells get too wide to help
	maxGridLat = 85.0
)

type cellKey struct {
	x, y int64
}

// grid buckets points into lat/lon cells at least one radius wide so a
// neighbor query only scans the surrounding 3x3 cells.
type grid struct {
	latCell float64
	lonCell float64
	lots    []domain.ParkingLot
	cells   map[cellKey][]int
}

// newGrid returns nil when the point set cannot be bucketed safely
// (near a pole or straddling the antimeridian); callers then scan all points.
func newGrid(lots []domain.ParkingLot, radiusKm float64) *grid {
	latCell := radiusKm / kmPerDegree * cellPadding

	maxAbsLat := 0.0
	for _, l := range lots {
		maxAbsLat = math.Max(maxAbsLat, math.Abs(l.Location.Lat))
	}
	if maxAbsLat+latCell >= maxGridLat {
		return nil
	}
	lonCell := latCell / math.Cos((maxAbsLat+latCell)*math.Pi/180)

	for _, l := range lots {
		if l.Location.Lon-lonCell <= -180 || l.Location.Lon+lonCell >= 180 {
			return nil
		}
	}

	g := &grid{
		latCell: latCell,
		lonCell: lonCell,
		lots:    lots,
		cells:   make(map[cellKey][]int, len(lots)/4+1),
	}
	for i, l := range lots {
		k := g.key(l.Location)
		g.cells[k] = append(g.cells[k], i)
	}
	return g
}

func (g *grid) key(p domain.GeoPoint) cellKey {
	return cellKey{
		x: int64(math.Floor(p.Lon / g.lonCell)),
		y: int64(math.Floor(p.Lat / g.latCell)),
	}
}

// candidates returns, in ascending order, the indices after i that share
// a cell neighborhood with point i. Ascending order keeps group member
// order identical to the brute-force scan.
func (g *grid) candidates(i int) []int {
	base := g.key(g.lots[i].Location)
	var out []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, j := range g.cells[cellKey{x: base.x + dx, y: base.y + dy}] {
				if j > i {
					out = append(out, j)
				}
			}
		}
	}
	sort.Ints(out)
	return out
}
