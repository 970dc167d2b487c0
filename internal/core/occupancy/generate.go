package occupancy

import (
	"fmt"
	"math"

	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/pkg/geospatial"
)

// GenerateLots scatters n synthetic lots uniformly over a disc of radiusKm
// around center. Capacities range from 50 to 500 in steps of 10.
func GenerateLots(r Rand, n int, center domain.GeoPoint, radiusKm float64) []domain.ParkingLot {
	lots := make([]domain.ParkingLot, n)
	kmPerDeg := geospatial.EarthRadiusKm * math.Pi / 180

	for i := range lots {
		dist := radiusKm * math.Sqrt(r.Float64())
		bearing := 2 * math.Pi * r.Float64()

		dLat := dist * math.Cos(bearing) / kmPerDeg
		dLon := dist * math.Sin(bearing) / (kmPerDeg * math.Cos(center.Lat*math.Pi/180))

		capacity := 50 + 10*r.IntN(46)
		lots[i] = domain.ParkingLot{
			ID:        fmt.Sprintf("gen-%03d", i+1),
			Name:      fmt.Sprintf("Parking %d", i+1),
			Location:  domain.GeoPoint{Lat: center.Lat + dLat, Lon: center.Lon + dLon},
			Capacity:  capacity,
			Occupancy: r.IntN(capacity + 1),
		}
	}
	return lots
}
