package geospatial

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineKm(lat1, lon1, lat2, lon2) * 1000
}

// HaversineKm calculates the great-circle distance in kilometers between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// BoundingBox returns the smallest lat/lon box holding every point within
// radiusMeters of (lat, lon) on the Haversine sphere. When the box crosses
// the antimeridian minLon > maxLon; when it reaches a pole it spans all
// longitudes.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	angular := radiusMeters / (EarthRadiusKm * 1000)
	latDelta := toDeg(angular)

	minLat, maxLat = lat-latDelta, lat+latDelta
	if minLat <= -90 || maxLat >= 90 {
		return math.Max(minLat, -90), -180, math.Min(maxLat, 90), 180
	}

	lonDelta := toDeg(math.Asin(math.Sin(angular) / math.Cos(toRad(lat))))
	return minLat, wrapLon(lon - lonDelta), maxLat, wrapLon(lon + lonDelta)
}

// ValidCoordinate reports whether lat/lon are finite and inside WGS 84 range.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

func wrapLon(lon float64) float64 {
	switch {
	case lon < -180:
		return lon + 360
	case lon > 180:
		return lon - 360
	}
	return lon
}
