package geospatial

import (
	"math"

	"github.com/dustin/go-humanize"
)

const (
	MinZoom = 0
	MaxZoom = 20
)

// ZoomLevel maps a viewport longitude span (degrees) to a slippy-map zoom
// level: round(log2(360/span)) clamped to [MinZoom, MaxZoom].
// A non-positive or non-finite span yields MaxZoom.
func ZoomLevel(lonSpan float64) int {
	if !(lonSpan > 0) || math.IsInf(lonSpan, 0) {
		return MaxZoom
	}
	z := int(math.Round(math.Log2(360 / lonSpan)))
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// FormatDistance renders a distance in meters for display, e.g. "850 m" or "1.2 km".
func FormatDistance(meters float64) string {
	if math.IsNaN(meters) || meters < 0 {
		return ""
	}
	if m := math.Round(meters); m < 1000 {
		return humanize.FormatFloat("#,###.", m) + " m"
	}
	return humanize.SIWithDigits(math.Round(meters), 1, "m")
}
