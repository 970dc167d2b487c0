package occupancy

import "github.com/samirrijal/parkwatch/internal/core/domain"

const (
	// FullRate is the occupancy rate (percent) at or above which a lot is likely full.
	FullRate = 70.0
	// AvailableRate is the occupancy rate (percent) below which a lot is likely available.
	AvailableRate = 60.0
)

// AvailabilityTracker detects full-to-available transitions per lot.
//
// It keeps the occupancy recorded at the end of the previous tick and a
// latch per lot. The latch is set whenever a recorded rate is at or above
// FullRate and released when the rate drops below AvailableRate, which is
// the only moment Observe reports a crossing. A lot that hovers below
// AvailableRate therefore reports once, and a drop that spans several
// ticks (75 -> 65 -> 55) is still reported.
type AvailabilityTracker struct {
	previous map[string]int
	armed    map[string]bool
}

// NewAvailabilityTracker returns an empty tracker.
func NewAvailabilityTracker() *AvailabilityTracker {
	return &AvailabilityTracker{
		previous: make(map[string]int),
		armed:    make(map[string]bool),
	}
}

// Seed resets the tracker to the given baseline occupancy.
func (t *AvailabilityTracker) Seed(lots []domain.ParkingLot) {
	t.previous = make(map[string]int, len(lots))
	t.armed = make(map[string]bool)
	for _, l := range lots {
		if l.Capacity > 0 {
			t.previous[l.ID] = l.Occupancy
		}
	}
}

// Observe records the lot's new occupancy and reports whether it just
// crossed from likely full to likely available.
func (t *AvailabilityTracker) Observe(lot domain.ParkingLot) bool {
	if lot.Capacity <= 0 {
		return false
	}

	prev, ok := t.previous[lot.ID]
	if !ok {
		prev = lot.Occupancy
	}
	t.previous[lot.ID] = lot.Occupancy

	if rate(prev, lot.Capacity) >= FullRate {
		t.armed[lot.ID] = true
	}

	newRate := rate(lot.Occupancy, lot.Capacity)
	crossed := t.armed[lot.ID] && newRate < AvailableRate
	if crossed {
		delete(t.armed, lot.ID)
	}
	if newRate >= FullRate {
		t.armed[lot.ID] = true
	}
	return crossed
}

func rate(occupancy, capacity int) float64 {
	return 100 * float64(occupancy) / float64(capacity)
}
