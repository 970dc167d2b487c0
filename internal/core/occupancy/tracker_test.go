package occupancy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/samirrijal/parkwatch/internal/core/domain"
)

func observeRates(tr *AvailabilityTracker, id string, capacity int, rates ...int) []bool {
	out := make([]bool, len(rates))
	for i, r := range rates {
		out[i] = tr.Observe(domain.ParkingLot{ID: id, Capacity: capacity, Occupancy: r * capacity / 100})
	}
	return out
}

func TestTracker_FiresOncePerDownwardCrossing(t *testing.T) {
	tr := NewAvailabilityTracker()
	tr.Seed([]domain.ParkingLot{{ID: "p1", Capacity: 100, Occupancy: 75}})

	got := observeRates(tr, "p1", 100, 65, 55, 58, 50)
	assert.Equal(t, []bool{false, true, false, false}, got)
}

func TestTracker_DirectCrossing(t *testing.T) {
	tr := NewAvailabilityTracker()
	tr.Seed([]domain.ParkingLot{{ID: "p1", Capacity: 200, Occupancy: 160}})

	assert.Equal(t, []bool{true, false}, observeRates(tr, "p1", 200, 50, 40))
}

func TestTracker_RearmsAfterReturningFull(t *testing.T) {
	tr := NewAvailabilityTracker()
	tr.Seed([]domain.ParkingLot{{ID: "p1", Capacity: 100, Occupancy: 80}})

	got := observeRates(tr, "p1", 100, 50, 59, 72, 66, 40)
	assert.Equal(t, []bool{true, false, false, false, true}, got)
}

func TestTracker_NeverFullNeverFires(t *testing.T) {
	tr := NewAvailabilityTracker()
	tr.Seed([]domain.ParkingLot{{ID: "p1", Capacity: 100, Occupancy: 69}})

	got := observeRates(tr, "p1", 100, 59, 65, 40, 69, 10)
	assert.Equal(t, []bool{false, false, false, false, false}, got)
}

func TestTracker_UnseededLotUsesItsOwnValue(t *testing.T) {
	tr := NewAvailabilityTracker()

	// first sight of a full lot only arms it
	assert.Equal(t, []bool{false, true}, observeRates(tr, "new", 100, 80, 50))
	// first sight of an empty lot has nothing to compare against
	assert.Equal(t, []bool{false, false}, observeRates(tr, "other", 100, 10, 5))
}

func TestTracker_IgnoresDegenerateCapacity(t *testing.T) {
	tr := NewAvailabilityTracker()
	tr.Seed([]domain.ParkingLot{{ID: "bad", Capacity: 0, Occupancy: 0}})

	assert.False(t, tr.Observe(domain.ParkingLot{ID: "bad", Capacity: 0, Occupancy: 5}))
	assert.Empty(t, tr.previous)
}
