package domain

import (
	"errors"
	"math"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrNotFound is returned when a lot or favorite does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument wraps caller input that cannot be served.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ParkingLot is a parking facility with a fixed location and a live occupancy.
type ParkingLot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Location  GeoPoint  `json:"location"`
	Capacity  int       `json:"capacity"`
	Occupancy int       `json:"occupancy"`
	Distance  *float64  `json:"distance,omitempty"` // computed field, meters
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ValidID reports whether id can name a lot or a user. Ids become NATS
// subject tokens and URL path segments, so they may not be empty or carry
// '.', '*', '>', '/' or whitespace.
func ValidID(id string) bool {
	if id == "" {
		return false
	}
	return !strings.ContainsFunc(id, func(r rune) bool {
		return r == '.' || r == '*' || r == '>' || r == '/' || unicode.IsSpace(r)
	})
}

// OccupancyRate returns round(occupancy/capacity*100), or 0 for a lot
// without a usable capacity.
func (p ParkingLot) OccupancyRate() int {
	if p.Capacity <= 0 {
		return 0
	}
	return int(math.Round(float64(p.Occupancy) / float64(p.Capacity) * 100))
}

// Available returns the number of free spaces.
func (p ParkingLot) Available() int {
	if p.Capacity <= 0 {
		return 0
	}
	return p.Capacity - p.Occupancy
}

// Viewport is the visible map region reported by the client.
type Viewport struct {
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
	LatSpan   float64 `json:"lat_span"`
	LonSpan   float64 `json:"lon_span"`
}

// ClusterFeature is one marker handed to the map: either a cluster of
// several lots or a single lot.
type ClusterFeature struct {
	IsCluster bool    `json:"is_cluster"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// cluster fields
	MemberCount      int      `json:"member_count,omitempty"`
	RepresentativeID string   `json:"representative_id,omitempty"`
	MemberIDs        []string `json:"member_ids,omitempty"`

	// point fields
	ID  string      `json:"id,omitempty"`
	Lot *ParkingLot `json:"lot,omitempty"`
}

// Members returns how many lots the feature stands for.
func (f ClusterFeature) Members() int {
	if f.IsCluster {
		return f.MemberCount
	}
	return 1
}

// FavoriteSet is the set of lot ids a user base has favorited.
type FavoriteSet map[string]struct{}

// NewFavoriteSet builds a FavoriteSet from ids.
func NewFavoriteSet(ids ...string) FavoriteSet {
	s := make(FavoriteSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is favorited. A nil set contains nothing.
func (s FavoriteSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// OccupancySnapshot is the complete simulator state published after a tick.
type OccupancySnapshot struct {
	Seq      uint64       `json:"seq"`
	TickedAt time.Time    `json:"ticked_at"`
	Lots     []ParkingLot `json:"lots"`
	Excluded []string     `json:"excluded,omitempty"` // lots with unusable capacity
}

// Lot returns the lot with the given id from the snapshot.
func (s *OccupancySnapshot) Lot(id string) (ParkingLot, bool) {
	for _, l := range s.Lots {
		if l.ID == id {
			return l, true
		}
	}
	return ParkingLot{}, false
}

// AvailabilityEvent is raised when a favorited lot goes from likely full
// to likely available.
type AvailabilityEvent struct {
	ID            string    `json:"id"`
	LotID         string    `json:"lot_id"`
	LotName       string    `json:"lot_name"`
	OccupancyRate int       `json:"occupancy_rate"`
	OccurredAt    time.Time `json:"occurred_at"`
}
