package natsadapter

import (
	"fmt"
	"time"

	"github.com/samirrijal/parkwatch/internal/core/domain"
)

// Subjects. Snapshot and availability subjects are captured by JetStream
// streams; websocket clients read them through a plain subscription.
const (
	SubjectSnapshot         = "parking.occupancy.snapshot"
	SubjectAvailabilityBase = "parking.availability."
	SubjectNotifyBase       = "parking.notify."
)

// AvailabilitySubject returns the subject a lot's availability events go to.
// Callers check the id with domain.ValidID first.
func AvailabilitySubject(lotID string) string {
	return SubjectAvailabilityBase + lotID
}

// checkToken rejects ids that would add tokens or wildcards to a subject.
func checkToken(kind, id string) error {
	if !domain.ValidID(id) {
		return fmt.Errorf("%w: %s id %q is not a subject token", domain.ErrInvalidArgument, kind, id)
	}
	return nil
}

// SnapshotMessage is the wire form of an occupancy snapshot. It carries
// only the mutable fields; clients fetch names and locations once over REST.
type SnapshotMessage struct {
	Seq      uint64         `json:"seq"`
	TickedAt time.Time      `json:"ticked_at"`
	Lots     []LotOccupancy `json:"lots"`
}

// LotOccupancy is one lot's state inside a SnapshotMessage.
type LotOccupancy struct {
	ID        string `json:"id"`
	Capacity  int    `json:"capacity"`
	Occupancy int    `json:"occupancy"`
	Rate      int    `json:"rate"`
}

// NewSnapshotMessage converts a snapshot into its wire form.
func NewSnapshotMessage(snap *domain.OccupancySnapshot) SnapshotMessage {
	msg := SnapshotMessage{
		Seq:      snap.Seq,
		TickedAt: snap.TickedAt,
		Lots:     make([]LotOccupancy, len(snap.Lots)),
	}
	for i, l := range snap.Lots {
		msg.Lots[i] = LotOccupancy{
			ID:        l.ID,
			Capacity:  l.Capacity,
			Occupancy: l.Occupancy,
			Rate:      l.OccupancyRate(),
		}
	}
	return msg
}

// NotifySubject returns the subject a user's push messages go to.
func NotifySubject(userID string) string {
	return SubjectNotifyBase + userID
}
