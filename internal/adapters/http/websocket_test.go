package http

import "testing"

func TestSubjectFor(t *testing.T) {
	tests := []struct {
		msg     wsMessage
		subject string
		problem bool
	}{
		{wsMessage{}, "parking.occupancy.snapshot", false},
		{wsMessage{Channel: "occupancy"}, "parking.occupancy.snapshot", false},
		{wsMessage{Channel: "availability"}, "parking.availability.>", false},
		{wsMessage{Channel: "availability", Lot: "p-3"}, "parking.availability.p-3", false},
		{wsMessage{Channel: "notifications", User: "u-9"}, "parking.notify.u-9", false},
		{wsMessage{Channel: "notifications"}, "", true},
		{wsMessage{Channel: "vehicles"}, "", true},
		{wsMessage{Channel: "notifications", User: ">"}, "", true},
		{wsMessage{Channel: "notifications", User: "*"}, "", true},
		{wsMessage{Channel: "notifications", User: "u-9.x"}, "", true},
		{wsMessage{Channel: "availability", Lot: "*"}, "", true},
		{wsMessage{Channel: "availability", Lot: "p 3"}, "", true},
	}
	for _, tt := range tests {
		subject, problem := subjectFor(tt.msg)
		if subject != tt.subject || (problem != "") != tt.problem {
			t.Errorf("subjectFor(%+v) = %q, %q", tt.msg, subject, problem)
		}
	}
}
