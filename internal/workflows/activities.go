package workflows

import (
	"context"

	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/usecases"
)

// Activity names as registered on the worker.
const (
	ActivityFindRecipients       = "FindRecipients"
	ActivitySendAvailabilityPush = "SendAvailabilityPush"
)

// AvailabilityActivities holds the activity implementations for the
// availability notification workflow.
type AvailabilityActivities struct {
	Availability *usecases.AvailabilityService
}

// FindRecipients returns the users who favorited the lot.
func (a *AvailabilityActivities) FindRecipients(ctx context.Context, lotID string) ([]string, error) {
	return a.Availability.Recipients(ctx, lotID)
}

// SendAvailabilityPush pushes the event to one user.
func (a *AvailabilityActivities) SendAvailabilityPush(ctx context.Context, userID string, event domain.AvailabilityEvent) error {
	return a.Availability.NotifyUser(ctx, userID, event)
}
