package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/parkwatch/internal/core/domain"
)

// AvailabilityInput is the input for the availability notification workflow.
type AvailabilityInput struct {
	Event domain.AvailabilityEvent
}

// AvailabilityResult reports how the fan-out went.
type AvailabilityResult struct {
	Recipients int
	Sent       int
	Failed     []string
}

// WorkflowID is the id the workflow for event runs under. Redelivered
// events map to the same id, so a user is not pushed twice.
func WorkflowID(event domain.AvailabilityEvent) string {
	return "availability-" + event.ID
}

// AvailabilityNotificationWorkflow looks up who favorited the lot and
// pushes the event to each of them in parallel. A user whose push keeps
// failing after retries is reported in Failed and does not fail the
// workflow.
func AvailabilityNotificationWorkflow(ctx workflow.Context, input AvailabilityInput) (AvailabilityResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting availability workflow", "lotID", input.Event.LotID, "rate", input.Event.OccupancyRate)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var result AvailabilityResult

	// Step 1: who favorited the lot
	var users []string
	if err := workflow.ExecuteActivity(ctx, ActivityFindRecipients, input.Event.LotID).Get(ctx, &users); err != nil {
		return result, err
	}
	result.Recipients = len(users)
	if len(users) == 0 {
		logger.Info("No recipients", "lotID", input.Event.LotID)
		return result, nil
	}

	// Step 2: push to everyone at once, then collect
	futures := make([]workflow.Future, len(users))
	for i, u := range users {
		futures[i] = workflow.ExecuteActivity(ctx, ActivitySendAvailabilityPush, u, input.Event)
	}
	for i, f := range futures {
		if err := f.Get(ctx, nil); err != nil {
			logger.Warn("push failed", "userID", users[i], "error", err)
			result.Failed = append(result.Failed, users[i])
			continue
		}
		result.Sent++
	}

	logger.Info("Availability notifications sent", "sent", result.Sent, "failed", len(result.Failed))
	return result, nil
}
