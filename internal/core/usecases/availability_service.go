package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/ports"
	"github.com/samirrijal/parkwatch/internal/pkg/metrics"
)

// AvailabilityService turns became-available events into push messages
// for the users who favorited the lot.
type AvailabilityService struct {
	favorites ports.FavoriteRepository
	notifier  ports.NotificationService
}

// NewAvailabilityService creates a new AvailabilityService.
func NewAvailabilityService(favorites ports.FavoriteRepository, notifier ports.NotificationService) *AvailabilityService {
	return &AvailabilityService{favorites: favorites, notifier: notifier}
}

// Recipients returns the users to notify about lotID.
func (s *AvailabilityService) Recipients(ctx context.Context, lotID string) ([]string, error) {
	users, err := s.favorites.UsersForLot(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("users for lot %s: %w", lotID, err)
	}
	return users, nil
}

// NotifyUser sends the push for one recipient.
func (s *AvailabilityService) NotifyUser(ctx context.Context, userID string, event domain.AvailabilityEvent) error {
	title, body := Message(event)
	if err := s.notifier.SendPush(ctx, userID, title, body); err != nil {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("push to %s: %w", userID, err)
	}
	metrics.NotificationsSent.WithLabelValues("ok").Inc()
	return nil
}

// NotifyAll notifies every recipient and returns how many pushes went out.
// A failed push does not stop the others; the first error is returned.
func (s *AvailabilityService) NotifyAll(ctx context.Context, event domain.AvailabilityEvent) (int, error) {
	users, err := s.Recipients(ctx, event.LotID)
	if err != nil {
		return 0, err
	}
	sent := 0
	var firstErr error
	for _, u := range users {
		if err := s.NotifyUser(ctx, u, event); err != nil {
			slog.Warn("availability push failed", "user_id", u, "lot_id", event.LotID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent++
	}
	return sent, firstErr
}

// Message renders the push title and body for an event.
func Message(event domain.AvailabilityEvent) (title, body string) {
	name := event.LotName
	if name == "" {
		name = event.LotID
	}
	return "Parking available", fmt.Sprintf("%s is now %d%% full. Spaces are likely free.", name, event.OccupancyRate)
}
