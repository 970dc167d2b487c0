package ports

import (
	"context"

	"github.com/samirrijal/parkwatch/internal/core/domain"
)

// EventPublisher publishes simulator output to a message broker.
type EventPublisher interface {
	PublishSnapshot(ctx context.Context, snap *domain.OccupancySnapshot) error
	PublishAvailability(ctx context.Context, event *domain.AvailabilityEvent) error
}

// EventSubscriber subscribes to simulator output from a message broker.
type EventSubscriber interface {
	SubscribeAvailability(ctx context.Context, handler func(ctx context.Context, event *domain.AvailabilityEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// NotificationService sends notifications (push, email, etc.).
type NotificationService interface {
	SendPush(ctx context.Context, userID, title, body string) error
}
