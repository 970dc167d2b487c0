package ports

import (
	"context"

	"github.com/samirrijal/parkwatch/internal/core/domain"
)

// ParkingLotRepository is the backend data source for parking lots.
type ParkingLotRepository interface {
	Upsert(ctx context.Context, lot *domain.ParkingLot) error
	UpsertBatch(ctx context.Context, lots []domain.ParkingLot) error
	GetByID(ctx context.Context, id string) (*domain.ParkingLot, error)
	List(ctx context.Context) ([]domain.ParkingLot, error)
	// FindNearby returns lots within radiusMeters, closest first, with Distance set.
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.ParkingLot, error)
	SaveOccupancy(ctx context.Context, lots []domain.ParkingLot) error
}

// FavoriteRepository reads the favorites users keep in their settings.
type FavoriteRepository interface {
	// FavoritedLotIDs returns every lot id favorited by at least one user.
	FavoritedLotIDs(ctx context.Context) ([]string, error)
	// UsersForLot returns the ids of users who favorited the lot.
	UsersForLot(ctx context.Context, lotID string) ([]string, error)
}
