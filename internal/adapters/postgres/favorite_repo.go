package postgres

import "context"

// FavoriteRepo implements ports.FavoriteRepository with pgx.
type FavoriteRepo struct {
	db *DB
}

// NewFavoriteRepo creates a new FavoriteRepo.
func NewFavoriteRepo(db *DB) *FavoriteRepo {
	return &FavoriteRepo{db: db}
}

// FavoritedLotIDs returns every lot favorited by at least one user.
func (r *FavoriteRepo) FavoritedLotIDs(ctx context.Context) ([]string, error) {
	return r.strings(ctx, `SELECT DISTINCT lot_id FROM user_favorites ORDER BY lot_id`)
}

// UsersForLot returns the users who favorited lotID.
func (r *FavoriteRepo) UsersForLot(ctx context.Context, lotID string) ([]string, error) {
	return r.strings(ctx, `SELECT user_id FROM user_favorites WHERE lot_id = $1 ORDER BY user_id`, lotID)
}

func (r *FavoriteRepo) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
