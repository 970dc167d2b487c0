package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/parkwatch/internal/core/domain"
)

// LotRepo implements ports.ParkingLotRepository with pgx.
type LotRepo struct {
	db *DB
}

// NewLotRepo creates a new LotRepo.
func NewLotRepo(db *DB) *LotRepo {
	return &LotRepo{db: db}
}

const upsertLotSQL = `
	INSERT INTO parking_lots (id, name, address, location, capacity, occupancy, updated_at)
	VALUES ($1, $2, NULLIF($3, ''), ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6, $7, now())
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, address = EXCLUDED.address,
	    location = EXCLUDED.location, capacity = EXCLUDED.capacity,
	    occupancy = EXCLUDED.occupancy, updated_at = now()
`

const selectLotSQL = `
	SELECT id, name, COALESCE(address, ''),
	       ST_Y(location::geometry) as lat,
	       ST_X(location::geometry) as lon,
	       capacity, occupancy, updated_at
	FROM parking_lots`

// Upsert inserts or updates a single lot.
func (r *LotRepo) Upsert(ctx context.Context, l *domain.ParkingLot) error {
	_, err := r.db.Pool.Exec(ctx, upsertLotSQL,
		l.ID, l.Name, l.Address, l.Location.Lon, l.Location.Lat, l.Capacity, l.Occupancy)
	if err != nil {
		return fmt.Errorf("upsert lot %s: %w", l.ID, err)
	}
	return nil
}

// UpsertBatch inserts many lots using pgx.Batch.
func (r *LotRepo) UpsertBatch(ctx context.Context, lots []domain.ParkingLot) error {
	batch := &pgx.Batch{}
	for _, l := range lots {
		batch.Queue(upsertLotSQL,
			l.ID, l.Name, l.Address, l.Location.Lon, l.Location.Lat, l.Capacity, l.Occupancy)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range lots {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a lot by id.
func (r *LotRepo) GetByID(ctx context.Context, id string) (*domain.ParkingLot, error) {
	var l domain.ParkingLot
	err := r.db.Pool.QueryRow(ctx, selectLotSQL+` WHERE id = $1`, id).Scan(
		&l.ID, &l.Name, &l.Address,
		&l.Location.Lat, &l.Location.Lon,
		&l.Capacity, &l.Occupancy, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// List returns every lot ordered by id.
func (r *LotRepo) List(ctx context.Context) ([]domain.ParkingLot, error) {
	rows, err := r.db.Pool.Query(ctx, selectLotSQL+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []domain.ParkingLot
	for rows.Next() {
		var l domain.ParkingLot
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Address,
			&l.Location.Lat, &l.Location.Lon,
			&l.Capacity, &l.Occupancy, &l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

// FindNearby returns lots within radiusMeters using PostGIS ST_DWithin,
// closest first, with Distance set.
func (r *LotRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.ParkingLot, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, COALESCE(address, ''),
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       capacity, occupancy, updated_at,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) as distance
		FROM parking_lots
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, lon, lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []domain.ParkingLot
	for rows.Next() {
		var l domain.ParkingLot
		var dist float64
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Address,
			&l.Location.Lat, &l.Location.Lon,
			&l.Capacity, &l.Occupancy, &l.UpdatedAt,
			&dist,
		); err != nil {
			return nil, err
		}
		l.Distance = &dist
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

// SaveOccupancy writes the current occupancy of each lot back to the table.
func (r *LotRepo) SaveOccupancy(ctx context.Context, lots []domain.ParkingLot) error {
	batch := &pgx.Batch{}
	for _, l := range lots {
		batch.Queue(`UPDATE parking_lots SET occupancy = $2, updated_at = now() WHERE id = $1`, l.ID, l.Occupancy)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range lots {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save occupancy: %w", err)
		}
	}
	return nil
}
