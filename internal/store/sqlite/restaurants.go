package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
)

// restaurantColumns must match the scan order in scanRestaurant.
const restaurantColumns = `id, name, neighborhood, photograph, address, lat, lng,
	cuisine_type, operating_hours, is_favorite, created_at, updated_at`

func scanRestaurant(sc scanner) (*domain.Restaurant, error) {
	var (
		r         domain.Restaurant
		hours     string
		favorite  bool
		createdAt string
		updatedAt string
	)
	err := sc.Scan(
		&r.ID,
		&r.Name,
		&r.Neighborhood,
		&r.Photograph,
		&r.Address,
		&r.LatLng.Lat,
		&r.LatLng.Lng,
		&r.CuisineType,
		&hours,
		&favorite,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if hours != "" && hours != "{}" {
		if err := json.Unmarshal([]byte(hours), &r.OperatingHours); err != nil {
			return nil, fmt.Errorf("restaurant %d operating hours: %w", r.ID, err)
		}
	}
	r.IsFavorite = domain.Flag(favorite)
	if r.CreatedAt.Time, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt.Time, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRestaurants returns every restaurant ordered by id.
func (s *Store) ListRestaurants(ctx context.Context) ([]domain.Restaurant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants ORDER BY id`)
	if err != nil {
		return nil, storageErr(err, "list restaurants")
	}
	defer rows.Close()

	restaurants := []domain.Restaurant{}
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, storageErr(err, "scan restaurant")
		}
		restaurants = append(restaurants, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "list restaurants")
	}
	return restaurants, nil
}

// GetRestaurant retrieves a restaurant by id.
// Returns a not-found error if it does not exist.
func (s *Store) GetRestaurant(ctx context.Context, id int) (*domain.Restaurant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants WHERE id = ?`, id)

	r, err := scanRestaurant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NotFoundf("restaurant %d not found", id)
	}
	if err != nil {
		return nil, storageErr(err, "get restaurant %d", id)
	}
	return r, nil
}

// UpsertRestaurants inserts or replaces restaurants in one transaction.
// Missing timestamps are stamped with the current time.
func (s *Store) UpsertRestaurants(ctx context.Context, restaurants []domain.Restaurant) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr(err, "begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO restaurants (`+restaurantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			neighborhood = excluded.neighborhood,
			photograph = excluded.photograph,
			address = excluded.address,
			lat = excluded.lat,
			lng = excluded.lng,
			cuisine_type = excluded.cuisine_type,
			operating_hours = excluded.operating_hours,
			is_favorite = excluded.is_favorite,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, storageErr(err, "prepare upsert")
	}
	defer stmt.Close()

	for i := range restaurants {
		r := &restaurants[i]
		if r.ID <= 0 {
			return 0, domainerrors.Validationf("restaurant %q has no id", r.Name)
		}
		r.StampIfMissing()

		hours := []byte("{}")
		if len(r.OperatingHours) > 0 {
			if hours, err = json.Marshal(r.OperatingHours); err != nil {
				return 0, fmt.Errorf("restaurant %d operating hours: %w", r.ID, err)
			}
		}
		_, err := stmt.ExecContext(ctx,
			r.ID,
			r.Name,
			r.Neighborhood,
			r.Photograph,
			r.Address,
			r.LatLng.Lat,
			r.LatLng.Lng,
			r.CuisineType,
			string(hours),
			r.IsFavorite.Bool(),
			formatTime(r.CreatedAt.Time),
			formatTime(r.UpdatedAt.Time),
		)
		if err != nil {
			return 0, storageErr(err, "upsert restaurant %d", r.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr(err, "commit upsert")
	}
	s.logger.Info("restaurants upserted", "count", len(restaurants))
	return len(restaurants), nil
}

// SetFavorite sets the favorite flag and returns the updated restaurant.
// Setting the current value still bumps updated_at.
func (s *Store) SetFavorite(ctx context.Context, id int, favorite bool) (*domain.Restaurant, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE restaurants SET is_favorite = ?, updated_at = ? WHERE id = ?`,
		favorite, formatTime(domain.Now().Time), id)
	if err != nil {
		return nil, storageErr(err, "set favorite %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, storageErr(err, "set favorite %d", id)
	}
	if n == 0 {
		return nil, domainerrors.NotFoundf("restaurant %d not found", id)
	}
	return s.GetRestaurant(ctx, id)
}

// CountRestaurants returns the number of restaurants.
func (s *Store) CountRestaurants(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM restaurants`).Scan(&n); err != nil {
		return 0, storageErr(err, "count restaurants")
	}
	return n, nil
}
