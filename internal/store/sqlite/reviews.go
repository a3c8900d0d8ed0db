package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
)

// reviewColumns must match the scan order in scanReview.
const reviewColumns = `id, restaurant_id, name, rating, comments, created_at, updated_at`

func scanReview(sc scanner) (*domain.Review, error) {
	var (
		r         domain.Review
		createdAt string
		updatedAt string
	)
	err := sc.Scan(
		&r.ID,
		&r.RestaurantID,
		&r.Name,
		&r.Rating,
		&r.Comments,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if r.CreatedAt.Time, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt.Time, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReviews returns the reviews of a restaurant ordered by id.
// A restaurantID of 0 lists every review.
func (s *Store) ListReviews(ctx context.Context, restaurantID int) ([]domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews`
	var args []any
	if restaurantID != 0 {
		query += ` WHERE restaurant_id = ?`
		args = append(args, restaurantID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "list reviews")
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, storageErr(err, "scan review")
		}
		reviews = append(reviews, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "list reviews")
	}
	return reviews, nil
}

// GetReview retrieves a review by id.
// Returns a not-found error if it does not exist.
func (s *Store) GetReview(ctx context.Context, id int) (*domain.Review, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, id)

	r, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NotFoundf("review %d not found", id)
	}
	if err != nil {
		return nil, storageErr(err, "get review %d", id)
	}
	return r, nil
}

// CreateReview inserts r, assigning its id and timestamps.
// Returns a not-found error when the restaurant does not exist.
func (s *Store) CreateReview(ctx context.Context, r *domain.Review) error {
	now := domain.Now()
	r.CreatedAt, r.UpdatedAt = now, now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (restaurant_id, name, rating, comments, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.RestaurantID,
		r.Name,
		r.Rating,
		r.Comments,
		formatTime(now.Time),
		formatTime(now.Time),
	)
	if isForeignKeyViolation(err) {
		return domainerrors.NotFoundf("restaurant %d not found", r.RestaurantID)
	}
	if err != nil {
		return storageErr(err, "create review")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return storageErr(err, "create review")
	}
	r.ID = int(id)
	return nil
}

// UpdateReview applies edit to review id and returns the stored result.
func (s *Store) UpdateReview(ctx context.Context, id int, edit domain.ReviewEdit) (*domain.Review, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reviews SET name = ?, rating = ?, comments = ?, updated_at = ?
		WHERE id = ?`,
		edit.Name,
		edit.Rating,
		edit.Comments,
		formatTime(domain.Now().Time),
		id,
	)
	if err != nil {
		return nil, storageErr(err, "update review %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, storageErr(err, "update review %d", id)
	}
	if n == 0 {
		return nil, domainerrors.NotFoundf("review %d not found", id)
	}
	return s.GetReview(ctx, id)
}

// DeleteReview removes a review. Returns a not-found error if it does not exist.
func (s *Store) DeleteReview(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return storageErr(err, "delete review %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(err, "delete review %d", id)
	}
	if n == 0 {
		return domainerrors.NotFoundf("review %d not found", id)
	}
	return nil
}
