package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedRestaurants(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.UpsertRestaurants(context.Background(), []domain.Restaurant{
		{
			ID:           1,
			Name:         "Mission Chinese Food",
			Neighborhood: "Manhattan",
			CuisineType:  "Asian",
			Address:      "171 E Broadway, New York, NY 10002",
			Photograph:   "1",
			LatLng:       domain.LatLng{Lat: 40.713829, Lng: -73.989667},
			OperatingHours: map[string]string{
				"Monday": "5:30 pm - 11:00 pm",
			},
		},
		{ID: 2, Name: "Emily", Neighborhood: "Brooklyn", CuisineType: "Pizza"},
	})
	if err != nil {
		t.Fatalf("seed restaurants: %v", err)
	}
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	for _, table := range []string{"restaurants", "reviews"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	for range 2 {
		s, err := Open(dbPath, nil)
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	}
}

func TestRestaurants_UpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedRestaurants(t, s)

	r, err := s.GetRestaurant(ctx, 1)
	if err != nil {
		t.Fatalf("get restaurant: %v", err)
	}
	if r.Name != "Mission Chinese Food" || r.Neighborhood != "Manhattan" {
		t.Errorf("unexpected restaurant: %+v", r)
	}
	if r.LatLng.Lat != 40.713829 {
		t.Errorf("expected lat 40.713829, got %f", r.LatLng.Lat)
	}
	if r.OperatingHours["Monday"] != "5:30 pm - 11:00 pm" {
		t.Errorf("operating hours not round-tripped: %v", r.OperatingHours)
	}
	if r.CreatedAt.IsZero() || r.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be stamped")
	}

	all, err := s.ListRestaurants(ctx)
	if err != nil {
		t.Fatalf("list restaurants: %v", err)
	}
	if len(all) != 2 || all[0].ID != 1 || all[1].ID != 2 {
		t.Fatalf("expected restaurants 1 and 2 in order, got %+v", all)
	}

	// Upserting again replaces rather than duplicates.
	if _, err := s.UpsertRestaurants(ctx, []domain.Restaurant{{ID: 2, Name: "Emily's"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	n, err := s.CountRestaurants(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 restaurants, got %d", n)
	}
	r, err = s.GetRestaurant(ctx, 2)
	if err != nil {
		t.Fatalf("get restaurant: %v", err)
	}
	if r.Name != "Emily's" {
		t.Errorf("expected updated name, got %q", r.Name)
	}
}

func TestRestaurants_UpsertRejectsMissingID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UpsertRestaurants(context.Background(), []domain.Restaurant{{Name: "nameless"}})
	if !errors.Is(err, domainerrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRestaurants_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRestaurant(context.Background(), 99)
	if !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRestaurants_SetFavorite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedRestaurants(t, s)

	r, err := s.SetFavorite(ctx, 1, true)
	if err != nil {
		t.Fatalf("set favorite: %v", err)
	}
	if !r.IsFavorite.Bool() {
		t.Error("expected favorite to be set")
	}

	r, err = s.SetFavorite(ctx, 1, false)
	if err != nil {
		t.Fatalf("unset favorite: %v", err)
	}
	if r.IsFavorite.Bool() {
		t.Error("expected favorite to be cleared")
	}

	if _, err := s.SetFavorite(ctx, 42, true); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestReviews_CreateListUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedRestaurants(t, s)

	first := &domain.Review{RestaurantID: 1, Name: "Steve", Rating: 4, Comments: "Great"}
	if err := s.CreateReview(ctx, first); err != nil {
		t.Fatalf("create review: %v", err)
	}
	if first.ID <= 0 {
		t.Fatalf("expected positive id, got %d", first.ID)
	}
	second := &domain.Review{RestaurantID: 2, Name: "Ann", Rating: 2, Comments: "Meh"}
	if err := s.CreateReview(ctx, second); err != nil {
		t.Fatalf("create review: %v", err)
	}

	forOne, err := s.ListReviews(ctx, 1)
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if len(forOne) != 1 || forOne[0].ID != first.ID {
		t.Fatalf("expected only review %d, got %+v", first.ID, forOne)
	}

	all, err := s.ListReviews(ctx, 0)
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(all))
	}

	updated, err := s.UpdateReview(ctx, first.ID, domain.ReviewEdit{Name: "Steve", Rating: 5, Comments: "Even better"})
	if err != nil {
		t.Fatalf("update review: %v", err)
	}
	if updated.Rating != 5 || updated.Comments != "Even better" || updated.RestaurantID != 1 {
		t.Errorf("unexpected update result: %+v", updated)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt.Time) {
		t.Error("expected updated_at not before created_at")
	}
}

func TestReviews_CreateForUnknownRestaurant(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateReview(context.Background(), &domain.Review{RestaurantID: 7, Name: "x", Rating: 3, Comments: "y"})
	if !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReviews_RatingCheckConstraint(t *testing.T) {
	s := newTestStore(t)
	seedRestaurants(t, s)
	err := s.CreateReview(context.Background(), &domain.Review{RestaurantID: 1, Name: "x", Rating: 9, Comments: "y"})
	if !errors.Is(err, domainerrors.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestReviews_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetReview(ctx, 1); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Errorf("get: expected not found, got %v", err)
	}
	if _, err := s.UpdateReview(ctx, 1, domain.ReviewEdit{Name: "a", Rating: 1, Comments: "b"}); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Errorf("update: expected not found, got %v", err)
	}
	if err := s.DeleteReview(ctx, 1); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Errorf("delete: expected not found, got %v", err)
	}
}

func TestReviews_DeletedWithRestaurantCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedRestaurants(t, s)

	r := &domain.Review{RestaurantID: 2, Name: "Ann", Rating: 3, Comments: "ok"}
	if err := s.CreateReview(ctx, r); err != nil {
		t.Fatalf("create review: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM restaurants WHERE id = 2`); err != nil {
		t.Fatalf("delete restaurant: %v", err)
	}
	if _, err := s.GetReview(ctx, r.ID); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected cascade delete, got %v", err)
	}
}
