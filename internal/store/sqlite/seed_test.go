package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"

	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
)

const seedDocument = `{
  "restaurants": [
    {
      "id": 1,
      "name": "Mission Chinese Food",
      "neighborhood": "Manhattan",
      "cuisine_type": "Asian",
      "latlng": {"lat": 40.713829, "lng": -73.989667},
      "operating_hours": {"Monday": "5:30 pm - 11:00 pm"},
      "reviews": [
        {"name": "Steve", "date": "October 26, 2016", "rating": 4, "comments": "Mission Chinese Food has grown up."},
        {"name": "Morgan", "date": "October 26, 2016", "rating": 4, "comments": "This place is a blast."}
      ]
    },
    {"id": 2, "name": "Emily", "neighborhood": "Brooklyn", "cuisine_type": "Pizza"}
  ]
}`

func TestReadSeed_Document(t *testing.T) {
	seed, err := ReadSeed(strings.NewReader(seedDocument))
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	if len(seed) != 2 {
		t.Fatalf("expected 2 restaurants, got %d", len(seed))
	}
	if seed[0].LatLng.Lat != 40.713829 {
		t.Errorf("expected lat to decode, got %v", seed[0].LatLng.Lat)
	}
	if len(seed[0].Reviews) != 2 {
		t.Errorf("expected 2 embedded reviews, got %d", len(seed[0].Reviews))
	}
}

func TestReadSeed_BareArray(t *testing.T) {
	seed, err := ReadSeed(strings.NewReader(` [{"id": 3, "name": "Kang Ho Dong Baekjeong"}]`))
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	if len(seed) != 1 || seed[0].ID != 3 {
		t.Fatalf("unexpected seed: %+v", seed)
	}
}

func TestReadSeed_Invalid(t *testing.T) {
	_, err := ReadSeed(strings.NewReader(`{"restaurants": 7}`))
	if !errors.Is(err, domainerrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSeed_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed, err := ReadSeed(strings.NewReader(seedDocument))
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}

	for run := range 2 {
		result, err := s.Seed(ctx, seed)
		if err != nil {
			t.Fatalf("seed run %d: %v", run, err)
		}
		if result.Restaurants != 2 {
			t.Errorf("run %d: expected 2 restaurants, got %d", run, result.Restaurants)
		}
		wantReviews := 2
		if run > 0 {
			wantReviews = 0
		}
		if result.Reviews != wantReviews {
			t.Errorf("run %d: expected %d reviews, got %d", run, wantReviews, result.Reviews)
		}
	}

	reviews, err := s.ListReviews(ctx, 1)
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if len(reviews) != 2 {
		t.Errorf("expected 2 stored reviews, got %d", len(reviews))
	}

	count, err := s.CountRestaurants(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 restaurants, got %d", count)
	}
}

func TestSeed_RejectsInvalidReview(t *testing.T) {
	s := newTestStore(t)

	seed, err := ReadSeed(strings.NewReader(`[{"id": 1, "name": "A", "reviews": [{"name": "x", "rating": 9, "comments": "y"}]}]`))
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	_, err = s.Seed(context.Background(), seed)
	if !errors.Is(err, domainerrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
