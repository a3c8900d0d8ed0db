package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
)

// SeedRestaurant is a restaurant entry of a seed document. Reviews are
// optional and only loaded for restaurants that have none yet.
type SeedRestaurant struct {
	domain.Restaurant
	Reviews []SeedReview `json:"reviews,omitempty"`
}

// SeedReview is a review embedded in a seed restaurant.
type SeedReview struct {
	Name     string `json:"name"`
	Comments string `json:"comments"`
	Rating   int    `json:"rating"`
}

// SeedResult counts what a seed run wrote.
type SeedResult struct {
	Restaurants int
	Reviews     int
}

// ReadSeed decodes a seed document: either {"restaurants": [...]} or a bare
// array of restaurants.
func ReadSeed(r io.Reader) ([]SeedRestaurant, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	data = bytes.TrimSpace(data)

	var list []SeedRestaurant
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &list)
	} else {
		var doc struct {
			Restaurants []SeedRestaurant `json:"restaurants"`
		}
		err = json.Unmarshal(data, &doc)
		list = doc.Restaurants
	}
	if err != nil {
		return nil, domainerrors.Validationf("decode seed: %v", err)
	}
	return list, nil
}

// ReadSeedFile decodes the seed document at path.
func ReadSeedFile(path string) ([]SeedRestaurant, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return ReadSeed(f)
}

// Seed upserts every restaurant and creates the embedded reviews of the
// restaurants that have no reviews yet, so re-running a seed is idempotent.
func (s *Store) Seed(ctx context.Context, seed []SeedRestaurant) (SeedResult, error) {
	restaurants := make([]domain.Restaurant, len(seed))
	for i := range seed {
		restaurants[i] = seed[i].Restaurant
	}
	n, err := s.UpsertRestaurants(ctx, restaurants)
	if err != nil {
		return SeedResult{}, err
	}
	result := SeedResult{Restaurants: n}

	for _, sr := range seed {
		if len(sr.Reviews) == 0 {
			continue
		}
		existing, err := s.ListReviews(ctx, sr.ID)
		if err != nil {
			return result, err
		}
		if len(existing) > 0 {
			continue
		}
		for _, rv := range sr.Reviews {
			review := &domain.Review{
				RestaurantID: sr.ID,
				Name:         rv.Name,
				Rating:       rv.Rating,
				Comments:     rv.Comments,
			}
			if err := review.Validate(); err != nil {
				return result, fmt.Errorf("restaurant %d review by %q: %w", sr.ID, rv.Name, err)
			}
			if err := s.CreateReview(ctx, review); err != nil {
				return result, err
			}
			result.Reviews++
		}
	}

	s.logger.Info("seed applied", "restaurants", result.Restaurants, "reviews", result.Reviews)
	return result, nil
}
