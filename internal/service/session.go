package service

import (
	"context"
	"sync"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
)

// Session is the state of one restaurant detail view.
// The restaurant is fetched once per session and reused by later calls.
type Session struct {
	coord        *Coordinator
	restaurant   *domain.Restaurant
	restaurantID int
	mu           sync.Mutex
}

// NewSession creates a session for one restaurant.
func NewSession(coord *Coordinator, restaurantID int) *Session {
	return &Session{coord: coord, restaurantID: restaurantID}
}

// RestaurantID returns the restaurant the session is about.
func (s *Session) RestaurantID() int {
	return s.restaurantID
}

// Restaurant returns the session's restaurant, fetching it on first use.
func (s *Session) Restaurant(ctx context.Context) (*domain.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.restaurant != nil {
		return s.restaurant, nil
	}
	r, err := s.coord.GetByID(ctx, s.restaurantID)
	if err != nil {
		return nil, err
	}
	s.restaurant = r
	return r, nil
}

// Reviews returns the restaurant's reviews, newest first.
func (s *Session) Reviews(ctx context.Context) ([]domain.Review, error) {
	reviews, err := s.coord.GetReviewsFor(ctx, s.restaurantID)
	if err != nil {
		return nil, err
	}
	domain.SortReviewsByRecency(reviews)
	return reviews, nil
}

// AddReview adds a review to the session's restaurant.
func (s *Session) AddReview(ctx context.Context, name string, rating int, comments string) (*domain.Review, error) {
	return s.coord.AddReview(ctx, s.restaurantID, name, rating, comments)
}

// SetFavorite toggles the favorite flag and refreshes the memoized restaurant.
func (s *Session) SetFavorite(ctx context.Context, favorite bool) (*domain.Restaurant, error) {
	r, err := s.coord.SetFavorite(ctx, s.restaurantID, favorite)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.restaurant = r
	s.mu.Unlock()
	return r, nil
}
