package remote

import (
	"context"
	"net/url"
	"strconv"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
)

// Backend collection paths.
const (
	RestaurantsPath = "/restaurants"
	ReviewsPath     = "/reviews"
)

// reviewCreate is the body of POST /reviews.
type reviewCreate struct {
	Name         string `json:"name"`
	Comments     string `json:"comments"`
	RestaurantID int    `json:"restaurant_id"`
	Rating       int    `json:"rating"`
}

// reviewUpdate is the body of PUT /reviews/{id}.
type reviewUpdate struct {
	Name     string `json:"name"`
	Comments string `json:"comments"`
	Rating   int    `json:"rating"`
}

// Restaurants fetches every restaurant.
func (c *Client) Restaurants(ctx context.Context) ([]domain.Restaurant, error) {
	raw, err := c.FetchCollection(ctx, RestaurantsPath, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]domain.Restaurant]("restaurants", raw)
}

// Restaurant fetches one restaurant.
func (c *Client) Restaurant(ctx context.Context, id int) (*domain.Restaurant, error) {
	raw, err := c.FetchCollection(ctx, RestaurantsPath+"/"+strconv.Itoa(id), nil)
	if err != nil {
		return nil, err
	}
	r, err := decode[domain.Restaurant]("restaurant", raw)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SetFavorite pushes the favorite flag of a restaurant as a query parameter.
func (c *Client) SetFavorite(ctx context.Context, id int, favorite bool) (*domain.Restaurant, error) {
	query := url.Values{"is_favorite": []string{strconv.FormatBool(favorite)}}
	raw, err := c.Update(ctx, RestaurantsPath+"/"+strconv.Itoa(id), nil, query)
	if err != nil {
		return nil, err
	}
	r, err := decode[domain.Restaurant]("favorite", raw)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ReviewsFor fetches the reviews of a restaurant.
func (c *Client) ReviewsFor(ctx context.Context, restaurantID int) ([]domain.Review, error) {
	query := url.Values{"restaurant_id": []string{strconv.Itoa(restaurantID)}}
	raw, err := c.FetchCollection(ctx, ReviewsPath, query)
	if err != nil {
		return nil, err
	}
	return decode[[]domain.Review]("reviews", raw)
}

// CreateReview creates a review and returns it with its backend id.
func (c *Client) CreateReview(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	raw, err := c.Create(ctx, ReviewsPath, reviewCreate{
		RestaurantID: review.RestaurantID,
		Name:         review.Name,
		Rating:       review.Rating,
		Comments:     review.Comments,
	})
	if err != nil {
		return nil, err
	}
	created, err := decode[domain.Review]("create review", raw)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateReview pushes the editable fields of a review.
func (c *Client) UpdateReview(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	raw, err := c.Update(ctx, ReviewsPath+"/"+strconv.Itoa(review.ID), reviewUpdate{
		Name:     review.Name,
		Rating:   review.Rating,
		Comments: review.Comments,
	}, nil)
	if err != nil {
		return nil, err
	}
	updated, err := decode[domain.Review]("update review", raw)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
