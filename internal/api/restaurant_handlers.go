package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
)

func (s *Server) registerRestaurantRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listRestaurants",
		Method:      http.MethodGet,
		Path:        "/restaurants",
		Summary:     "List restaurants",
		Description: "Returns every restaurant ordered by id",
		Tags:        []string{"Restaurants"},
	}, s.handleListRestaurants)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRestaurant",
		Method:      http.MethodGet,
		Path:        "/restaurants/{id}",
		Summary:     "Get restaurant",
		Description: "Returns a restaurant by ID",
		Tags:        []string{"Restaurants"},
	}, s.handleGetRestaurant)

	huma.Register(s.api, huma.Operation{
		OperationID: "setFavorite",
		Method:      http.MethodPut,
		Path:        "/restaurants/{id}",
		Summary:     "Set favorite",
		Description: "Sets the favorite flag of a restaurant from the is_favorite query parameter",
		Tags:        []string{"Restaurants"},
	}, s.handleSetFavorite)
}

// === DTOs ===

// LatLngResponse is a map coordinate.
type LatLngResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RestaurantResponse contains restaurant data in API responses.
type RestaurantResponse struct {
	ID             int               `json:"id" doc:"Restaurant ID"`
	Name           string            `json:"name" doc:"Restaurant name"`
	Neighborhood   string            `json:"neighborhood" doc:"Neighborhood"`
	Photograph     string            `json:"photograph,omitempty" doc:"Photograph base name"`
	Address        string            `json:"address" doc:"Street address"`
	LatLng         LatLngResponse    `json:"latlng" doc:"Map coordinates"`
	CuisineType    string            `json:"cuisine_type" doc:"Cuisine"`
	OperatingHours map[string]string `json:"operating_hours,omitempty" doc:"Opening hours by weekday"`
	IsFavorite     bool              `json:"is_favorite" doc:"Whether the restaurant is a favorite"`
	CreatedAt      time.Time         `json:"createdAt" doc:"Creation time"`
	UpdatedAt      time.Time         `json:"updatedAt" doc:"Last update time"`
}

func restaurantResponse(r *domain.Restaurant) RestaurantResponse {
	return RestaurantResponse{
		ID:             r.ID,
		Name:           r.Name,
		Neighborhood:   r.Neighborhood,
		Photograph:     r.Photograph,
		Address:        r.Address,
		LatLng:         LatLngResponse{Lat: r.LatLng.Lat, Lng: r.LatLng.Lng},
		CuisineType:    r.CuisineType,
		OperatingHours: r.OperatingHours,
		IsFavorite:     r.IsFavorite.Bool(),
		CreatedAt:      r.CreatedAt.Time,
		UpdatedAt:      r.UpdatedAt.Time,
	}
}

// ListRestaurantsOutput wraps the restaurant list for Huma.
type ListRestaurantsOutput struct {
	Body []RestaurantResponse
}

// GetRestaurantInput contains parameters for getting a restaurant.
type GetRestaurantInput struct {
	ID int `path:"id" minimum:"1" doc:"Restaurant ID"`
}

// SetFavoriteInput contains parameters for setting the favorite flag.
type SetFavoriteInput struct {
	ID         int  `path:"id" minimum:"1" doc:"Restaurant ID"`
	IsFavorite bool `query:"is_favorite" required:"true" doc:"New favorite flag"`
}

// RestaurantOutput wraps a restaurant for Huma.
type RestaurantOutput struct {
	Body RestaurantResponse
}

// === Handlers ===

func (s *Server) handleListRestaurants(ctx context.Context, _ *struct{}) (*ListRestaurantsOutput, error) {
	restaurants, err := s.store.ListRestaurants(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]RestaurantResponse, len(restaurants))
	for i := range restaurants {
		resp[i] = restaurantResponse(&restaurants[i])
	}
	return &ListRestaurantsOutput{Body: resp}, nil
}

func (s *Server) handleGetRestaurant(ctx context.Context, input *GetRestaurantInput) (*RestaurantOutput, error) {
	r, err := s.store.GetRestaurant(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &RestaurantOutput{Body: restaurantResponse(r)}, nil
}

func (s *Server) handleSetFavorite(ctx context.Context, input *SetFavoriteInput) (*RestaurantOutput, error) {
	r, err := s.store.SetFavorite(ctx, input.ID, input.IsFavorite)
	if err != nil {
		return nil, err
	}
	s.logger.Info("favorite updated", "restaurant_id", r.ID, "is_favorite", input.IsFavorite)
	return &RestaurantOutput{Body: restaurantResponse(r)}, nil
}
