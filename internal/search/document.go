// Package search provides full-text search over restaurants using Bleve.
// Names, cuisines, neighborhoods and addresses are searchable, with exact
// keyword filters on cuisine and neighborhood slugs.
package search

import (
	"strconv"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
)

// RestaurantDocument is the indexed form of a restaurant.
type RestaurantDocument struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	CuisineType      string `json:"cuisine_type"`
	Neighborhood     string `json:"neighborhood"`
	Address          string `json:"address"`
	CuisineSlug      string `json:"cuisine_slug"`
	NeighborhoodSlug string `json:"neighborhood_slug"`
	UpdatedAt        int64  `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names.
// This ensures field names match the Bleve index mapping.
func (d *RestaurantDocument) ToMap() map[string]any {
	return map[string]any{
		"id":                d.ID,
		"name":              d.Name,
		"cuisine_type":      d.CuisineType,
		"neighborhood":      d.Neighborhood,
		"address":           d.Address,
		"cuisine_slug":      d.CuisineSlug,
		"neighborhood_slug": d.NeighborhoodSlug,
		"updated_at":        d.UpdatedAt,
	}
}

// RestaurantToDocument converts a restaurant to its search document.
func RestaurantToDocument(r *domain.Restaurant) *RestaurantDocument {
	return &RestaurantDocument{
		ID:               strconv.Itoa(r.ID),
		Name:             r.Name,
		CuisineType:      r.CuisineType,
		Neighborhood:     r.Neighborhood,
		Address:          r.Address,
		CuisineSlug:      domain.Slugify(r.CuisineType),
		NeighborhoodSlug: domain.Slugify(r.Neighborhood),
		UpdatedAt:        r.UpdatedAt.Millis(),
	}
}
