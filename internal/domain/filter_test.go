package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleRestaurants() []Restaurant {
	return []Restaurant{
		{ID: 1, Name: "Mission Chinese Food", Neighborhood: "Manhattan", CuisineType: "Asian", Photograph: "1"},
		{ID: 2, Name: "Emily", Neighborhood: "Brooklyn", CuisineType: "Pizza", Photograph: "2"},
		{ID: 3, Name: "Kang Ho Dong Baekjeong", Neighborhood: "Manhattan", CuisineType: "Asian"},
		{ID: 4, Name: "Katz's Delicatessen", Neighborhood: "Manhattan", CuisineType: "American"},
		{ID: 5, Name: "Roberta's Pizza", Neighborhood: "Brooklyn", CuisineType: "Pizza"},
		{ID: 6, Name: "Casa Enrique", Neighborhood: "Queens", CuisineType: "Mexican"},
	}
}

func TestFilterRestaurants(t *testing.T) {
	list := sampleRestaurants()

	tests := []struct {
		name         string
		cuisine      string
		neighborhood string
		want         []int
	}{
		{"no filters", "all", "all", []int{1, 2, 3, 4, 5, 6}},
		{"empty means all", "", "", []int{1, 2, 3, 4, 5, 6}},
		{"cuisine only", "Asian", "all", []int{1, 3}},
		{"neighborhood only", "all", "Brooklyn", []int{2, 5}},
		{"both", "Pizza", "Brooklyn", []int{2, 5}},
		{"slug matching", "  pizza ", "BROOKLYN", []int{2, 5}},
		{"no match", "Asian", "Queens", []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterRestaurants(list, tt.cuisine, tt.neighborhood)
			ids := make([]int, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestNeighborhoodsAndCuisines(t *testing.T) {
	list := sampleRestaurants()

	assert.Equal(t, []string{"Manhattan", "Brooklyn", "Queens"}, Neighborhoods(list))
	assert.Equal(t, []string{"Asian", "Pizza", "American", "Mexican"}, Cuisines(list))
	assert.Empty(t, Neighborhoods(nil))
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Manhattan":      "manhattan",
		"Asian Fusion":   "asian-fusion",
		"Café Olé":       "cafe-ole",
		"  --Queens--  ": "queens",
		"Katz's Deli":    "katz-s-deli",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestRestaurantURLs(t *testing.T) {
	r := Restaurant{ID: 3, Photograph: "3"}

	assert.Equal(t, "./restaurant.html?id=3", URLForRestaurant(r))
	assert.Equal(t, "/img/3.webp", ImageURLForRestaurant(r))
	assert.Equal(t, "/img/3-400.jpg 400w, /img/3-600.jpg 600w, /img/3-800.jpg 800w", ImageSrcSet(r, nil))
	assert.Equal(t, "/img/3-200.jpg 200w", ImageSrcSet(r, []int{200}))

	// Missing photograph falls back to the id.
	assert.Equal(t, "/img/10.webp", ImageURLForRestaurant(Restaurant{ID: 10}))
}
