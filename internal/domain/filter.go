package domain

import (
	"fmt"
	"strings"
)

// FilterAll is the select-box value meaning "no filter".
const FilterAll = "all"

// FilterRestaurants returns the restaurants matching cuisine and neighborhood.
// An empty value or "all" disables that filter. Matching compares slugs, so
// "asian fusion" selects "Asian Fusion".
func FilterRestaurants(list []Restaurant, cuisine, neighborhood string) []Restaurant {
	cuisineSlug := filterSlug(cuisine)
	neighborhoodSlug := filterSlug(neighborhood)

	results := make([]Restaurant, 0, len(list))
	for _, r := range list {
		if cuisineSlug != "" && Slugify(r.CuisineType) != cuisineSlug {
			continue
		}
		if neighborhoodSlug != "" && Slugify(r.Neighborhood) != neighborhoodSlug {
			continue
		}
		results = append(results, r)
	}
	return results
}

func filterSlug(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, FilterAll) {
		return ""
	}
	return Slugify(v)
}

// Neighborhoods returns the distinct neighborhoods in first-seen order.
func Neighborhoods(list []Restaurant) []string {
	return unique(list, func(r Restaurant) string { return r.Neighborhood })
}

// Cuisines returns the distinct cuisine types in first-seen order.
func Cuisines(list []Restaurant) []string {
	return unique(list, func(r Restaurant) string { return r.CuisineType })
}

func unique(list []Restaurant, field func(Restaurant) string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, r := range list {
		v := field(r)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// URLForRestaurant returns the detail page URL of a restaurant.
func URLForRestaurant(r Restaurant) string {
	return fmt.Sprintf("./restaurant.html?id=%d", r.ID)
}

// ImageURLForRestaurant returns the default image of a restaurant.
func ImageURLForRestaurant(r Restaurant) string {
	return fmt.Sprintf("/img/%s.webp", photographOrID(r))
}

// DefaultImageWidths are the responsive widths generated by the asset pipeline.
var DefaultImageWidths = []int{400, 600, 800}

// ImageSrcSet returns a srcset attribute value with one JPEG candidate per width.
// "/img/1-400.jpg 400w, /img/1-600.jpg 600w".
func ImageSrcSet(r Restaurant, widths []int) string {
	if len(widths) == 0 {
		widths = DefaultImageWidths
	}
	base := photographOrID(r)
	parts := make([]string, 0, len(widths))
	for _, w := range widths {
		parts = append(parts, fmt.Sprintf("/img/%s-%d.jpg %dw", base, w, w))
	}
	return strings.Join(parts, ", ")
}

func photographOrID(r Restaurant) string {
	if r.Photograph != "" {
		return r.Photograph
	}
	return fmt.Sprintf("%d", r.ID)
}
