package domain

import (
	"slices"
	"strconv"

	"github.com/jpgfer/mws-restaurant-1/internal/validation"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a user review of a restaurant.
//
// A review lives in exactly one of two homes: the reviews collection, keyed by
// the positive id the backend assigned, or the detached collection, keyed by a
// negative client-assigned id until the backend accepts it.
type Review struct {
	Syncable
	Name         string `json:"name" validate:"required,notblank,max=100"`
	Comments     string `json:"comments" validate:"required,notblank,max=5000"`
	ID           int    `json:"id"`
	RestaurantID int    `json:"restaurant_id" validate:"gt=0"`
	Rating       int    `json:"rating" validate:"gte=1,lte=5"`
}

// Key returns the primary key of the review as a store key.
func (r *Review) Key() string {
	return strconv.Itoa(r.ID)
}

// RestaurantKey returns the restaurant id as an index value.
func (r *Review) RestaurantKey() string {
	return strconv.Itoa(r.RestaurantID)
}

// Validate checks the editable fields, returning a validation error with per-field details.
func (r *Review) Validate() error {
	return validation.Default().Validate(r)
}

// ReviewEdit carries the editable fields of a review.
type ReviewEdit struct {
	Name     string
	Comments string
	Rating   int
}

// Edit returns the editable fields of r.
func (r *Review) Edit() ReviewEdit {
	return ReviewEdit{Name: r.Name, Comments: r.Comments, Rating: r.Rating}
}

// Apply merges the editable fields into r and restamps UpdatedAt.
// ID and RestaurantID are preserved.
func (r *Review) Apply(edit ReviewEdit) {
	r.Name = edit.Name
	r.Rating = edit.Rating
	r.Comments = edit.Comments
	r.Touch()
}

// SortReviewsByRecency orders reviews newest first. Ties keep id order.
func SortReviewsByRecency(reviews []Review) {
	slices.SortStableFunc(reviews, func(a, b Review) int {
		if c := b.LastChanged().Compare(a.LastChanged()); c != 0 {
			return c
		}
		return a.ID - b.ID
	})
}
