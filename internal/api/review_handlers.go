package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	"github.com/jpgfer/mws-restaurant-1/internal/validation"
)

func (s *Server) registerReviewRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listReviews",
		Method:      http.MethodGet,
		Path:        "/reviews",
		Summary:     "List reviews",
		Description: "Returns the reviews of one restaurant, or every review without restaurant_id",
		Tags:        []string{"Reviews"},
	}, s.handleListReviews)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createReview",
		Method:        http.MethodPost,
		Path:          "/reviews",
		Summary:       "Create review",
		Description:   "Creates a review and assigns its id",
		Tags:          []string{"Reviews"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateReview)

	huma.Register(s.api, huma.Operation{
		OperationID: "getReview",
		Method:      http.MethodGet,
		Path:        "/reviews/{id}",
		Summary:     "Get review",
		Description: "Returns a review by ID",
		Tags:        []string{"Reviews"},
	}, s.handleGetReview)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateReview",
		Method:      http.MethodPut,
		Path:        "/reviews/{id}",
		Summary:     "Update review",
		Description: "Replaces the name, rating and comments of a review",
		Tags:        []string{"Reviews"},
	}, s.handleUpdateReview)
}

// === DTOs ===

// ReviewResponse contains review data in API responses.
type ReviewResponse struct {
	ID           int       `json:"id" doc:"Review ID"`
	RestaurantID int       `json:"restaurant_id" doc:"Reviewed restaurant"`
	Name         string    `json:"name" doc:"Reviewer name"`
	Rating       int       `json:"rating" doc:"Rating from 1 to 5"`
	Comments     string    `json:"comments" doc:"Review text"`
	CreatedAt    time.Time `json:"createdAt" doc:"Creation time"`
	UpdatedAt    time.Time `json:"updatedAt" doc:"Last update time"`
}

func reviewResponse(r *domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:           r.ID,
		RestaurantID: r.RestaurantID,
		Name:         r.Name,
		Rating:       r.Rating,
		Comments:     r.Comments,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
	}
}

// ListReviewsInput contains parameters for listing reviews.
type ListReviewsInput struct {
	RestaurantID int `query:"restaurant_id" minimum:"0" doc:"Restaurant to list reviews for; 0 or absent lists all"`
}

// ListReviewsOutput wraps the review list for Huma.
type ListReviewsOutput struct {
	Body []ReviewResponse
}

// CreateReviewRequest is the request body for creating a review.
type CreateReviewRequest struct {
	RestaurantID int    `json:"restaurant_id" validate:"gt=0" doc:"Reviewed restaurant"`
	Name         string `json:"name" validate:"required,notblank,max=100" doc:"Reviewer name"`
	Rating       int    `json:"rating" validate:"gte=1,lte=5" doc:"Rating from 1 to 5"`
	Comments     string `json:"comments" validate:"required,notblank,max=5000" doc:"Review text"`
}

// CreateReviewInput wraps the create request for Huma.
type CreateReviewInput struct {
	Body CreateReviewRequest
}

// GetReviewInput contains parameters for getting a review.
type GetReviewInput struct {
	ID int `path:"id" minimum:"1" doc:"Review ID"`
}

// UpdateReviewRequest is the request body for updating a review.
type UpdateReviewRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=100" doc:"Reviewer name"`
	Rating   int    `json:"rating" validate:"gte=1,lte=5" doc:"Rating from 1 to 5"`
	Comments string `json:"comments" validate:"required,notblank,max=5000" doc:"Review text"`
}

// UpdateReviewInput contains parameters for updating a review.
type UpdateReviewInput struct {
	ID   int `path:"id" minimum:"1" doc:"Review ID"`
	Body UpdateReviewRequest
}

// ReviewOutput wraps a review for Huma.
type ReviewOutput struct {
	Body ReviewResponse
}

// === Handlers ===

func (s *Server) handleListReviews(ctx context.Context, input *ListReviewsInput) (*ListReviewsOutput, error) {
	reviews, err := s.store.ListReviews(ctx, input.RestaurantID)
	if err != nil {
		return nil, err
	}

	resp := make([]ReviewResponse, len(reviews))
	for i := range reviews {
		resp[i] = reviewResponse(&reviews[i])
	}
	return &ListReviewsOutput{Body: resp}, nil
}

func (s *Server) handleCreateReview(ctx context.Context, input *CreateReviewInput) (*ReviewOutput, error) {
	if err := validation.Default().Validate(&input.Body); err != nil {
		return nil, err
	}

	review := &domain.Review{
		RestaurantID: input.Body.RestaurantID,
		Name:         input.Body.Name,
		Rating:       input.Body.Rating,
		Comments:     input.Body.Comments,
	}
	if err := s.store.CreateReview(ctx, review); err != nil {
		return nil, err
	}

	s.logger.Info("review created", "review_id", review.ID, "restaurant_id", review.RestaurantID)
	return &ReviewOutput{Body: reviewResponse(review)}, nil
}

func (s *Server) handleGetReview(ctx context.Context, input *GetReviewInput) (*ReviewOutput, error) {
	review, err := s.store.GetReview(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ReviewOutput{Body: reviewResponse(review)}, nil
}

func (s *Server) handleUpdateReview(ctx context.Context, input *UpdateReviewInput) (*ReviewOutput, error) {
	if err := validation.Default().Validate(&input.Body); err != nil {
		return nil, err
	}

	review, err := s.store.UpdateReview(ctx, input.ID, domain.ReviewEdit{
		Name:     input.Body.Name,
		Rating:   input.Body.Rating,
		Comments: input.Body.Comments,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("review updated", "review_id", review.ID)
	return &ReviewOutput{Body: reviewResponse(review)}, nil
}
