package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
	"github.com/jpgfer/mws-restaurant-1/internal/validation"
)

type reviewRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=10"`
	Comments string `json:"comments" validate:"required"`
	Rating   int    `json:"rating" validate:"min=1,max=5"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(reviewRequest{Name: "Ana", Comments: "Great noodles", Rating: 4})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       reviewRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing name",
			req:       reviewRequest{Comments: "ok", Rating: 3},
			wantField: "name",
			wantMsg:   "is required",
		},
		{
			name:      "blank name",
			req:       reviewRequest{Name: "  \t", Comments: "ok", Rating: 3},
			wantField: "name",
			wantMsg:   "must not be blank",
		},
		{
			name:      "name too long",
			req:       reviewRequest{Name: "Bartholomew Jr", Comments: "ok", Rating: 3},
			wantField: "name",
			wantMsg:   "must not exceed 10 characters",
		},
		{
			name:      "rating below range",
			req:       reviewRequest{Name: "Ana", Comments: "ok", Rating: 0},
			wantField: "rating",
			wantMsg:   "must be at least 1",
		},
		{
			name:      "rating above range",
			req:       reviewRequest{Name: "Ana", Comments: "ok", Rating: 6},
			wantField: "rating",
			wantMsg:   "must not exceed 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)
			require.ErrorIs(t, err, domainerrors.ErrValidation)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	err := validation.Default().Validate(reviewRequest{Name: "Ana", Rating: 2})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	details := domainErr.Details.(map[string]string)

	assert.Contains(t, details, "comments")
	assert.NotContains(t, details, "Comments")
}

func TestDefault_ReturnsSameInstance(t *testing.T) {
	assert.Same(t, validation.Default(), validation.Default())
}
