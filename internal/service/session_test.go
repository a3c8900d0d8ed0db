package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	"github.com/jpgfer/mws-restaurant-1/internal/service"
)

func TestSession_FetchesRestaurantOnce(t *testing.T) {
	h := setupCoordinator(t, true)
	ctx := context.Background()
	session := service.NewSession(h.coord, 1)

	first, err := session.Restaurant(ctx)
	require.NoError(t, err)
	second, err := session.Restaurant(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, h.backend.count("GET", "/restaurants/1"))
	assert.Equal(t, 1, session.RestaurantID())
}

func TestSession_ReviewsNewestFirst(t *testing.T) {
	h := setupCoordinator(t, true)
	ctx := context.Background()

	older := domain.Review{ID: 10, RestaurantID: 1, Name: "Cy", Rating: 3, Comments: "Old"}
	older.UpdatedAt = domain.Timestamp{Time: time.Now().Add(-48 * time.Hour).UTC()}
	newer := domain.Review{ID: 11, RestaurantID: 1, Name: "Di", Rating: 4, Comments: "New"}
	newer.UpdatedAt = domain.Timestamp{Time: time.Now().Add(-time.Hour).UTC()}
	h.backend.addReview(older)
	h.backend.addReview(newer)

	session := service.NewSession(h.coord, 1)
	added, err := session.AddReview(ctx, "Ana", 5, "Just now")
	require.NoError(t, err)

	reviews, err := session.Reviews(ctx)
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	assert.Equal(t, added.ID, reviews[0].ID)
	assert.Equal(t, 11, reviews[1].ID)
	assert.Equal(t, 10, reviews[2].ID)
}

func TestSession_SetFavoriteRefreshesRestaurant(t *testing.T) {
	h := setupCoordinator(t, false)
	ctx := context.Background()

	h.flag.SetOnline()
	session := service.NewSession(h.coord, 2)
	r, err := session.Restaurant(ctx)
	require.NoError(t, err)
	assert.False(t, r.IsFavorite.Bool())

	h.flag.SetOffline()
	_, err = session.SetFavorite(ctx, true)
	require.NoError(t, err)

	r, err = session.Restaurant(ctx)
	require.NoError(t, err)
	assert.True(t, r.IsFavorite.Bool())
	assert.Equal(t, domain.SyncStatusDirty, r.SyncStatus)
}

func TestSession_UnknownRestaurant(t *testing.T) {
	h := setupCoordinator(t, true)
	session := service.NewSession(h.coord, 404)

	_, err := session.Restaurant(context.Background())
	require.Error(t, err)

	// Failures are not memoized
	assert.Equal(t, 1, h.backend.count("GET", "/restaurants/404"))
	_, err = session.Restaurant(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, h.backend.count("GET", "/restaurants/404"))
}
