package service_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
	"github.com/jpgfer/mws-restaurant-1/internal/sse"
)

// requireExclusiveHome asserts the review id is stored in exactly one home.
func requireExclusiveHome(t *testing.T, h *harness, id int) {
	t.Helper()
	ctx := context.Background()

	_, errSynced := h.store.Reviews.Get(ctx, strconv.Itoa(id))
	_, errDetached := h.store.DetachedReviews.Get(ctx, strconv.Itoa(id))
	inSynced := errSynced == nil
	inDetached := errDetached == nil
	require.True(t, inSynced != inDetached, "review %d: in reviews=%v, in detached=%v", id, inSynced, inDetached)
}

func TestAddReview_OfflineIsVisibleImmediately(t *testing.T) {
	h := setupCoordinator(t, false)
	ctx := context.Background()

	review, err := h.coord.AddReview(ctx, 1, "Ana", 4, "Great dumplings")
	require.NoError(t, err)
	assert.Negative(t, review.ID)
	assert.Equal(t, domain.SyncStatusDetached, review.SyncStatus)
	assert.False(t, review.UpdatedAt.IsZero(), "updatedAt is stamped before persisting")
	requireExclusiveHome(t, h, review.ID)

	reviews, err := h.coord.GetReviewsFor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, review.ID, reviews[0].ID)
	assert.Equal(t, "Great dumplings", reviews[0].Comments)

	assert.Equal(t, 0, h.backend.requestCount())
	assert.Len(t, h.events.ofType(sse.EventReviewCreated), 1)
}

func TestAddReview_DetachedIDsAreUnique(t *testing.T) {
	h := setupCoordinator(t, false)
	ctx := context.Background()

	seen := map[int]bool{}
	for i := range 5 {
		review, err := h.coord.AddReview(ctx, 1, "Ana", 1+i%5, "Visit "+strconv.Itoa(i))
		require.NoError(t, err)
		assert.Negative(t, review.ID)
		assert.False(t, seen[review.ID])
		seen[review.ID] = true
	}
}

func TestAddReview_OnlineUsesBackendID(t *testing.T) {
	h := setupCoordinator(t, true)
	ctx := context.Background()

	review, err := h.coord.AddReview(ctx, 2, "Ben", 5, "Best pizza in Brooklyn")
	require.NoError(t, err)
	assert.Positive(t, review.ID)
	assert.Equal(t, domain.SyncStatusSynchronized, review.SyncStatus)
	assert.Equal(t, 2, review.RestaurantID)
	assert.False(t, review.UpdatedAt.IsZero())
	requireExclusiveHome(t, h, review.ID)

	remote, ok := h.backend.review(review.ID)
	require.True(t, ok)
	assert.Equal(t, "Best pizza in Brooklyn", remote.Comments)
}

func TestAddReview_OnlineFailureDetaches(t *testing.T) {
	h := setupCoordinator(t, true)
	h.backend.setFailing(true)

	review, err := h.coord.AddReview(context.Background(), 2, "Ben", 5, "Queued")
	require.NoError(t, err)
	assert.Negative(t, review.ID)
	assert.Equal(t, domain.SyncStatusDetached, review.SyncStatus)
	requireExclusiveHome(t, h, review.ID)
}

func TestAddReview_Validation(t *testing.T) {
	h := setupCoordinator(t, false)
	ctx := context.Background()

	tests := []struct {
		name     string
		reviewer string
		comments string
		rating   int
	}{
		{name: "rating too low", reviewer: "Ana", comments: "ok", rating: 0},
		{name: "rating too high", reviewer: "Ana", comments: "ok", rating: 6},
		{name: "missing name", reviewer: "", comments: "ok", rating: 3},
		{name: "missing comments", reviewer: "Ana", comments: "", rating: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.coord.AddReview(ctx, 1, tt.reviewer, tt.rating, tt.comments)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)
		})
	}

	count, err := h.store.DetachedReviews.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetReviewsFor_UnionsBothHomes(t *testing.T) {
	h := setupCoordinator(t, true)
	ctx := context.Background()

	h.backend.addReview(domain.Review{ID: 10, RestaurantID: 3, Name: "Cy", Rating: 3, Comments: "Fine"})
	h.backend.addReview(domain.Review{ID: 11, RestaurantID: 4, Name: "Di", Rating: 2, Comments: "Elsewhere"})

	h.flag.SetOffline()
	detached, err := h.coord.AddReview(ctx, 3, "Ed", 5, "Written offline")
	require.NoError(t, err)

	h.flag.SetOnline()
	reviews, err := h.coord.GetReviewsFor(ctx, 3)
	require.NoError(t, err)

	ids := make([]int, len(reviews))
	for i, r := range reviews {
		ids[i] = r.ID
	}
	assert.ElementsMatch(t, []int{10, detached.ID}, ids)

	stored, err := h.store.Reviews.Get(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSynchronized, stored.SyncStatus)
}

func TestGetReviewsFor_RefreshKeepsDirtyEdit(t *testing.T) {
	h := setupCoordinator(t, true)
	ctx := context.Background()

	h.backend.addReview(domain.Review{ID: 10, RestaurantID: 3, Name: "Cy", Rating: 3, Comments: "Fine"})
	_, err := h.coord.GetReviewsFor(ctx, 3)
	require.NoError(t, err)

	h.flag.SetOffline()
	_, err = h.coord.EditReview(ctx, 10, domain.SyncStatusSynchronized, "Cy", 5, "Better on a second visit")
	require.NoError(t, err)

	h.flag.SetOnline()
	h.backend.setFailing(false)
	reviews, err := h.coord.GetReviewsFor(ctx, 3)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Better on a second visit", reviews[0].Comments)
	assert.Equal(t, domain.SyncStatusDirty, reviews[0].SyncStatus)
}

func TestEditReview_OfflineMarksDirty(t *testing.T) {
	h := setupCoordinator(t, true)
	ctx := context.Background()

	created, err := h.coord.AddReview(ctx, 1, "Ana", 3, "Decent")
	require.NoError(t, err)

	h.flag.SetOffline()
	edited, err := h.coord.EditReview(ctx, created.ID, created.SyncStatus, "Ana B.", 4, "Better than I said")
	require.NoError(t, err)

	assert.Equal(t, created.ID, edited.ID)
	assert.Equal(t, created.RestaurantID, edited.RestaurantID)
	assert.Equal(t, "Ana B.", edited.Name)
	assert.Equal(t, 4, edited.Rating)
	assert.Equal(t, domain.SyncStatusDirty, edited.SyncStatus)
	assert.False(t, edited.UpdatedAt.Before(created.UpdatedAt.Time))

	remote, _ := h.backend.review(created.ID)
	assert.Equal(t, "Decent", remote.Comments)
	requireExclusiveHome(t, h, created.ID)
}

func TestEditReview_OnlineSynchronizes(t *testing.T) {
	h := setupCoordinator(t, true)
	ctx := context.Background()

	created, err := h.coord.AddReview(ctx, 1, "Ana", 3, "Decent")
	require.NoError(t, err)

	edited, err := h.coord.EditReview(ctx, created.ID, created.SyncStatus, "Ana", 5, "Superb")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSynchronized, edited.SyncStatus)

	remote, _ := h.backend.review(created.ID)
	assert.Equal(t, "Superb", remote.Comments)
	assert.Equal(t, 5, remote.Rating)
}

func TestEditReview_OnlineFailureMarksDirty(t *testing.T) {
	h := setupCoordinator(t, true)
	ctx := context.Background()

	created, err := h.coord.AddReview(ctx, 1, "Ana", 3, "Decent")
	require.NoError(t, err)

	h.backend.setFailing(true)
	edited, err := h.coord.EditReview(ctx, created.ID, created.SyncStatus, "Ana", 5, "Superb")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusDirty, edited.SyncStatus)
}

func TestEditReview_DetachedStaysLocalOffline(t *testing.T) {
	h := setupCoordinator(t, false)
	ctx := context.Background()

	detached, err := h.coord.AddReview(ctx, 1, "Ana", 3, "Draft")
	require.NoError(t, err)

	edited, err := h.coord.EditReview(ctx, detached.ID, domain.SyncStatusDetached, "Ana", 4, "Final")
	require.NoError(t, err)
	assert.Equal(t, detached.ID, edited.ID)
	assert.Equal(t, domain.SyncStatusDetached, edited.SyncStatus)
	assert.Equal(t, "Final", edited.Comments)
	requireExclusiveHome(t, h, detached.ID)
}

func TestEditReview_DetachedOnlineIsCreatedNotUpdated(t *testing.T) {
	h := setupCoordinator(t, false)
	ctx := context.Background()

	detached, err := h.coord.AddReview(ctx, 1, "Ana", 3, "Draft")
	require.NoError(t, err)

	h.flag.SetOnline()
	edited, err := h.coord.EditReview(ctx, detached.ID, domain.SyncStatusDetached, "Ana", 4, "Final")
	require.NoError(t, err)

	assert.Positive(t, edited.ID)
	assert.Equal(t, domain.SyncStatusSynchronized, edited.SyncStatus)
	assert.Equal(t, "Final", edited.Comments)
	assert.Zero(t, h.backend.count("PUT", "/reviews/"+strconv.Itoa(detached.ID)))

	_, err = h.store.DetachedReviews.Get(ctx, strconv.Itoa(detached.ID))
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	requireExclusiveHome(t, h, edited.ID)
}

func TestEditReview_DetachedOnlineFailureKeepsEdit(t *testing.T) {
	h := setupCoordinator(t, false)
	ctx := context.Background()

	detached, err := h.coord.AddReview(ctx, 1, "Ana", 3, "Draft")
	require.NoError(t, err)

	h.flag.SetOnline()
	h.backend.setFailing(true)
	edited, err := h.coord.EditReview(ctx, detached.ID, domain.SyncStatusDetached, "Ana", 4, "Final")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusDetached, edited.SyncStatus)

	stored, err := h.store.DetachedReviews.Get(ctx, strconv.Itoa(detached.ID))
	require.NoError(t, err)
	assert.Equal(t, "Final", stored.Comments, "the edit is not lost")
}

func TestEditReview_Errors(t *testing.T) {
	h := setupCoordinator(t, false)
	ctx := context.Background()

	_, err := h.coord.EditReview(ctx, 999, domain.SyncStatusSynchronized, "A", 3, "B")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	detached, err := h.coord.AddReview(ctx, 1, "Ana", 3, "Draft")
	require.NoError(t, err)
	_, err = h.coord.EditReview(ctx, detached.ID, domain.SyncStatusDetached, "Ana", 9, "Draft")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	stored, err := h.store.DetachedReviews.Get(ctx, strconv.Itoa(detached.ID))
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Rating)
}

func TestFindReview(t *testing.T) {
	h := setupCoordinator(t, false)
	ctx := context.Background()

	detached, err := h.coord.AddReview(ctx, 1, "Ana", 3, "Draft")
	require.NoError(t, err)

	found, err := h.coord.FindReview(ctx, detached.ID)
	require.NoError(t, err)
	assert.Equal(t, "Draft", found.Comments)

	_, err = h.coord.FindReview(ctx, 5)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
