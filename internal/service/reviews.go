package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
	"github.com/jpgfer/mws-restaurant-1/internal/sse"
)

// GetReviewsFor returns the reviews of a restaurant, including detached ones.
//
// Online, fetched reviews are persisted as synchronized first; a local review
// with an unpushed edit is kept as is. The result is always read from the
// local store so that reviews not yet on the backend are part of it.
func (c *Coordinator) GetReviewsFor(ctx context.Context, restaurantID int) ([]domain.Review, error) {
	var remoteErr error
	if c.conn.IsOnline() {
		fetched, err := c.remote.ReviewsFor(ctx, restaurantID)
		if err == nil {
			if err := c.persistReviews(ctx, fetched); err != nil {
				return nil, err
			}
		} else {
			remoteErr = err
			c.logger.Warn("fetch reviews failed, reading local store", "restaurant_id", restaurantID, "error", err)
		}
	}

	reviews, err := c.store.ReviewsForRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if len(reviews) == 0 && remoteErr != nil {
		c.logger.Error("no reviews available", "restaurant_id", restaurantID, "error", remoteErr)
	}
	return reviews, nil
}

func (c *Coordinator) persistReviews(ctx context.Context, fetched []domain.Review) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keep := make([]domain.Review, 0, len(fetched))
	for _, r := range fetched {
		if r.ID <= 0 {
			c.logger.Warn("ignoring backend review without id", "restaurant_id", r.RestaurantID)
			continue
		}
		local, err := c.store.Reviews.Get(ctx, r.Key())
		if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
			return err
		}
		if local != nil && local.IsDirty() {
			continue
		}
		r.MarkSynchronized()
		keep = append(keep, r)
	}

	_, err := c.store.Reviews.PutAll(ctx, keep)
	return err
}

// AddReview creates a review.
//
// Online, the backend creates it and it is stored as synchronized under the
// backend id. Offline, or when the backend call fails, it is stored detached
// under a client id and created on the next reconciliation.
func (c *Coordinator) AddReview(ctx context.Context, restaurantID int, name string, rating int, comments string) (*domain.Review, error) {
	review := &domain.Review{
		RestaurantID: restaurantID,
		Name:         name,
		Rating:       rating,
		Comments:     comments,
	}
	if err := review.Validate(); err != nil {
		return nil, err
	}
	review.StampIfMissing()

	if c.conn.IsOnline() {
		created, err := c.createReview(ctx, review)
		if err == nil {
			created.MarkSynchronized()
			if err := c.store.Reviews.Put(ctx, created); err != nil {
				return nil, err
			}
			c.events.Emit(sse.NewReviewCreatedEvent(created))
			return created, nil
		}
		c.logger.Warn("create review failed, storing detached", "restaurant_id", restaurantID, "error", err)
	}

	if err := c.store.InsertDetachedReview(ctx, review); err != nil {
		return nil, err
	}
	c.events.Emit(sse.NewReviewCreatedEvent(review))
	return review, nil
}

// createReview creates review on the backend and returns the backend copy with
// the local fields filled in where the backend left them out.
func (c *Coordinator) createReview(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	created, err := c.remote.CreateReview(ctx, review)
	if err != nil {
		return nil, err
	}
	if created.ID <= 0 {
		return nil, fmt.Errorf("backend returned review without id for restaurant %d", review.RestaurantID)
	}
	if created.RestaurantID == 0 {
		created.RestaurantID = review.RestaurantID
	}
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = review.UpdatedAt
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = review.CreatedAt
	}
	created.StampIfMissing()
	return created, nil
}

// EditReview merges an edit into a stored review.
//
// currentStatus names the home the review is in. A detached review is never
// sent as an update, since the backend has not seen it: the edit stays local
// and, when online, the review is created right away with the edited content.
// An edit that lands while that create is in flight is carried over to the
// promoted record and pushed as an update. A backend-known review is pushed
// when online and marked synchronized on success; otherwise it becomes DIRTY.
func (c *Coordinator) EditReview(ctx context.Context, reviewID int, currentStatus domain.SyncStatus, name string, rating int, comments string) (*domain.Review, error) {
	edit := domain.ReviewEdit{Name: name, Rating: rating, Comments: comments}

	c.mu.Lock()
	if currentStatus == domain.SyncStatusDetached {
		if id, ok := c.promoted[reviewID]; ok {
			reviewID, currentStatus = id, domain.SyncStatusSynchronized
		}
	}
	review, err := c.store.FindReview(ctx, reviewID, currentStatus)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	review.Apply(edit)
	if err := review.Validate(); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	detached := currentStatus == domain.SyncStatusDetached
	if detached {
		review.MarkDetached()
	} else {
		review.MarkDirty()
	}
	err = c.store.PutReview(ctx, review)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if c.conn.IsOnline() {
		if detached {
			if promoted, err := c.promote(ctx, review); err == nil {
				return promoted, nil
			}
		} else if synced, err := c.pushReview(ctx, review); err != nil {
			c.logger.Warn("update review failed, kept dirty", "id", review.ID, "error", err)
		} else if synced != nil {
			review = synced
		}
	}

	c.events.Emit(sse.NewReviewUpdatedEvent(review))
	return review, nil
}

// pushReview sends an edited review and marks the local copy synchronized if
// it still holds the pushed content. It returns the stored copy when marked,
// and nil when a newer edit took over.
func (c *Coordinator) pushReview(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	if _, err := c.remote.UpdateReview(ctx, review); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	local, err := c.store.Reviews.Get(ctx, review.Key())
	if err != nil {
		return nil, err
	}
	// Timestamps have millisecond resolution, so the content decides.
	if !local.IsDirty() || local.Edit() != review.Edit() || !local.UpdatedAt.Equal(review.UpdatedAt.Time) {
		return nil, nil
	}
	local.MarkSynchronized()
	if err := c.store.Reviews.Put(ctx, local); err != nil {
		return nil, err
	}
	return local, nil
}

// errSuperseded reports that a detached review is already being promoted, or
// was promoted, by another caller.
var errSuperseded = errors.New("detached review promoted elsewhere")

// promote creates a detached review on the backend and moves it to the
// reviews home under the backend id. On failure the detached row is untouched.
//
// At most one promotion per temp id runs at a time. The stored row is
// re-read before the create, so a stale copy from a scan is never sent.
func (c *Coordinator) promote(ctx context.Context, detached *domain.Review) (*domain.Review, error) {
	tempID := detached.ID
	current, err := c.claimPromotion(ctx, tempID)
	if err != nil {
		return nil, err
	}
	defer func() {
		c.mu.Lock()
		delete(c.promoting, tempID)
		c.mu.Unlock()
	}()

	created, err := c.createReview(ctx, current)
	if err != nil {
		c.logger.Warn("create detached review failed, kept detached", "temp_id", tempID, "error", err)
		return nil, err
	}

	c.mu.Lock()
	err = c.store.PromoteDetachedReview(ctx, tempID, created)
	if err == nil {
		c.promoted[tempID] = created.ID
	}
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("promote detached review failed", "temp_id", tempID, "id", created.ID, "error", err)
		return nil, err
	}
	c.logger.Info("detached review promoted", "temp_id", tempID, "id", created.ID)
	c.events.Emit(sse.NewReviewPromotedEvent(tempID, created))

	// An edit landed while the create was in flight.
	if created.IsDirty() {
		synced, err := c.pushReview(ctx, created)
		switch {
		case err != nil:
			c.logger.Warn("update promoted review failed, kept dirty", "id", created.ID, "error", err)
		case synced != nil:
			created = synced
		}
		c.events.Emit(sse.NewReviewUpdatedEvent(created))
	}
	return created, nil
}

// claimPromotion marks tempID as in flight and returns its stored row.
func (c *Coordinator) claimPromotion(ctx context.Context, tempID int) (*domain.Review, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.promoting[tempID]; busy {
		return nil, errSuperseded
	}
	current, err := c.store.DetachedReviews.Get(ctx, strconv.Itoa(tempID))
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil, errSuperseded
	}
	if err != nil {
		return nil, err
	}
	c.promoting[tempID] = struct{}{}
	return current, nil
}

// FindReview returns a stored review from either home.
func (c *Coordinator) FindReview(ctx context.Context, id int) (*domain.Review, error) {
	status := domain.SyncStatusSynchronized
	if id < 0 {
		status = domain.SyncStatusDetached
	}
	r, err := c.store.FindReview(ctx, id, status)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.NotFoundf("review %d does not exist", id)
	}
	return r, err
}
