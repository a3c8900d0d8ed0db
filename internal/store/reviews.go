package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
)

// NextDetachedID reserves a client-side review id.
// Detached ids are negative so they can never collide with a backend id.
func (s *Store) NextDetachedID() (int, error) {
	n, err := s.detachedSeq.Next()
	if err != nil {
		return 0, domainerrors.Storage(err, "failed to reserve detached review id")
	}
	return -int(n + 1), nil
}

// InsertDetachedReview stores a review the backend has never seen.
// A zero id is replaced by a fresh detached id.
func (s *Store) InsertDetachedReview(ctx context.Context, review *domain.Review) error {
	if review.ID == 0 {
		id, err := s.NextDetachedID()
		if err != nil {
			return err
		}
		review.ID = id
	}
	if review.ID > 0 {
		return domainerrors.Validationf("detached review id must be negative, got %d", review.ID)
	}
	review.MarkDetached()
	return s.DetachedReviews.Put(ctx, review)
}

// ReviewsForRestaurant returns the union of synchronized and detached reviews
// of a restaurant, read from a single snapshot.
func (s *Store) ReviewsForRestaurant(ctx context.Context, restaurantID int) ([]domain.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value := strconv.Itoa(restaurantID)
	var reviews []domain.Review
	err := s.view(func(txn *badger.Txn) error {
		synced, err := s.Reviews.byIndexTxn(ctx, txn, IndexByRestaurantID, value)
		if err != nil {
			return err
		}
		detached, err := s.DetachedReviews.byIndexTxn(ctx, txn, IndexByRestaurantID, value)
		if err != nil {
			return err
		}
		reviews = append(synced, detached...)
		return nil
	})
	if err != nil {
		return nil, wrapTxnError(fmt.Sprintf("read reviews of restaurant %d", restaurantID), err)
	}
	return reviews, nil
}

// FindReview looks a review up in the home implied by its sync status.
func (s *Store) FindReview(ctx context.Context, id int, status domain.SyncStatus) (*domain.Review, error) {
	return s.reviewHome(status).Get(ctx, strconv.Itoa(id))
}

// PutReview writes a review into the home implied by its sync status.
func (s *Store) PutReview(ctx context.Context, review *domain.Review) error {
	return s.reviewHome(review.SyncStatus).Put(ctx, review)
}

func (s *Store) reviewHome(status domain.SyncStatus) *Collection[domain.Review] {
	if status == domain.SyncStatusDetached {
		return s.DetachedReviews
	}
	return s.Reviews
}

// PromoteDetachedReview moves a review from the detached home to the reviews
// home under its backend id. The delete and insert commit together.
//
// synced is what the backend created. If the detached row was edited after
// that content was sent, the edit is carried over and synced is stored DIRTY
// so the edit is pushed as an update. A detached row that no longer exists
// was promoted already; nothing is written and a conflict error is returned.
func (s *Store) PromoteDetachedReview(ctx context.Context, tempID int, synced *domain.Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if synced.ID <= 0 {
		return domainerrors.Validationf("promoted review needs a backend id, got %d", synced.ID)
	}

	created := *synced
	err := s.update(func(txn *badger.Txn) error {
		*synced = created
		current, err := s.DetachedReviews.getTxn(txn, strconv.Itoa(tempID))
		if errors.Is(err, ErrNotFound) {
			return domainerrors.Conflictf("detached review %d is no longer pending", tempID)
		}
		if err != nil {
			return err
		}

		synced.MarkSynchronized()
		if edit := current.Edit(); edit != synced.Edit() {
			synced.Name, synced.Rating, synced.Comments = edit.Name, edit.Rating, edit.Comments
			synced.UpdatedAt = current.UpdatedAt
			synced.MarkDirty()
		}

		if err := s.DetachedReviews.deleteTxn(txn, strconv.Itoa(tempID)); err != nil {
			return err
		}
		return s.Reviews.putTxn(txn, synced)
	})
	if errors.Is(err, domainerrors.ErrConflict) {
		return err
	}
	if err != nil {
		return wrapTxnError(fmt.Sprintf("promote detached review %d to %d", tempID, synced.ID), err)
	}
	return nil
}

// DirtyRestaurants returns restaurants with unpushed favorite changes.
func (s *Store) DirtyRestaurants(ctx context.Context) ([]domain.Restaurant, error) {
	return s.Restaurants.ByIndex(ctx, IndexBySyncStatus, string(domain.SyncStatusDirty))
}

// DirtyReviews returns backend-known reviews with unpushed edits.
func (s *Store) DirtyReviews(ctx context.Context) ([]domain.Review, error) {
	return s.Reviews.ByIndex(ctx, IndexBySyncStatus, string(domain.SyncStatusDirty))
}

// PendingCounts reports how many records wait for reconciliation.
type PendingCounts struct {
	DirtyRestaurants int `json:"dirty_restaurants"`
	DetachedReviews  int `json:"detached_reviews"`
	DirtyReviews     int `json:"dirty_reviews"`
}

// Total returns the sum of all pending records.
func (p PendingCounts) Total() int {
	return p.DirtyRestaurants + p.DetachedReviews + p.DirtyReviews
}

// Pending counts the records reconciliation would replay.
func (s *Store) Pending(ctx context.Context) (PendingCounts, error) {
	var counts PendingCounts
	err := s.view(func(txn *badger.Txn) error {
		restaurants, err := s.Restaurants.byIndexTxn(ctx, txn, IndexBySyncStatus, string(domain.SyncStatusDirty))
		if err != nil {
			return err
		}
		detached, err := s.DetachedReviews.allTxn(ctx, txn)
		if err != nil {
			return err
		}
		reviews, err := s.Reviews.byIndexTxn(ctx, txn, IndexBySyncStatus, string(domain.SyncStatusDirty))
		if err != nil {
			return err
		}
		counts = PendingCounts{
			DirtyRestaurants: len(restaurants),
			DetachedReviews:  len(detached),
			DirtyReviews:     len(reviews),
		}
		return nil
	})
	if err != nil {
		return PendingCounts{}, wrapTxnError("count pending records", err)
	}
	return counts, nil
}
