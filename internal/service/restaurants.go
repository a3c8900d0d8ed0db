package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
	"github.com/jpgfer/mws-restaurant-1/internal/search"
	"github.com/jpgfer/mws-restaurant-1/internal/sse"
)

// GetAll returns every restaurant.
//
// Online, the backend list is persisted as synchronized and returned. When the
// backend fails or the host is offline, whatever the local store holds is
// returned, possibly nothing.
func (c *Coordinator) GetAll(ctx context.Context) ([]domain.Restaurant, error) {
	var remoteErr error
	if c.conn.IsOnline() {
		fetched, err := c.remote.Restaurants(ctx)
		if err == nil {
			return c.persistRestaurants(ctx, fetched)
		}
		remoteErr = err
		c.logger.Warn("fetch restaurants failed, reading local store", "error", err)
	}

	restaurants, err := c.store.Restaurants.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(restaurants) == 0 && remoteErr != nil {
		c.logger.Error("no restaurants available", "error", remoteErr)
	}
	return restaurants, nil
}

// GetByID returns one restaurant, from the backend when online and from the
// local store otherwise. A restaurant found in neither place is a not-found error.
func (c *Coordinator) GetByID(ctx context.Context, id int) (*domain.Restaurant, error) {
	var remoteErr error
	if c.conn.IsOnline() {
		fetched, err := c.remote.Restaurant(ctx, id)
		if err == nil {
			merged, err := c.persistRestaurants(ctx, []domain.Restaurant{*fetched})
			if err != nil {
				return nil, err
			}
			return &merged[0], nil
		}
		remoteErr = err
		c.logger.Warn("fetch restaurant failed, reading local store", "id", id, "error", err)
	}

	r, err := c.store.Restaurants.Get(ctx, strconv.Itoa(id))
	if errors.Is(err, domainerrors.ErrNotFound) {
		if remoteErr != nil {
			c.logger.Error("restaurant not available", "id", id, "error", remoteErr)
		}
		return nil, domainerrors.NotFoundf("restaurant %d does not exist", id)
	}
	return r, err
}

// persistRestaurants stores fetched restaurants as synchronized and returns
// what was stored. A local copy with an unpushed favorite change keeps its
// favorite flag and DIRTY status.
func (c *Coordinator) persistRestaurants(ctx context.Context, fetched []domain.Restaurant) ([]domain.Restaurant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := make([]domain.Restaurant, len(fetched))
	for i, r := range fetched {
		local, err := c.store.Restaurants.Get(ctx, r.Key())
		if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
			return nil, err
		}
		if local != nil && local.IsDirty() {
			r.IsFavorite = local.IsFavorite
			r.Syncable = local.Syncable
		} else {
			if local != nil && r.CreatedAt.IsZero() {
				r.CreatedAt = local.CreatedAt
			}
			r.MarkSynchronized()
		}
		merged[i] = r
	}

	if _, err := c.store.Restaurants.PutAll(ctx, merged); err != nil {
		return nil, err
	}
	c.indexRestaurants(merged)
	return merged, nil
}

func (c *Coordinator) indexRestaurants(restaurants []domain.Restaurant) {
	if c.index == nil {
		return
	}
	docs := make([]*search.RestaurantDocument, len(restaurants))
	for i := range restaurants {
		docs[i] = search.RestaurantToDocument(&restaurants[i])
	}
	if err := c.index.IndexDocuments(docs); err != nil {
		c.logger.Warn("failed to index restaurants", "count", len(docs), "error", err)
	}
}

// Reindex rebuilds the search index from the local store.
func (c *Coordinator) Reindex(ctx context.Context) (int, error) {
	if c.index == nil {
		return 0, nil
	}
	restaurants, err := c.store.Restaurants.All(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.index.Rebuild(); err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "rebuild search index")
	}
	c.indexRestaurants(restaurants)
	return len(restaurants), nil
}

// ByCuisine returns restaurants of one cuisine.
func (c *Coordinator) ByCuisine(ctx context.Context, cuisine string) ([]domain.Restaurant, error) {
	return c.ByCuisineAndNeighborhood(ctx, cuisine, domain.FilterAll)
}

// ByNeighborhood returns restaurants in one neighborhood.
func (c *Coordinator) ByNeighborhood(ctx context.Context, neighborhood string) ([]domain.Restaurant, error) {
	return c.ByCuisineAndNeighborhood(ctx, domain.FilterAll, neighborhood)
}

// ByCuisineAndNeighborhood filters restaurants by both fields; "all" matches anything.
func (c *Coordinator) ByCuisineAndNeighborhood(ctx context.Context, cuisine, neighborhood string) ([]domain.Restaurant, error) {
	restaurants, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return domain.FilterRestaurants(restaurants, cuisine, neighborhood), nil
}

// Neighborhoods returns the distinct neighborhoods in first-seen order.
func (c *Coordinator) Neighborhoods(ctx context.Context) ([]string, error) {
	restaurants, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Neighborhoods(restaurants), nil
}

// Cuisines returns the distinct cuisines in first-seen order.
func (c *Coordinator) Cuisines(ctx context.Context) ([]string, error) {
	restaurants, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Cuisines(restaurants), nil
}

// Search returns stored restaurants matching query, best match first.
func (c *Coordinator) Search(ctx context.Context, query string) ([]domain.Restaurant, error) {
	return c.SearchWith(ctx, search.SearchParams{Query: query})
}

// SearchWith runs a search with filters against the local store.
func (c *Coordinator) SearchWith(ctx context.Context, params search.SearchParams) ([]domain.Restaurant, error) {
	if c.index == nil {
		return nil, domainerrors.Internalf("search index is not configured")
	}

	if n, err := c.index.DocumentCount(); err == nil && n == 0 {
		if _, err := c.Reindex(ctx); err != nil {
			return nil, err
		}
	}

	result, err := c.index.Search(ctx, params)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search restaurants")
	}

	restaurants := make([]domain.Restaurant, 0, len(result.Hits))
	for _, hit := range result.Hits {
		r, err := c.store.Restaurants.Get(ctx, hit.ID)
		if errors.Is(err, domainerrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		restaurants = append(restaurants, *r)
	}
	return restaurants, nil
}

// SetFavorite toggles the favorite flag of a restaurant.
//
// The local store is updated first and a restaurant.updated event emitted; an
// unchanged value is a no-op. Online, the change is pushed in the background
// and the record marked synchronized when the backend accepts it. Otherwise it
// stays DIRTY until the next reconciliation.
func (c *Coordinator) SetFavorite(ctx context.Context, id int, favorite bool) (*domain.Restaurant, error) {
	if _, err := c.store.Restaurants.Get(ctx, strconv.Itoa(id)); errors.Is(err, domainerrors.ErrNotFound) {
		// Not cached yet; GetByID fetches and persists it when online.
		if _, err := c.GetByID(ctx, id); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	r, err := c.store.Restaurants.Get(ctx, strconv.Itoa(id))
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if !r.SetFavorite(favorite) {
		c.mu.Unlock()
		return r, nil
	}
	err = c.store.Restaurants.Put(ctx, r)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	updated := *r
	c.events.Emit(sse.NewRestaurantUpdatedEvent(&updated))

	if c.conn.IsOnline() {
		c.push(ctx, func(ctx context.Context) {
			if _, err := c.pushFavorite(ctx, id, favorite); err != nil {
				c.logger.Warn("favorite push failed, will retry on reconnect", "id", id, "error", err)
			}
		})
	}

	result := *r
	return &result, nil
}

// pushFavorite sends a favorite value to the backend and, on success, marks the
// local record synchronized if it still holds that value. It reports whether
// the record was marked.
func (c *Coordinator) pushFavorite(ctx context.Context, id int, favorite bool) (bool, error) {
	if _, err := c.remote.SetFavorite(ctx, id, favorite); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.store.Restaurants.Get(ctx, strconv.Itoa(id))
	if err != nil {
		return false, err
	}
	// A newer toggle landed while the push was in flight; leave it DIRTY.
	if !r.IsDirty() || r.IsFavorite.Bool() != favorite {
		return false, nil
	}
	r.MarkSynchronized()
	if err := c.store.Restaurants.Put(ctx, r); err != nil {
		return false, err
	}
	return true, nil
}
