package service

import (
	"context"
	"errors"
	"time"

	"github.com/jpgfer/mws-restaurant-1/internal/remote"
	"github.com/jpgfer/mws-restaurant-1/internal/sse"
)

// ScanReport counts the outcome of one reconciliation scan. Superseded
// records were handed to a newer local write, or to a promotion already in
// flight, which owns their sync from then on.
type ScanReport struct {
	Found      int `json:"found"`
	Synced     int `json:"synced"`
	Superseded int `json:"superseded"`
	Failed     int `json:"failed"`
}

func (r ScanReport) counts() sse.ScanCounts {
	return sse.ScanCounts{Found: r.Found, Synced: r.Synced, Superseded: r.Superseded, Failed: r.Failed}
}

// ResyncReport is the outcome of a reconciliation run.
type ResyncReport struct {
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	Restaurants     ScanReport    `json:"restaurants"`
	DetachedReviews ScanReport    `json:"detached_reviews"`
	DirtyReviews    ScanReport    `json:"dirty_reviews"`
}

// Found returns the number of candidate records across all scans.
func (r *ResyncReport) Found() int {
	return r.Restaurants.Found + r.DetachedReviews.Found + r.DirtyReviews.Found
}

// Failed returns the number of records left pending across all scans.
func (r *ResyncReport) Failed() int {
	return r.Restaurants.Failed + r.DetachedReviews.Failed + r.DirtyReviews.Failed
}

// OnReconnect replays every pending local write against the backend.
//
// It pushes DIRTY favorites, creates every detached review and promotes it
// under its backend id, then pushes DIRTY review edits. Candidate counts are
// emitted before the first network call. A record whose push fails stays
// pending for the next run; such failures are logged, not returned. Once a
// call gets no response at all, the remaining records are counted failed
// without being sent. Only a failure to read the pending records is
// returned. Runs are serialized.
func (c *Coordinator) OnReconnect(ctx context.Context) (*ResyncReport, error) {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()

	report := &ResyncReport{StartedAt: time.Now()}

	restaurants, err := c.store.DirtyRestaurants(ctx)
	if err != nil {
		return report, err
	}
	detached, err := c.store.DetachedReviews.All(ctx)
	if err != nil {
		return report, err
	}
	dirtyReviews, err := c.store.DirtyReviews(ctx)
	if err != nil {
		return report, err
	}

	report.Restaurants.Found = len(restaurants)
	report.DetachedReviews.Found = len(detached)
	report.DirtyReviews.Found = len(dirtyReviews)
	c.events.Emit(sse.NewResyncStartedEvent(len(restaurants), len(detached), len(dirtyReviews)))

	c.logger.Info("resync started",
		"dirty_restaurants", len(restaurants),
		"detached_reviews", len(detached),
		"dirty_reviews", len(dirtyReviews),
	)

	var down bool
	for _, r := range restaurants {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if down {
			report.Restaurants.Failed++
			continue
		}
		marked, err := c.pushFavorite(ctx, r.ID, r.IsFavorite.Bool())
		switch {
		case err != nil:
			c.logger.Warn("resync favorite failed", "id", r.ID, "error", err)
			report.Restaurants.Failed++
			down = unreachable(err)
		case marked:
			report.Restaurants.Synced++
		default:
			report.Restaurants.Superseded++
		}
	}

	for i := range detached {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if down {
			report.DetachedReviews.Failed++
			continue
		}
		promoted, err := c.promote(ctx, &detached[i])
		switch {
		case errors.Is(err, errSuperseded):
			report.DetachedReviews.Superseded++
		case err != nil, promoted.IsDirty():
			report.DetachedReviews.Failed++
			down = unreachable(err)
		default:
			report.DetachedReviews.Synced++
		}
	}

	for i := range dirtyReviews {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if down {
			report.DirtyReviews.Failed++
			continue
		}
		synced, err := c.pushReview(ctx, &dirtyReviews[i])
		switch {
		case err != nil:
			c.logger.Warn("resync review failed", "id", dirtyReviews[i].ID, "error", err)
			report.DirtyReviews.Failed++
			down = unreachable(err)
		case synced != nil:
			report.DirtyReviews.Synced++
		default:
			report.DirtyReviews.Superseded++
		}
	}

	report.Duration = time.Since(report.StartedAt)
	c.events.Emit(sse.NewResyncCompletedEvent(
		report.Restaurants.counts(),
		report.DetachedReviews.counts(),
		report.DirtyReviews.counts(),
	))
	c.logger.Info("resync completed",
		"found", report.Found(),
		"failed", report.Failed(),
		"duration", report.Duration,
	)
	return report, nil
}

// unreachable reports whether err is a backend call that got no response.
func unreachable(err error) bool {
	var re *remote.Error
	return errors.As(err, &re) && re.IsNetwork()
}

// Run reconciles on every offline to online transition of the connectivity
// provider until ctx is done. A transition that arrives while a run is in
// progress queues a single follow-up run.
func (c *Coordinator) Run(ctx context.Context) error {
	trigger := make(chan struct{}, 1)
	unsubscribe := c.conn.Subscribe(func(online bool) {
		c.events.Emit(sse.NewConnectivityChangedEvent(online))
		if !online {
			return
		}
		select {
		case trigger <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			if _, err := c.OnReconnect(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("resync failed", "error", err)
			}
		}
	}
}
