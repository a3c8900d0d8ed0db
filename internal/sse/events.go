// Package sse implements Server-Sent Events for streaming sync-layer changes to UI clients.
package sse

import (
	"time"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventRestaurantUpdated is sent when a restaurant changes locally (optimistic favorite toggle).
	EventRestaurantUpdated EventType = "restaurant.updated"

	// EventReviewCreated is sent when a review is stored, synchronized or detached.
	EventReviewCreated EventType = "review.created"
	// EventReviewUpdated is sent when a review edit is stored.
	EventReviewUpdated EventType = "review.updated"
	// EventReviewPromoted is sent when a detached review receives its backend id.
	EventReviewPromoted EventType = "review.promoted"

	// EventResyncStarted carries the pending counts found before any network call.
	EventResyncStarted EventType = "resync.started"
	// EventResyncCompleted carries the outcome of a reconciliation run.
	EventResyncCompleted EventType = "resync.completed"

	// EventConnectivityChanged is sent on online/offline transitions.
	EventConnectivityChanged EventType = "connectivity.changed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one change notification. Seq is assigned by the Manager when the
// event is broadcast. RestaurantID scopes the event; zero means global.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	Data         any       `json:"data"`
	Type         EventType `json:"type"`
	Seq          uint64    `json:"seq"`
	RestaurantID int       `json:"restaurant_id,omitempty"`
}

// Matches reports whether a subscriber filtered on restaurantID receives e.
func (e Event) Matches(restaurantID int) bool {
	return restaurantID == 0 || e.RestaurantID == 0 || e.RestaurantID == restaurantID
}

// RestaurantEventData is the data payload for restaurant events.
type RestaurantEventData struct {
	Restaurant *domain.Restaurant `json:"restaurant"`
}

// ReviewEventData is the data payload for review created/updated events.
type ReviewEventData struct {
	Review *domain.Review `json:"review"`
}

// ReviewPromotedEventData is the data payload for review promotion events.
type ReviewPromotedEventData struct {
	Review *domain.Review `json:"review"`
	TempID int            `json:"temp_id"`
}

// ScanCounts summarizes one reconciliation scan.
type ScanCounts struct {
	Found      int `json:"found"`
	Synced     int `json:"synced"`
	Superseded int `json:"superseded"`
	Failed     int `json:"failed"`
}

// ResyncStartedEventData is the data payload for resync start events.
type ResyncStartedEventData struct {
	StartedAt        time.Time `json:"started_at"`
	DirtyRestaurants int       `json:"dirty_restaurants"`
	DetachedReviews  int       `json:"detached_reviews"`
	DirtyReviews     int       `json:"dirty_reviews"`
}

// ResyncCompletedEventData is the data payload for resync completion events.
type ResyncCompletedEventData struct {
	CompletedAt     time.Time  `json:"completed_at"`
	Restaurants     ScanCounts `json:"restaurants"`
	DetachedReviews ScanCounts `json:"detached_reviews"`
	DirtyReviews    ScanCounts `json:"dirty_reviews"`
}

// ConnectivityEventData is the data payload for connectivity events.
type ConnectivityEventData struct {
	Online bool `json:"online"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, restaurantID int, data any) Event {
	return Event{Type: t, RestaurantID: restaurantID, Data: data, Timestamp: time.Now()}
}

// NewRestaurantUpdatedEvent creates a restaurant.updated event.
func NewRestaurantUpdatedEvent(r *domain.Restaurant) Event {
	return newEvent(EventRestaurantUpdated, r.ID, RestaurantEventData{Restaurant: r})
}

// NewReviewCreatedEvent creates a review.created event.
func NewReviewCreatedEvent(r *domain.Review) Event {
	return newEvent(EventReviewCreated, r.RestaurantID, ReviewEventData{Review: r})
}

// NewReviewUpdatedEvent creates a review.updated event.
func NewReviewUpdatedEvent(r *domain.Review) Event {
	return newEvent(EventReviewUpdated, r.RestaurantID, ReviewEventData{Review: r})
}

// NewReviewPromotedEvent creates a review.promoted event.
func NewReviewPromotedEvent(tempID int, r *domain.Review) Event {
	return newEvent(EventReviewPromoted, r.RestaurantID, ReviewPromotedEventData{TempID: tempID, Review: r})
}

// NewResyncStartedEvent creates a resync.started event.
func NewResyncStartedEvent(dirtyRestaurants, detachedReviews, dirtyReviews int) Event {
	return newEvent(EventResyncStarted, 0, ResyncStartedEventData{
		StartedAt:        time.Now(),
		DirtyRestaurants: dirtyRestaurants,
		DetachedReviews:  detachedReviews,
		DirtyReviews:     dirtyReviews,
	})
}

// NewResyncCompletedEvent creates a resync.completed event.
func NewResyncCompletedEvent(restaurants, detached, dirty ScanCounts) Event {
	return newEvent(EventResyncCompleted, 0, ResyncCompletedEventData{
		CompletedAt:     time.Now(),
		Restaurants:     restaurants,
		DetachedReviews: detached,
		DirtyReviews:    dirty,
	})
}

// NewConnectivityChangedEvent creates a connectivity.changed event.
func NewConnectivityChangedEvent(online bool) Event {
	return newEvent(EventConnectivityChanged, 0, ConnectivityEventData{Online: online})
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, 0, HeartbeatEventData{ServerTime: time.Now()})
}
