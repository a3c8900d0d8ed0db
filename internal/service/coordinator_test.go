package service_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jpgfer/mws-restaurant-1/internal/connectivity"
	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	"github.com/jpgfer/mws-restaurant-1/internal/remote"
	"github.com/jpgfer/mws-restaurant-1/internal/search"
	"github.com/jpgfer/mws-restaurant-1/internal/service"
	"github.com/jpgfer/mws-restaurant-1/internal/sse"
	"github.com/jpgfer/mws-restaurant-1/internal/store"
)

// fakeBackend is an in-memory version of the restaurant REST backend.
type fakeBackend struct {
	mu           sync.Mutex
	restaurants  map[int]domain.Restaurant
	reviews      map[int]domain.Review
	nextReviewID int
	failing      bool
	unreachable  bool
	requests     []string
	held         *heldRequest
}

// heldRequest parks the next request matching method and path until released.
type heldRequest struct {
	method, path string
	started      chan struct{}
	release      chan struct{}
}

// hold parks the next method+path request. started is closed once the request
// arrives; release lets it through.
func (b *fakeBackend) hold(method, path string) (started <-chan struct{}, release func()) {
	h := &heldRequest{
		method:  method,
		path:    path,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	b.mu.Lock()
	b.held = h
	b.mu.Unlock()
	var once sync.Once
	return h.started, func() { once.Do(func() { close(h.release) }) }
}

func newFakeBackend(restaurants ...domain.Restaurant) *fakeBackend {
	b := &fakeBackend{
		restaurants:  make(map[int]domain.Restaurant),
		reviews:      make(map[int]domain.Review),
		nextReviewID: 100,
	}
	for _, r := range restaurants {
		b.restaurants[r.ID] = r
	}
	return b
}

func (b *fakeBackend) setFailing(failing bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing = failing
}

// setUnreachable makes every request end with a dropped connection.
func (b *fakeBackend) setUnreachable(unreachable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unreachable = unreachable
}

func (b *fakeBackend) requestCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *fakeBackend) count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if r == method+" "+path {
			n++
		}
	}
	return n
}

func (b *fakeBackend) restaurant(id int) domain.Restaurant {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.restaurants[id]
}

func (b *fakeBackend) review(id int) (domain.Review, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.reviews[id]
	return r, ok
}

func (b *fakeBackend) addReview(r domain.Review) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reviews[r.ID] = r
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /restaurants", func(w http.ResponseWriter, _ *http.Request) {
		list := make([]domain.Restaurant, 0, len(b.restaurants))
		for _, r := range b.restaurants {
			list = append(list, r)
		}
		slices.SortFunc(list, func(x, y domain.Restaurant) int { return x.ID - y.ID })
		writeJSON(w, http.StatusOK, list)
	})
	mux.HandleFunc("GET /restaurants/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.PathValue("id"))
		rest, ok := b.restaurants[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, rest)
	})
	mux.HandleFunc("PUT /restaurants/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.PathValue("id"))
		rest, ok := b.restaurants[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		fav, _ := strconv.ParseBool(r.URL.Query().Get("is_favorite"))
		rest.IsFavorite = domain.Flag(fav)
		b.restaurants[id] = rest
		writeJSON(w, http.StatusOK, rest)
	})
	mux.HandleFunc("GET /reviews", func(w http.ResponseWriter, r *http.Request) {
		restaurantID, _ := strconv.Atoi(r.URL.Query().Get("restaurant_id"))
		list := []domain.Review{}
		for _, rev := range b.reviews {
			if rev.RestaurantID == restaurantID {
				list = append(list, rev)
			}
		}
		slices.SortFunc(list, func(x, y domain.Review) int { return x.ID - y.ID })
		writeJSON(w, http.StatusOK, list)
	})
	mux.HandleFunc("POST /reviews", func(w http.ResponseWriter, r *http.Request) {
		var rev domain.Review
		if err := json.NewDecoder(r.Body).Decode(&rev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.nextReviewID++
		rev.ID = b.nextReviewID
		rev.CreatedAt = domain.Now()
		rev.UpdatedAt = rev.CreatedAt
		b.reviews[rev.ID] = rev
		writeJSON(w, http.StatusCreated, rev)
	})
	mux.HandleFunc("PUT /reviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.PathValue("id"))
		rev, ok := b.reviews[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var edit domain.Review
		if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rev.Name, rev.Rating, rev.Comments = edit.Name, edit.Rating, edit.Comments
		rev.UpdatedAt = domain.Now()
		b.reviews[id] = rev
		writeJSON(w, http.StatusOK, rev)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		held := b.held
		if held != nil && held.method == r.Method && held.path == r.URL.Path {
			b.held = nil
		} else {
			held = nil
		}
		b.mu.Unlock()
		if held != nil {
			close(held.started)
			<-held.release
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)
		if b.unreachable {
			if conn, _, err := http.NewResponseController(w).Hijack(); err == nil {
				_ = conn.Close()
			}
			return
		}
		if b.failing {
			http.Error(w, "backend down", http.StatusServiceUnavailable)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// eventRecorder collects emitted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *eventRecorder) Emit(event any) {
	if evt, ok := event.(sse.Event); ok {
		r.mu.Lock()
		r.events = append(r.events, evt)
		r.mu.Unlock()
	}
}

func (r *eventRecorder) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]sse.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

func (r *eventRecorder) ofType(t sse.EventType) []sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sse.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	coord   *service.Coordinator
	store   *store.Store
	backend *fakeBackend
	flag    *connectivity.Flag
	events  *eventRecorder
}

func sampleRestaurants() []domain.Restaurant {
	return []domain.Restaurant{
		{ID: 1, Name: "Mission Chinese Food", CuisineType: "Asian", Neighborhood: "Manhattan", Photograph: "1"},
		{ID: 2, Name: "Emily", CuisineType: "Pizza", Neighborhood: "Brooklyn", Photograph: "2"},
		{ID: 3, Name: "Kang Ho Dong Baekjeong", CuisineType: "Asian", Neighborhood: "Manhattan", Photograph: "3"},
		{ID: 7, Name: "Superiority Burger", CuisineType: "American", Neighborhood: "Manhattan", Photograph: "7"},
	}
}

// setupCoordinator wires a coordinator to an in-memory store and a fake backend.
func setupCoordinator(t *testing.T, online bool) *harness {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	st, err := store.Open("", logger, store.WithInMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	backend := newFakeBackend(sampleRestaurants()...)
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	client, err := remote.New(remote.Config{BaseURL: server.URL, RPS: -1, Timeout: 5 * time.Second}, logger)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	index, err := search.NewSearchIndex(search.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	flag := connectivity.NewFlag(online)
	events := &eventRecorder{}
	coord := service.NewCoordinator(st, client, flag, events, logger, service.WithSearchIndex(index))
	t.Cleanup(coord.Wait)

	return &harness{coord: coord, store: st, backend: backend, flag: flag, events: events}
}
