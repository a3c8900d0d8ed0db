package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpgfer/mws-restaurant-1/internal/api"
	"github.com/jpgfer/mws-restaurant-1/internal/app"
	"github.com/jpgfer/mws-restaurant-1/internal/connectivity"
	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	"github.com/jpgfer/mws-restaurant-1/internal/remote"
	"github.com/jpgfer/mws-restaurant-1/internal/search"
	"github.com/jpgfer/mws-restaurant-1/internal/service"
	"github.com/jpgfer/mws-restaurant-1/internal/store"
	"github.com/jpgfer/mws-restaurant-1/internal/store/sqlite"
)

type envelope struct {
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details"`
	Success bool              `json:"success"`
}

type fixture struct {
	router  http.Handler
	coord   *service.Coordinator
	local   *store.Store
	backend *sqlite.Store
	flag    *connectivity.Flag
}

// setup runs the real backend API over SQLite behind the remote client and
// mounts the facade on a chi router, as the serve command does.
func setup(t *testing.T, online bool) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	backend, err := sqlite.Open(filepath.Join(t.TempDir(), "backend.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	_, err = backend.UpsertRestaurants(context.Background(), []domain.Restaurant{
		{ID: 1, Name: "Mission Chinese Food", Neighborhood: "Manhattan", CuisineType: "Asian"},
		{ID: 2, Name: "Emily", Neighborhood: "Brooklyn", CuisineType: "Pizza"},
		{ID: 3, Name: "Kang Ho Dong Baekjeong", Neighborhood: "Manhattan", CuisineType: "Asian"},
	})
	require.NoError(t, err)

	apiServer := api.NewServer(backend, api.Config{}, logger)
	t.Cleanup(apiServer.Close)
	srv := httptest.NewServer(apiServer)
	t.Cleanup(srv.Close)

	client, err := remote.New(remote.Config{BaseURL: srv.URL, RPS: -1, Timeout: 5 * time.Second}, logger)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	local, err := store.Open("", logger, store.WithInMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	index, err := search.NewSearchIndex(search.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	flag := connectivity.NewFlag(online)
	coord := service.NewCoordinator(local, client, flag, nil, logger, service.WithSearchIndex(index))
	t.Cleanup(coord.Wait)

	handler := app.NewHandler(coord, nil, logger)
	t.Cleanup(handler.Wait)
	r := chi.NewRouter()
	r.Mount("/app", handler.Routes())

	return &fixture{router: r, coord: coord, local: local, backend: backend, flag: flag}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestRestaurants_OnlineThenOffline(t *testing.T) {
	f := setup(t, true)

	w, env := f.do(t, http.MethodGet, "/app/restaurants", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	var list []domain.Restaurant
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 3)

	f.flag.SetOffline()
	w, env = f.do(t, http.MethodGet, "/app/restaurants?neighborhood=Manhattan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 2)

	w, env = f.do(t, http.MethodGet, "/app/restaurants/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var one domain.Restaurant
	require.NoError(t, json.Unmarshal(env.Data, &one))
	assert.Equal(t, "Emily", one.Name)
}

func TestRestaurant_CarriesPageAndImageLinks(t *testing.T) {
	f := setup(t, true)

	w, env := f.do(t, http.MethodGet, "/app/restaurants/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Name        string `json:"name"`
		URL         string `json:"url"`
		Image       string `json:"image"`
		ImageSrcSet string `json:"image_srcset"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "Emily", view.Name)
	assert.Equal(t, "./restaurant.html?id=2", view.URL)
	assert.Equal(t, "/img/2.webp", view.Image)
	assert.Equal(t, "/img/2-400.jpg 400w, /img/2-600.jpg 600w, /img/2-800.jpg 800w", view.ImageSrcSet)
}

func TestRestaurant_InvalidID(t *testing.T) {
	f := setup(t, true)

	w, env := f.do(t, http.MethodGet, "/app/restaurants/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestFilters(t *testing.T) {
	f := setup(t, true)

	_, env := f.do(t, http.MethodGet, "/app/neighborhoods", nil)
	var names []string
	require.NoError(t, json.Unmarshal(env.Data, &names))
	assert.ElementsMatch(t, []string{"Manhattan", "Brooklyn"}, names)

	_, env = f.do(t, http.MethodGet, "/app/cuisines", nil)
	require.NoError(t, json.Unmarshal(env.Data, &names))
	assert.ElementsMatch(t, []string{"Asian", "Pizza"}, names)

	_, env = f.do(t, http.MethodGet, "/app/restaurants?cuisine=Asian&neighborhood=Manhattan", nil)
	var list []domain.Restaurant
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 2)
}

func TestSearch(t *testing.T) {
	f := setup(t, true)
	_, _ = f.do(t, http.MethodGet, "/app/restaurants", nil)

	w, env := f.do(t, http.MethodGet, "/app/search?q=emily", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Restaurant
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.NotEmpty(t, list)
	assert.Equal(t, 2, list[0].ID)

	w, _ = f.do(t, http.MethodGet, "/app/search?q=emily&limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetFavorite_PushesToBackend(t *testing.T) {
	f := setup(t, true)
	_, _ = f.do(t, http.MethodGet, "/app/restaurants", nil)

	w, env := f.do(t, http.MethodPut, "/app/restaurants/1/favorite", map[string]bool{"is_favorite": true})
	require.Equal(t, http.StatusOK, w.Code)
	var r domain.Restaurant
	require.NoError(t, json.Unmarshal(env.Data, &r))
	assert.True(t, r.IsFavorite.Bool())

	f.coord.Wait()
	stored, err := f.backend.GetRestaurant(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, stored.IsFavorite.Bool())
}

func TestSetFavorite_RequiresFlag(t *testing.T) {
	f := setup(t, true)

	w, env := f.do(t, http.MethodPut, "/app/restaurants/1/favorite", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Details, "is_favorite")
}

func TestAddReview_Online(t *testing.T) {
	f := setup(t, true)

	w, env := f.do(t, http.MethodPost, "/app/reviews", map[string]any{
		"restaurant_id": 1, "name": "Ana", "rating": 4, "comments": "Great noodles",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var review domain.Review
	require.NoError(t, json.Unmarshal(env.Data, &review))
	assert.Positive(t, review.ID)
	assert.Equal(t, domain.SyncStatusSynchronized, review.SyncStatus)

	stored, err := f.backend.ListReviews(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestAddReview_ValidationDetails(t *testing.T) {
	f := setup(t, true)

	w, env := f.do(t, http.MethodPost, "/app/reviews", map[string]any{
		"restaurant_id": 1, "name": "Ana", "rating": 9, "comments": "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION", env.Code)
	assert.Contains(t, env.Details, "rating")
}

func TestOfflineReview_EditThenResync(t *testing.T) {
	f := setup(t, false)

	w, env := f.do(t, http.MethodPost, "/app/reviews", map[string]any{
		"restaurant_id": 2, "name": "Bo", "rating": 2, "comments": "Cold pizza",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var review domain.Review
	require.NoError(t, json.Unmarshal(env.Data, &review))
	require.Negative(t, review.ID)
	assert.Equal(t, domain.SyncStatusDetached, review.SyncStatus)

	w, env = f.do(t, http.MethodPut, "/app/reviews/"+itoa(review.ID), map[string]any{
		"name": "Bo", "rating": 3, "comments": "Better reheated",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &review))
	assert.Equal(t, 3, review.Rating)
	assert.Equal(t, domain.SyncStatusDetached, review.SyncStatus)

	_, env = f.do(t, http.MethodGet, "/app/status", nil)
	var status app.StatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.False(t, status.Online)
	assert.Equal(t, 1, status.Pending.DetachedReviews)

	w, _ = f.do(t, http.MethodPost, "/app/resync", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	f.flag.SetOnline()
	report, err := f.coord.OnReconnect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.DetachedReviews.Synced)

	stored, err := f.backend.ListReviews(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Better reheated", stored[0].Comments)

	_, env = f.do(t, http.MethodGet, "/app/restaurants/2/reviews", nil)
	var reviews []domain.Review
	require.NoError(t, json.Unmarshal(env.Data, &reviews))
	require.Len(t, reviews, 1)
	assert.Equal(t, stored[0].ID, reviews[0].ID)
}

func TestEditReview_UnknownStatus(t *testing.T) {
	f := setup(t, true)

	w, env := f.do(t, http.MethodPut, "/app/reviews/5", map[string]any{
		"syncStatus": "PENDING", "name": "Ana", "rating": 4, "comments": "ok",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION", env.Code)
}

func TestGetReview_NotFound(t *testing.T) {
	f := setup(t, true)

	w, env := f.do(t, http.MethodGet, "/app/reviews/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestResync_Accepted(t *testing.T) {
	f := setup(t, true)

	w, env := f.do(t, http.MethodPost, "/app/resync", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, env.Success)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
