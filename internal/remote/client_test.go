package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL}, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	require.NoError(t, err)
	// Override HTTP client to use test server
	client.http = server.Client()
	t.Cleanup(client.Close)

	return client, server
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New(Config{BaseURL: "/restaurants"}, nil)
	assert.Error(t, err)
}

func TestClient_FetchCollection(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    bool
		wantStatus int
	}{
		{name: "ok", statusCode: http.StatusOK, body: `[{"id":1}]`},
		{name: "created is not ok for reads", statusCode: http.StatusCreated, body: `[]`, wantErr: true, wantStatus: 201},
		{name: "not found", statusCode: http.StatusNotFound, body: `{"error":"nope"}`, wantErr: true, wantStatus: 404},
		{name: "server error", statusCode: http.StatusInternalServerError, wantErr: true, wantStatus: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/restaurants", r.URL.Path)
				w.WriteHeader(tt.statusCode)
				_, _ = io.WriteString(w, tt.body)
			})

			raw, err := client.FetchCollection(context.Background(), "/restaurants", nil)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.JSONEq(t, tt.body, string(raw))
				return
			}

			require.Error(t, err)
			assert.Nil(t, raw)
			assert.ErrorIs(t, err, domainerrors.ErrRemote)

			var remoteErr *Error
			require.ErrorAs(t, err, &remoteErr)
			assert.Equal(t, tt.wantStatus, remoteErr.Status)
			assert.Equal(t, "fetch", remoteErr.Op)

			status, ok := domainerrors.RemoteStatus(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestClient_NetworkFailureHasZeroStatus(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server.Close()

	_, err := client.Restaurants(context.Background())
	require.Error(t, err)

	var remoteErr *Error
	require.ErrorAs(t, err, &remoteErr)
	assert.True(t, remoteErr.IsNetwork())
	assert.Equal(t, 0, remoteErr.Status)
	assert.ErrorIs(t, err, domainerrors.ErrRemote)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client, err := New(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Restaurant(context.Background(), 1)
	var remoteErr *Error
	require.ErrorAs(t, err, &remoteErr)
	assert.True(t, remoteErr.IsNetwork())
}

func TestClient_CreateRequires201(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"id": 3}`)
	})

	_, err := client.CreateReview(context.Background(), &domain.Review{RestaurantID: 1, Name: "a", Rating: 3, Comments: "b"})
	require.Error(t, err)
	status, _ := domainerrors.RemoteStatus(err)
	assert.Equal(t, http.StatusOK, status)
}

func TestClient_CreateReview(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reviews", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{
			"restaurant_id": float64(2),
			"name":          "Ana",
			"rating":        float64(5),
			"comments":      "Superb",
		}, body)

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 31, "restaurant_id": 2, "name": "Ana", "rating": 5, "comments": "Superb", "createdAt": 1534000000000, "updatedAt": 1534000000000}`)
	})

	review := &domain.Review{ID: -1, RestaurantID: 2, Name: "Ana", Rating: 5, Comments: "Superb"}
	created, err := client.CreateReview(context.Background(), review)
	require.NoError(t, err)
	assert.Equal(t, 31, created.ID)
	assert.Equal(t, int64(1534000000000), created.UpdatedAt.Millis())
}

func TestClient_SetFavoriteUsesQuery(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/restaurants/7", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("is_favorite"))
		assert.Empty(t, r.Header.Get("Content-Type"))

		_, _ = io.WriteString(w, `{"id": 7, "name": "Emily", "is_favorite": "true"}`)
	})

	r, err := client.SetFavorite(context.Background(), 7, true)
	require.NoError(t, err)
	assert.True(t, r.IsFavorite.Bool())
}

func TestClient_ReviewsFor(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reviews", r.URL.Path)
		assert.Equal(t, "4", r.URL.Query().Get("restaurant_id"))
		_, _ = io.WriteString(w, `[{"id": 1, "restaurant_id": 4, "name": "a", "rating": 2, "comments": "x"}]`)
	})

	reviews, err := client.ReviewsFor(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 4, reviews[0].RestaurantID)
}

func TestClient_UpdateReview(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/reviews/12", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "restaurant_id")
		assert.Equal(t, "Edited", body["comments"])

		_, _ = io.WriteString(w, `{"id": 12, "restaurant_id": 4, "name": "a", "rating": 2, "comments": "Edited"}`)
	})

	updated, err := client.UpdateReview(context.Background(), &domain.Review{ID: 12, RestaurantID: 4, Name: "a", Rating: 2, Comments: "Edited"})
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Comments)
}

func TestClient_BaseURLWithPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL + "/api/"}, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()))
}

func TestClient_DecodeFailureIsNotRemote(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"not": "a list"}`)
	})

	_, err := client.Restaurants(context.Background())
	require.Error(t, err)
	var remoteErr *Error
	assert.False(t, errors.As(err, &remoteErr))
}
