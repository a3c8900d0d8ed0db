// Package app is the UI-facing JSON surface of the client. It exposes the
// sync coordinator under /app with the {success, data, error} envelope and
// streams change events on /app/events.
package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
	"github.com/jpgfer/mws-restaurant-1/internal/http/response"
	"github.com/jpgfer/mws-restaurant-1/internal/search"
	"github.com/jpgfer/mws-restaurant-1/internal/service"
	"github.com/jpgfer/mws-restaurant-1/internal/store"
	"github.com/jpgfer/mws-restaurant-1/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the coordinator over HTTP.
type Handler struct {
	coord  *service.Coordinator
	events http.Handler
	logger *slog.Logger
	runs   sync.WaitGroup
}

// NewHandler creates a Handler. events serves /app/events and may be nil.
func NewHandler(coord *service.Coordinator, events http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{coord: coord, events: events, logger: logger}
}

// Wait blocks until every resync started through the handler has finished.
func (h *Handler) Wait() {
	h.runs.Wait()
}

// Routes returns a router to mount at /app.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/restaurants", h.listRestaurants)
	r.Get("/restaurants/{id}", h.getRestaurant)
	r.Put("/restaurants/{id}/favorite", h.setFavorite)
	r.Get("/restaurants/{id}/reviews", h.listReviews)

	r.Post("/reviews", h.addReview)
	r.Get("/reviews/{id}", h.getReview)
	r.Put("/reviews/{id}", h.editReview)

	r.Get("/neighborhoods", h.neighborhoods)
	r.Get("/cuisines", h.cuisines)
	r.Get("/search", h.search)

	r.Get("/status", h.status)
	r.Post("/resync", h.resync)

	if h.events != nil {
		r.Method(http.MethodGet, "/events", h.events)
	}
	return r
}

// AddReviewRequest is the body of POST /app/reviews.
type AddReviewRequest struct {
	Name         string `json:"name" validate:"required,notblank,max=100"`
	Comments     string `json:"comments" validate:"required,notblank,max=5000"`
	RestaurantID int    `json:"restaurant_id" validate:"gt=0"`
	Rating       int    `json:"rating" validate:"gte=1,lte=5"`
}

// EditReviewRequest is the body of PUT /app/reviews/{id}. SyncStatus names
// the home of the review; it defaults to DETACHED for negative ids and
// SYNCHRONIZED otherwise.
type EditReviewRequest struct {
	SyncStatus domain.SyncStatus `json:"syncStatus,omitempty"`
	Name       string            `json:"name" validate:"required,notblank,max=100"`
	Comments   string            `json:"comments" validate:"required,notblank,max=5000"`
	Rating     int               `json:"rating" validate:"gte=1,lte=5"`
}

// FavoriteRequest is the body of PUT /app/restaurants/{id}/favorite.
type FavoriteRequest struct {
	IsFavorite *bool `json:"is_favorite" validate:"required"`
}

// RestaurantView is a restaurant with the page and image links the UI renders.
type RestaurantView struct {
	*domain.Restaurant
	URL         string `json:"url"`
	Image       string `json:"image"`
	ImageSrcSet string `json:"image_srcset"`
}

func newRestaurantView(r *domain.Restaurant) RestaurantView {
	return RestaurantView{
		Restaurant:  r,
		URL:         domain.URLForRestaurant(*r),
		Image:       domain.ImageURLForRestaurant(*r),
		ImageSrcSet: domain.ImageSrcSet(*r, nil),
	}
}

// StatusResponse reports connectivity and pending work.
type StatusResponse struct {
	Pending store.PendingCounts `json:"pending"`
	Total   int                 `json:"total"`
	Online  bool                `json:"online"`
}

func (h *Handler) listRestaurants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cuisine, neighborhood := q.Get("cuisine"), q.Get("neighborhood")

	var (
		restaurants []domain.Restaurant
		err         error
	)
	switch {
	case cuisine != "" && neighborhood != "":
		restaurants, err = h.coord.ByCuisineAndNeighborhood(r.Context(), cuisine, neighborhood)
	case cuisine != "":
		restaurants, err = h.coord.ByCuisine(r.Context(), cuisine)
	case neighborhood != "":
		restaurants, err = h.coord.ByNeighborhood(r.Context(), neighborhood)
	default:
		restaurants, err = h.coord.GetAll(r.Context())
	}
	h.respond(w, restaurants, err)
}

func (h *Handler) getRestaurant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	restaurant, err := h.coord.GetByID(r.Context(), id)
	if err != nil {
		h.respond(w, nil, err)
		return
	}
	h.respond(w, newRestaurantView(restaurant), nil)
}

func (h *Handler) setFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req FavoriteRequest
	if !h.decode(w, r, &req) {
		return
	}
	restaurant, err := h.coord.SetFavorite(r.Context(), id, *req.IsFavorite)
	h.respond(w, restaurant, err)
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	reviews, err := service.NewSession(h.coord, id).Reviews(r.Context())
	h.respond(w, reviews, err)
}

func (h *Handler) addReview(w http.ResponseWriter, r *http.Request) {
	var req AddReviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	review, err := h.coord.AddReview(r.Context(), req.RestaurantID, req.Name, req.Rating, req.Comments)
	if err != nil {
		response.HandleError(w, err, h.logger)
		return
	}
	response.Created(w, review, h.logger)
}

func (h *Handler) getReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	review, err := h.coord.FindReview(r.Context(), id)
	h.respond(w, review, err)
}

func (h *Handler) editReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req EditReviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	status := req.SyncStatus
	switch {
	case status == "" && id < 0:
		status = domain.SyncStatusDetached
	case status == "":
		status = domain.SyncStatusSynchronized
	case !status.Valid():
		response.HandleError(w, domainerrors.Validationf("unknown sync status %q", status), h.logger)
		return
	}

	review, err := h.coord.EditReview(r.Context(), id, status, req.Name, req.Rating, req.Comments)
	h.respond(w, review, err)
}

func (h *Handler) neighborhoods(w http.ResponseWriter, r *http.Request) {
	names, err := h.coord.Neighborhoods(r.Context())
	h.respond(w, names, err)
}

func (h *Handler) cuisines(w http.ResponseWriter, r *http.Request) {
	names, err := h.coord.Cuisines(r.Context())
	h.respond(w, names, err)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := search.SearchParams{
		Query:        q.Get("q"),
		Cuisine:      q.Get("cuisine"),
		Neighborhood: q.Get("neighborhood"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			response.BadRequest(w, "limit must be a non-negative integer", h.logger)
			return
		}
		params.Limit = limit
	}
	restaurants, err := h.coord.SearchWith(r.Context(), params)
	h.respond(w, restaurants, err)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	pending, err := h.coord.Pending(r.Context())
	if err != nil {
		response.HandleError(w, err, h.logger)
		return
	}
	response.Success(w, StatusResponse{
		Online:  h.coord.IsOnline(),
		Pending: pending,
		Total:   pending.Total(),
	}, h.logger)
}

// resync starts a reconciliation run detached from the request.
func (h *Handler) resync(w http.ResponseWriter, r *http.Request) {
	if !h.coord.IsOnline() {
		response.Error(w, http.StatusServiceUnavailable, "backend is offline", h.logger)
		return
	}
	ctx := context.WithoutCancel(r.Context())
	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		if _, err := h.coord.OnReconnect(ctx); err != nil {
			h.logger.Error("manual resync failed", "error", err)
		}
	}()
	response.Accepted(w, "resync started", h.logger)
}

func (h *Handler) respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		response.HandleError(w, err, h.logger)
		return
	}
	response.Success(w, data, h.logger)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id == 0 {
		response.BadRequest(w, "invalid id "+strconv.Quote(raw), h.logger)
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		response.BadRequest(w, "invalid request body: "+err.Error(), h.logger)
		return false
	}
	if err := validation.Default().Validate(dst); err != nil {
		response.HandleError(w, err, h.logger)
		return false
	}
	return true
}
