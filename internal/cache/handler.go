package cache

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// HeaderSource reports where the interceptor found a response.
const HeaderSource = "X-Cache-Source"

// Handler serves the interceptor over HTTP as one registered client.
// Network errors become 502 Bad Gateway and offline cache misses 504
// Gateway Timeout.
type Handler struct {
	container *Container
	client    *Client
	logger    *slog.Logger
}

// NewHandler registers a client with the container and serves through it.
func NewHandler(container *Container, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		container: container,
		client:    container.Register(),
		logger:    logger,
	}
}

// Client returns the handler's registered client.
func (h *Handler) Client() *Client {
	return h.client
}

// Close unregisters the handler's client.
func (h *Handler) Close(ctx context.Context) error {
	return h.container.Unregister(ctx, h.client)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := h.container.Fetch(r.Context(), h.client, r)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrCacheMiss):
			status = http.StatusGatewayTimeout
		case errors.Is(err, ErrNetwork):
			status = http.StatusBadGateway
		}
		h.logger.Warn("intercepted request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
		http.Error(w, http.StatusText(status), status)
		return
	}

	header := w.Header()
	for name, values := range resp.Header {
		header[name] = values
	}
	header.Set(HeaderSource, string(resp.Source))
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.Debug("write intercepted response", "path", r.URL.Path, "error", err)
	}
}
