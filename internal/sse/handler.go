package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const writeTimeout = time.Minute

// Handler streams events as text/event-stream. The optional restaurant query
// parameter narrows the stream to one restaurant; Last-Event-ID resumes it.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
	retry   time.Duration
}

// NewHandler creates a Handler over manager.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger, retry: 3 * time.Second}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	restaurantID, err := optionalInt(r.URL.Query().Get("restaurant"))
	if err != nil || restaurantID < 0 {
		http.Error(w, "invalid restaurant", http.StatusBadRequest)
		return
	}
	lastSeq, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)
	if err != nil {
		lastSeq = 0
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, replay, err := h.manager.Subscribe(restaurantID, lastSeq)
	if err != nil {
		h.logger.Error("subscribe failed", slog.String("error", err.Error()))
		return
	}
	defer h.manager.Unsubscribe(sub.ID)
	log := h.logger.With(slog.String("subscriber", sub.ID))

	if _, err := fmt.Fprintf(w, "retry: %d\n\n", h.retry.Milliseconds()); err != nil {
		return
	}
	for _, evt := range replay {
		if err := h.write(w, rc, evt); err != nil {
			return
		}
	}
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := h.write(w, rc, evt); err != nil {
				log.Debug("stream write failed", slog.String("error", err.Error()))
				return
			}
		case <-sub.Done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// write emits evt as one SSE frame. Heartbeats carry no id so they never
// move the client's resume point.
func (h *Handler) write(w http.ResponseWriter, rc *http.ResponseController, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", evt.Type, err)
	}
	if evt.Seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", evt.Seq); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	// Not every ResponseWriter supports deadlines.
	_ = rc.SetWriteDeadline(time.Now().Add(writeTimeout))
	return nil
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
