package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jpgfer/mws-restaurant-1/internal/id"
)

const (
	defaultBacklog   = 256
	clientBufferSize = 64
	queueSize        = 512
)

// Subscriber is a connected stream. It only receives events that match its
// restaurant filter.
type Subscriber struct {
	ConnectedAt  time.Time
	Events       chan Event
	Done         chan struct{}
	ID           string
	RestaurantID int
}

// Manager fans sync events out to subscribers and keeps a bounded backlog so
// a reconnecting stream can resume from the last sequence it saw.
type Manager struct {
	subscribers map[string]*Subscriber
	queue       chan Event
	logger      *slog.Logger

	// backlog is a ring of the most recent broadcast events in Seq order.
	backlog []Event
	next    int
	seq     uint64
	mu      sync.RWMutex

	heartbeat time.Duration
	running   sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBacklog sets how many events are retained for replay.
func WithBacklog(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.backlog = make([]Event, 0, n)
		}
	}
}

// WithHeartbeat sets the keepalive interval.
func WithHeartbeat(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.heartbeat = d
		}
	}
}

// NewManager creates a Manager. Start must run for events to be delivered.
func NewManager(logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		subscribers: make(map[string]*Subscriber),
		queue:       make(chan Event, queueSize),
		backlog:     make([]Event, 0, defaultBacklog),
		logger:      logger,
		heartbeat:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs the broadcast loop until ctx is done or Shutdown drains the queue.
func (m *Manager) Start(ctx context.Context) {
	m.running.Add(1)
	defer m.running.Done()

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-m.queue:
			if !ok {
				return
			}
			m.publish(evt)
		case <-ticker.C:
			m.deliver(NewHeartbeatEvent())
		case <-ctx.Done():
			m.dropAll()
			return
		}
	}
}

// Shutdown stops accepting events, publishes what is queued and disconnects
// every subscriber.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.running.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("event queue not drained before shutdown deadline")
	}

	// Start may never have run; publish leftovers here in that case.
	for evt := range m.queue {
		m.publish(evt)
	}
	m.dropAll()
	return nil
}

// Emit queues an event. Values that are not an Event are dropped, as are
// events emitted after Shutdown or while the queue is full.
func (m *Manager) Emit(event any) {
	evt, ok := event.(Event)
	if !ok {
		m.logger.Error("discarding non-event value", slog.Any("value", event))
		return
	}

	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- evt:
	default:
		m.logger.Error("event queue full", slog.String("event_type", string(evt.Type)))
	}
}

// publish stamps evt with the next sequence, records it and delivers it.
func (m *Manager) publish(evt Event) {
	m.mu.Lock()
	m.seq++
	evt.Seq = m.seq
	if len(m.backlog) < cap(m.backlog) {
		m.backlog = append(m.backlog, evt)
	} else {
		m.backlog[m.next] = evt
		m.next = (m.next + 1) % cap(m.backlog)
	}
	m.mu.Unlock()

	m.deliver(evt)
}

func (m *Manager) deliver(evt Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var dropped int
	for _, sub := range m.subscribers {
		if !evt.Matches(sub.RestaurantID) {
			continue
		}
		select {
		case sub.Events <- evt:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		m.logger.Warn("slow subscribers missed an event",
			slog.String("event_type", string(evt.Type)),
			slog.Uint64("seq", evt.Seq),
			slog.Int("dropped", dropped))
	}
}

// Subscribe registers a stream filtered on restaurantID (zero for all) and
// returns the backlog events after lastSeq that it should replay first.
func (m *Manager) Subscribe(restaurantID int, lastSeq uint64) (*Subscriber, []Event, error) {
	subID, err := id.Generate(id.PrefixSSEClient)
	if err != nil {
		return nil, nil, err
	}
	sub := &Subscriber{
		ID:           subID,
		RestaurantID: restaurantID,
		Events:       make(chan Event, clientBufferSize),
		Done:         make(chan struct{}),
		ConnectedAt:  time.Now(),
	}

	m.mu.Lock()
	var replay []Event
	if lastSeq > 0 {
		for _, evt := range m.ordered() {
			if evt.Seq > lastSeq && evt.Matches(restaurantID) {
				replay = append(replay, evt)
			}
		}
	}
	m.subscribers[sub.ID] = sub
	count := len(m.subscribers)
	m.mu.Unlock()

	m.logger.Debug("subscriber connected",
		slog.String("subscriber", sub.ID),
		slog.Int("restaurant_id", restaurantID),
		slog.Int("replayed", len(replay)),
		slog.Int("subscribers", count))
	return sub, replay, nil
}

// Unsubscribe removes a subscriber and closes its channels.
func (m *Manager) Unsubscribe(subID string) {
	m.mu.Lock()
	sub, ok := m.subscribers[subID]
	if ok {
		delete(m.subscribers, subID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	close(sub.Done)
	close(sub.Events)
	m.logger.Debug("subscriber disconnected",
		slog.String("subscriber", subID),
		slog.Duration("connected_for", time.Since(sub.ConnectedAt)))
}

// Subscribers returns the number of connected streams.
func (m *Manager) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

// LastSeq returns the sequence of the most recently published event.
func (m *Manager) LastSeq() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seq
}

// ordered returns the backlog oldest first. Callers hold mu.
func (m *Manager) ordered() []Event {
	if len(m.backlog) < cap(m.backlog) {
		return m.backlog
	}
	out := make([]Event, 0, len(m.backlog))
	out = append(out, m.backlog[m.next:]...)
	return append(out, m.backlog[:m.next]...)
}

func (m *Manager) dropAll() {
	m.mu.Lock()
	subs := m.subscribers
	m.subscribers = make(map[string]*Subscriber)
	m.mu.Unlock()

	for _, sub := range subs {
		close(sub.Done)
		close(sub.Events)
	}
}
