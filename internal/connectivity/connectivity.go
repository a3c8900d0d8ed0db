// Package connectivity tracks whether the backend is reachable.
//
// The sync layer never probes the network itself. It reads a Provider, which
// tests replace with a Flag they flip by hand and production drives with a
// Prober.
package connectivity

import (
	"sync"
	"sync/atomic"
)

// Provider reports the online state and notifies on changes.
type Provider interface {
	IsOnline() bool
	// Subscribe registers fn for state transitions and returns a function
	// that removes it.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Flag is a Provider whose state is set explicitly.
// Subscribers are called only when the state actually changes.
type Flag struct {
	online atomic.Bool

	mu          sync.Mutex
	subscribers map[uint64]func(bool)
	nextID      uint64
}

// NewFlag returns a Flag with the given initial state.
func NewFlag(online bool) *Flag {
	f := &Flag{subscribers: make(map[uint64]func(bool))}
	f.online.Store(online)
	return f
}

// IsOnline implements Provider.
func (f *Flag) IsOnline() bool {
	return f.online.Load()
}

// Subscribe implements Provider.
func (f *Flag) Subscribe(fn func(online bool)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subscribers[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
	}
}

// Set updates the state and reports whether it changed.
func (f *Flag) Set(online bool) bool {
	if f.online.Swap(online) == online {
		return false
	}

	// Snapshot so a subscriber may unsubscribe from inside its callback.
	f.mu.Lock()
	subs := make([]func(bool), 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
	return true
}

// SetOnline marks the flag online.
func (f *Flag) SetOnline() bool { return f.Set(true) }

// SetOffline marks the flag offline.
func (f *Flag) SetOffline() bool { return f.Set(false) }
