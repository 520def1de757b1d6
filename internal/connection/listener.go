package connection

import (
	"encoding/json"
	"sync"
)

// Listener receives every inbound message and filters by type itself.
// Listeners run one at a time on the dispatch goroutine, in receive order.
// A listener that blocks, for example on Request, holds back later messages
// for every listener until it returns, but the request's own reply still
// arrives.
type Listener interface {
	HandleMessage(msgType string, data json.RawMessage)
}

// ListenerFunc is a function adapter for Listener.
type ListenerFunc func(msgType string, data json.RawMessage)

func (f ListenerFunc) HandleMessage(msgType string, data json.RawMessage) {
	f(msgType, data)
}

// EnvelopeListener is implemented by listeners that need the whole
// envelope (timestamp, correlation id). Dispatch calls HandleEnvelope
// instead of HandleMessage when it is available.
type EnvelopeListener interface {
	Listener
	HandleEnvelope(env Envelope)
}

type listenerEntry struct {
	id       uint64
	listener Listener
}

// registry keeps listeners in insertion order. Removal during dispatch is
// safe because dispatch iterates over a snapshot.
type registry struct {
	mu      sync.Mutex
	nextID  uint64
	entries []listenerEntry
}

func (r *registry) add(l Listener) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.entries = append(r.entries, listenerEntry{id: r.nextID, listener: l})
	return r.nextID
}

func (r *registry) remove(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (r *registry) snapshot() []listenerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]listenerEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
