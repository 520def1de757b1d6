package connection

import "sync"

// inbox is the unbounded FIFO between the read loop and the dispatch
// goroutine. push never blocks, so a slow listener cannot stall reads.
type inbox struct {
	mu    sync.Mutex
	items []Envelope
	ready chan struct{}
}

func newInbox() *inbox {
	return &inbox{ready: make(chan struct{}, 1)}
}

func (q *inbox) push(env Envelope) {
	q.mu.Lock()
	q.items = append(q.items, env)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *inbox) pop() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Envelope{}, false
	}
	env := q.items[0]
	q.items[0] = Envelope{}
	q.items = q.items[1:]
	return env, true
}
