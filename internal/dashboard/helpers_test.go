package dashboard

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rickgao/cem-dashboard/internal/connection"
)

// call records one Request or Send.
type call struct {
	msgType string
	data    string // JSON of the payload, "" for nil
	send    bool
}

// fakeRequester answers requests from a table keyed by message type.
type fakeRequester struct {
	mu        sync.Mutex
	calls     []call
	responses map[string]string
	errs      map[string]error
	sendErr   error

	listeners map[string][]func(json.RawMessage)
	removed   int

	state connection.State
	opens uint64
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{
		responses: make(map[string]string),
		errs:      make(map[string]error),
		listeners: make(map[string][]func(json.RawMessage)),
		state:     connection.StateOpen,
		opens:     1,
	}
}

func (f *fakeRequester) LinkState() (connection.State, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.opens
}

// setLink moves the fake transport to state, counting a fresh open.
func (f *fakeRequester) setLink(state connection.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if state == connection.StateOpen && f.state != connection.StateOpen {
		f.opens++
	}
	f.state = state
}

func (f *fakeRequester) record(msgType string, data any, send bool) {
	c := call{msgType: msgType, send: send}
	if data != nil {
		b, _ := json.Marshal(data)
		c.data = string(b)
	}
	f.calls = append(f.calls, c)
}

func (f *fakeRequester) Request(ctx context.Context, msgType string, data any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record(msgType, data, false)
	if err := f.errs[msgType]; err != nil {
		return nil, err
	}
	if resp, ok := f.responses[msgType]; ok {
		return json.RawMessage(resp), nil
	}
	return nil, nil
}

func (f *fakeRequester) Send(msgType string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record(msgType, data, true)
	return f.sendErr
}

func (f *fakeRequester) OnMessage(msgType string, fn func(json.RawMessage)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listeners[msgType] = append(f.listeners[msgType], fn)
	idx := len(f.listeners[msgType]) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.listeners[msgType][idx] != nil {
			f.listeners[msgType][idx] = nil
			f.removed++
		}
	}
}

// push delivers an inbound message to the registered listeners.
func (f *fakeRequester) push(msgType, data string) {
	f.mu.Lock()
	fns := append([]func(json.RawMessage){}, f.listeners[msgType]...)
	f.mu.Unlock()

	for _, fn := range fns {
		if fn != nil {
			fn(json.RawMessage(data))
		}
	}
}

func (f *fakeRequester) lastCall() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return call{}
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeRequester) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
