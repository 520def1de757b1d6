package connection

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request sends msgType and waits for the first acceptable response (see
// ResponseTypes), using Config.RequestTimeout as the deadline.
func (c *Client) Request(ctx context.Context, msgType string, data any) (json.RawMessage, error) {
	return c.RequestWithTimeout(ctx, msgType, data, c.cfg.RequestTimeout)
}

// RequestWithTimeout is Request with an explicit deadline.
//
// The call settles exactly once: with the response data, with a
// *RemoteError when the backend answers "error", with a
// *RequestTimeoutError when the deadline passes, or with ctx.Err(). The
// one-shot listener is always removed by the time it returns.
//
// A send dropped because the transport is not open does not fail the call;
// it waits for its deadline like any unanswered request.
//
// Responses are matched on the read goroutine, so calling Request from
// inside a listener is safe.
func (c *Client) RequestWithTimeout(ctx context.Context, msgType string, data any, timeout time.Duration) (json.RawMessage, error) {
	p := &pendingRequest{
		requestType: msgType,
		accept:      responseSet(msgType),
		done:        make(chan requestResult, 1),
	}
	if c.cfg.CorrelationIDs {
		p.id = uuid.NewString()
	}

	p.mu.Lock()
	p.remove = c.AddListener(p)
	p.timer = c.scheduler.AfterFunc(timeout, func() {
		p.settle(nil, &RequestTimeoutError{RequestType: msgType, Timeout: timeout})
	})
	p.mu.Unlock()

	if err := c.send(msgType, data, p.id); err != nil {
		var dropped *SendDroppedError
		var transport *TransportError
		if !errors.As(err, &dropped) && !errors.As(err, &transport) {
			p.settle(nil, err)
		}
	}

	select {
	case res := <-p.done:
		return res.data, res.err
	case <-ctx.Done():
		p.settle(nil, ctx.Err())
		res := <-p.done
		return res.data, res.err
	}
}

type requestResult struct {
	data json.RawMessage
	err  error
}

// pendingRequest is the correlation record behind one Request call. It is
// registered as a listener until it settles.
type pendingRequest struct {
	requestType string
	accept      map[string]struct{}
	id          string

	mu      sync.Mutex
	settled bool
	timer   Task
	remove  func()
	done    chan requestResult
}

func (p *pendingRequest) HandleMessage(msgType string, data json.RawMessage) {
	p.HandleEnvelope(Envelope{Type: msgType, Data: data})
}

func (p *pendingRequest) HandleEnvelope(env Envelope) {
	if _, ok := p.accept[env.Type]; !ok {
		return
	}
	if p.id != "" && env.ID != p.id {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.settled || !env.claim() {
		return
	}

	if env.Type == TypeError {
		p.settleLocked(nil, &RemoteError{RequestType: p.requestType, Message: remoteMessage(env.Data)})
		return
	}
	p.settleLocked(env.Data, nil)
}

// settle delivers the first outcome and drops the rest.
func (p *pendingRequest) settle(data json.RawMessage, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settleLocked(data, err)
}

func (p *pendingRequest) settleLocked(data json.RawMessage, err error) bool {
	if p.settled {
		return false
	}
	p.settled = true

	if p.timer != nil {
		p.timer.Stop()
	}
	if p.remove != nil {
		p.remove()
	}
	p.done <- requestResult{data: data, err: err}
	return true
}

// remoteMessage extracts the description from an "error" payload.
func remoteMessage(data json.RawMessage) string {
	var payload errorPayload
	if len(data) > 0 && json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return "Unknown error"
}
