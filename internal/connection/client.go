package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Client maintains the single connection to the dashboard backend.
//
// State machine:
//
//	Disconnected --Connect--> Connecting --open--> Open
//	Connecting/Open --close signal--> Disconnected (+ reconnect unless requested)
//	Connecting/Open --Disconnect--> Closing --close signal--> Disconnected
//
// The listener registry and the reconnect timer slot survive reconnects.
//
// Inbound frames are decoded on the read goroutine, which settles pending
// requests directly and queues the envelope for a single dispatch goroutine
// that runs listeners in receive order. A listener may therefore call
// Request and wait for the reply; messages behind it are dispatched once it
// returns.
type Client struct {
	cfg       Config
	dialer    Dialer
	scheduler Scheduler
	logger    *slog.Logger

	listeners registry

	inbox        *inbox
	dispatchOnce sync.Once
	quit         chan struct{} // closed by Close, stops the dispatch goroutine

	// Write serialization
	writeMu sync.Mutex

	// State
	mu                  sync.Mutex
	state               State
	conn                Conn
	attempt             uint64 // Identifies the current transport attempt
	opens               uint64
	cancelDial          context.CancelFunc
	intentionallyClosed bool
	connectAfterClose   bool
	reconnectTask       Task
	reconnectSeq        uint64
	closed              bool
	stateChanged        chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithScheduler replaces the wall-clock scheduler used for reconnects and
// request deadlines.
func WithScheduler(s Scheduler) Option {
	return func(c *Client) {
		c.scheduler = s
	}
}

// NewClient creates a disconnected Client. Call Connect to start it.
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:          cfg,
		scheduler:    wallClock{},
		logger:       logger,
		inbox:        newInbox(),
		quit:         make(chan struct{}),
		stateChanged: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.dialer == nil {
		c.dialer = NewWebSocketDialer(cfg, logger)
	}

	return c
}

// Connect starts a connection attempt. It is a no-op while a transport
// handle is already connecting or open. If the previous handle is still
// closing, the attempt starts as soon as its close signal arrives.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.connectLocked()
	return nil
}

// connectLocked must be called with c.mu held.
func (c *Client) connectLocked() {
	switch c.state {
	case StateOpen, StateConnecting:
		return
	case StateClosing:
		c.connectAfterClose = true
		return
	}

	c.dispatchOnce.Do(func() { go c.dispatchLoop() })

	c.intentionallyClosed = false
	c.attempt++
	attempt := c.attempt

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.setStateLocked(StateConnecting)

	c.logger.Info("connecting", "url", c.cfg.URL, "attempt", attempt)

	go c.run(ctx, attempt)
}

// Disconnect closes the connection and suppresses the reconnect that would
// otherwise follow. In-flight requests are not cancelled; they settle by
// response or timeout.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.intentionallyClosed = true
	c.connectAfterClose = false
	c.cancelReconnectLocked()

	var conn Conn
	switch c.state {
	case StateConnecting:
		c.cancelDial()
		c.setStateLocked(StateClosing)
	case StateOpen:
		conn = c.conn
		c.setStateLocked(StateClosing)
	}
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug("close transport", "error", err)
		}
	}
}

// Close disconnects and rejects further Connect calls. Safe to call twice.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.quit)
	c.mu.Unlock()

	c.Disconnect()
	return nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LinkState returns the lifecycle state together with the number of times
// the transport has opened. A changed count means the link dropped and came
// back in between.
func (c *Client) LinkState() (State, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.opens
}

// IsConnected reports whether the transport is open.
func (c *Client) IsConnected() bool {
	return c.State() == StateOpen
}

// WaitForState blocks until the client is in want or ctx is done.
func (c *Client) WaitForState(ctx context.Context, want State) error {
	for {
		c.mu.Lock()
		state := c.state
		changed := c.stateChanged
		c.mu.Unlock()

		if state == want {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s (state %s): %w", want, state, ctx.Err())
		case <-changed:
		}
	}
}

// AddListener registers l for every inbound message and returns the
// function that removes it.
func (c *Client) AddListener(l Listener) (remove func()) {
	id := c.listeners.add(l)
	return func() {
		c.listeners.remove(id)
	}
}

// OnMessage registers fn for messages of exactly msgType.
func (c *Client) OnMessage(msgType string, fn func(data json.RawMessage)) (remove func()) {
	return c.AddListener(ListenerFunc(func(t string, data json.RawMessage) {
		if t == msgType {
			fn(data)
		}
	}))
}

// ListenerCount returns the number of registered listeners.
func (c *Client) ListenerCount() int {
	return c.listeners.len()
}

// Send transmits one envelope if the transport is open. Otherwise the
// message is dropped and a *SendDroppedError is returned.
func (c *Client) Send(msgType string, data any) error {
	return c.send(msgType, data, "")
}

func (c *Client) send(msgType string, data any, id string) error {
	payload, err := encodeEnvelope(msgType, data, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.logger.Warn("not connected, message not sent", "type", msgType)
		return &SendDroppedError{Type: msgType}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.WriteMessage(payload); err != nil {
		c.logger.Warn("send failed", "type", msgType, "error", err)
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// run dials, then reads until the handle ends. Frames go through receive
// in read order.
func (c *Client) run(ctx context.Context, attempt uint64) {
	conn, err := c.dialer.Dial(ctx, c.cfg.URL)
	if err != nil {
		c.handleClose(attempt, &TransportError{Op: "dial", Err: err})
		return
	}

	if !c.handleOpen(attempt, conn) {
		conn.Close()
		c.handleClose(attempt, nil)
		return
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(attempt, &TransportError{Op: "read", Err: err})
			return
		}
		c.receive(data)
	}
}

// handleOpen installs conn as the live handle. It reports false if the
// attempt was abandoned while dialing.
func (c *Client) handleOpen(attempt uint64, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if attempt != c.attempt || c.state != StateConnecting {
		return false
	}

	c.conn = conn
	c.cancelDial()
	c.cancelDial = nil
	c.cancelReconnectLocked()
	c.opens++
	c.setStateLocked(StateOpen)

	c.logger.Info("connected", "url", c.cfg.URL, "attempt", attempt)
	return true
}

// handleClose is the transport close signal for attempt.
func (c *Client) handleClose(attempt uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if attempt != c.attempt {
		return
	}

	if err != nil && !c.intentionallyClosed {
		c.logger.Warn("connection error", "url", c.cfg.URL, "error", err)
	}

	c.conn = nil
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	c.setStateLocked(StateDisconnected)
	c.logger.Info("disconnected", "url", c.cfg.URL, "intentional", c.intentionallyClosed)

	switch {
	case c.closed:
	case c.connectAfterClose:
		c.connectAfterClose = false
		c.connectLocked()
	case !c.intentionallyClosed:
		c.scheduleReconnectLocked()
	}
}

// scheduleReconnectLocked arms the reconnect timer unless one is pending.
func (c *Client) scheduleReconnectLocked() {
	if c.reconnectTask != nil {
		return
	}

	c.reconnectSeq++
	seq := c.reconnectSeq
	delay := c.cfg.ReconnectInterval

	c.logger.Info("reconnect scheduled", "delay", delay)
	c.reconnectTask = c.scheduler.AfterFunc(delay, func() {
		c.fireReconnect(seq)
	})
}

func (c *Client) fireReconnect(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reconnectTask == nil || seq != c.reconnectSeq {
		return
	}
	c.reconnectTask = nil

	if c.closed || c.intentionallyClosed {
		return
	}
	c.connectLocked()
}

func (c *Client) cancelReconnectLocked() {
	if c.reconnectTask == nil {
		return
	}
	c.reconnectTask.Stop()
	c.reconnectTask = nil
	c.reconnectSeq++
}

func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	close(c.stateChanged)
	c.stateChanged = make(chan struct{})
}

// receive decodes one frame, offers it to the pending requests in
// registration order, then queues it for the listeners.
func (c *Client) receive(data []byte) {
	env, err := decodeEnvelope(data)
	if err != nil {
		c.logger.Warn("failed to parse message", "error", err)
		return
	}

	for _, e := range c.listeners.snapshot() {
		if p, ok := e.listener.(*pendingRequest); ok {
			p.HandleEnvelope(env)
		}
	}
	c.inbox.push(env)
}

// dispatchLoop delivers queued envelopes until Close.
func (c *Client) dispatchLoop() {
	for {
		for {
			env, ok := c.inbox.pop()
			if !ok {
				break
			}
			c.dispatch(env)
		}

		select {
		case <-c.inbox.ready:
		case <-c.quit:
			return
		}
	}
}

// dispatch hands env to a snapshot of the registry. Pending requests were
// already offered the envelope by receive.
func (c *Client) dispatch(env Envelope) {
	for _, e := range c.listeners.snapshot() {
		if _, ok := e.listener.(*pendingRequest); ok {
			continue
		}
		c.invoke(e, env)
	}
}

// invoke isolates each listener so a panic cannot reach the dispatch loop or
// the remaining listeners.
func (c *Client) invoke(e listenerEntry, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panic recovered",
				"type", env.Type,
				"listener", e.id,
				"panic", r,
			)
		}
	}()

	if el, ok := e.listener.(EnvelopeListener); ok {
		el.HandleEnvelope(env)
		return
	}
	e.listener.HandleMessage(env.Type, env.Data)
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, &ParseError{Size: len(data), Err: err}
	}
	if env.Type == "" {
		return Envelope{}, &ParseError{Size: len(data), Err: ErrMissingType}
	}
	env.claimed = new(atomic.Bool)
	return env, nil
}

func encodeEnvelope(msgType string, data any, id string) ([]byte, error) {
	env := Envelope{Type: msgType, ID: id}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s data: %w", msgType, err)
		}
		env.Data = raw
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return payload, nil
}
