package connection

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Dialer opens transport handles to the backend.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is one live duplex transport handle. Each frame carries one envelope.
type Conn interface {
	// ReadMessage blocks until the next frame arrives. Any error means the
	// handle is finished.
	ReadMessage() ([]byte, error)

	// WriteMessage writes one frame.
	WriteMessage(data []byte) error

	// Close closes the handle. A blocked ReadMessage returns an error.
	Close() error
}

// WebSocketDialer dials the backend with gorilla/websocket and keeps the
// connection alive with pings.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	PingTimeout      time.Duration
	Header           http.Header

	logger *slog.Logger
}

// NewWebSocketDialer creates a dialer from the client config.
func NewWebSocketDialer(cfg Config, logger *slog.Logger) *WebSocketDialer {
	if logger == nil {
		logger = slog.Default()
	}

	return &WebSocketDialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		PingInterval:     cfg.PingInterval,
		PingTimeout:      cfg.PingTimeout,
		logger:           logger,
	}
}

// Dial establishes the WebSocket connection.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	header := http.Header{}
	for k, v := range d.Header {
		header[k] = v
	}
	header.Set("Accept", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}

	c := &wsConn{
		conn:         conn,
		logger:       d.logger,
		writeTimeout: d.WriteTimeout,
		pingTimeout:  d.PingTimeout,
		lastPingAt:   time.Now(),
		done:         make(chan struct{}),
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		c.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server responds to our ping
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	if d.PingInterval > 0 {
		go c.heartbeatLoop(d.PingInterval)
	}

	return c, nil
}

// wsConn implements Conn over a gorilla/websocket connection.
type wsConn struct {
	conn         *websocket.Conn
	logger       *slog.Logger
	writeTimeout time.Duration
	pingTimeout  time.Duration

	writeMu sync.Mutex

	mu         sync.Mutex
	lastPingAt time.Time
	stale      bool

	closeOnce sync.Once
	done      chan struct{}
}

func (c *wsConn) touch() {
	c.mu.Lock()
	c.lastPingAt = time.Now()
	c.mu.Unlock()
}

// ReadMessage reads the next text or binary frame.
func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.mu.Lock()
		stale := c.stale
		c.mu.Unlock()
		if stale {
			return nil, errors.Join(ErrStaleConnection, err)
		}
		return nil, err
	}
	return data, nil
}

// WriteMessage writes one text frame.
func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the socket. Safe to call twice.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	return err
}

// heartbeatLoop pings the backend and closes the socket when neither a
// ping nor a pong has been seen for pingTimeout.
func (c *wsConn) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			var deadline time.Time
			if c.writeTimeout > 0 {
				deadline = time.Now().Add(c.writeTimeout)
			}
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.Lock()
			lastPing := c.lastPingAt
			c.mu.Unlock()

			if c.pingTimeout > 0 && time.Since(lastPing) > c.pingTimeout {
				c.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", c.pingTimeout,
				)
				c.mu.Lock()
				c.stale = true
				c.mu.Unlock()
				c.conn.Close()
				return
			}
		}
	}
}
