package connection

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a Client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Envelope is the wrapper around every message exchanged with the backend.
// One envelope travels per transport frame.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"` // ms since epoch, set by the backend
	ID        string          `json:"id,omitempty"`        // correlation id, only with Config.CorrelationIDs

	// claimed is shared by every copy of an inbound envelope handed out
	// during one dispatch, so at most one pending request consumes it.
	claimed *atomic.Bool
}

// claim marks the envelope as consumed by a pending request. It reports
// false if an earlier request already took it.
func (e Envelope) claim() bool {
	if e.claimed == nil {
		return true
	}
	return e.claimed.CompareAndSwap(false, true)
}

// errorPayload is the data carried by an "error" envelope.
type errorPayload struct {
	Error string `json:"error"`
}

// Config configures a Client.
type Config struct {
	URL               string        // Backend endpoint (e.g., ws://localhost:8080/ws)
	ReconnectInterval time.Duration // Fixed delay before a reconnect attempt
	RequestTimeout    time.Duration // Default deadline for Request
	HandshakeTimeout  time.Duration // WebSocket opening handshake limit
	WriteTimeout      time.Duration // Write deadline for sends
	PingInterval      time.Duration // Keepalive ping period (0 = no keepalive)
	PingTimeout       time.Duration // Max time without ping/pong before the connection is stale
	CorrelationIDs    bool          // Stamp requests with an id and require it on the response
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:               "ws://localhost:8080/ws",
		ReconnectInterval: 5 * time.Second,
		RequestTimeout:    5 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
		PingInterval:      30 * time.Second,
		PingTimeout:       60 * time.Second,
	}
}
