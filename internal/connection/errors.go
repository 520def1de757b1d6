package connection

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrTimeout         = errors.New("request timeout")
	ErrRemote          = errors.New("remote error")
	ErrClosed          = errors.New("client closed")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrMissingType     = errors.New("envelope has no type")
)

// TransportError is a connection-level failure. It ends the current
// transport handle and, unless the close was requested, leads to a
// scheduled reconnect.
type TransportError struct {
	Op  string // "dial", "read" or "write"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError reports an inbound frame that could not be decoded into an
// Envelope. The frame is dropped.
type ParseError struct {
	Size int // Frame length in bytes
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse envelope (%d bytes): %v", e.Size, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SendDroppedError is returned by Send when the transport is not open.
type SendDroppedError struct {
	Type string
}

func (e *SendDroppedError) Error() string {
	return fmt.Sprintf("message %q dropped: %v", e.Type, ErrNotConnected)
}

func (e *SendDroppedError) Unwrap() error {
	return ErrNotConnected
}

// RequestTimeoutError is returned by Request when no acceptable response
// arrived before the deadline.
type RequestTimeoutError struct {
	RequestType string
	Timeout     time.Duration
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("request timeout: %s (after %v)", e.RequestType, e.Timeout)
}

func (e *RequestTimeoutError) Unwrap() error {
	return ErrTimeout
}

// RemoteError is returned by Request when the backend answered with the
// generic "error" type.
type RemoteError struct {
	RequestType string
	Message     string // Backend-supplied description
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.RequestType, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return ErrRemote
}
