package journal

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rickgao/cem-dashboard/internal/connection"
)

// Record is one journaled message.
type Record struct {
	ReceivedAt time.Time
	Type       string
	ID         string
	Timestamp  int64 // Backend envelope timestamp, 0 when absent
	Data       json.RawMessage
}

// Recorder is a connection listener that copies inbound envelopes into a
// buffer for the Writer.
type Recorder struct {
	buf    *Buffer[Record]
	logger *slog.Logger
	now    func() time.Time

	lastDropWarn atomic.Int64 // UnixNano
}

// NewRecorder creates a Recorder feeding buf.
func NewRecorder(buf *Buffer[Record], logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		buf:    buf,
		logger: logger,
		now:    time.Now,
	}
}

// HandleMessage records a message without an envelope id.
func (r *Recorder) HandleMessage(msgType string, data json.RawMessage) {
	r.HandleEnvelope(connection.Envelope{Type: msgType, Data: data})
}

// HandleEnvelope records env. It never blocks.
func (r *Recorder) HandleEnvelope(env connection.Envelope) {
	rec := Record{
		ReceivedAt: r.now(),
		Type:       env.Type,
		ID:         env.ID,
		Timestamp:  env.Timestamp,
		Data:       slices.Clone(env.Data),
	}

	if !r.buf.Send(rec) {
		r.warnDropped(env.Type)
	}
}

// warnDropped logs at most once per second.
func (r *Recorder) warnDropped(msgType string) {
	now := r.now().UnixNano()
	last := r.lastDropWarn.Load()
	if now-last < int64(time.Second) || !r.lastDropWarn.CompareAndSwap(last, now) {
		return
	}
	r.logger.Warn("journal buffer full, dropping messages",
		"type", msgType,
		"dropped", r.buf.Stats().Dropped,
	)
}

var _ connection.EnvelopeListener = (*Recorder)(nil)
