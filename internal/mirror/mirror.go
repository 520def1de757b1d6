package mirror

import (
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rickgao/cem-dashboard/internal/connection"
)

// Publisher sends one payload to a broker topic.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Config controls the mirror listener.
type Config struct {
	TopicPrefix string
	QoS         byte
	BufferSize  int
}

// Stats holds mirror counters.
type Stats struct {
	Published int64
	Failed    int64
	Dropped   int64
}

// Mirror is a connection listener that republishes each inbound envelope.
// HandleEnvelope never blocks; a single worker publishes in arrival order.
type Mirror struct {
	cfg    Config
	pub    Publisher
	logger *slog.Logger

	queue chan connection.Envelope

	mu      sync.RWMutex // guards closed against concurrent enqueue
	closed  bool
	done    chan struct{}
	stopped sync.Once

	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// New creates a Mirror and starts its worker.
func New(cfg Config, pub Publisher, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")

	m := &Mirror{
		cfg:    cfg,
		pub:    pub,
		logger: logger.With("component", "mirror"),
		queue:  make(chan connection.Envelope, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

// HandleMessage mirrors a message without an envelope id.
func (m *Mirror) HandleMessage(msgType string, data json.RawMessage) {
	m.HandleEnvelope(connection.Envelope{Type: msgType, Data: data})
}

// HandleEnvelope queues env for publishing, dropping it when the queue is
// full or the mirror is closed.
func (m *Mirror) HandleEnvelope(env connection.Envelope) {
	env.Data = slices.Clone(env.Data)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		m.dropped.Add(1)
		return
	}

	select {
	case m.queue <- env:
	default:
		if m.dropped.Add(1) == 1 {
			m.logger.Warn("mirror queue full, dropping messages", "type", env.Type)
		}
	}
}

// Close stops accepting envelopes, publishes what is queued, and waits for
// the worker to exit.
func (m *Mirror) Close() {
	m.stopped.Do(func() {
		m.mu.Lock()
		m.closed = true
		close(m.queue)
		m.mu.Unlock()
	})
	<-m.done
}

// Stats returns current counters.
func (m *Mirror) Stats() Stats {
	return Stats{
		Published: m.published.Load(),
		Failed:    m.failed.Load(),
		Dropped:   m.dropped.Load(),
	}
}

// Topic returns the topic an envelope of msgType is published to.
func (m *Mirror) Topic(msgType string) string {
	return Topic(m.cfg.TopicPrefix, msgType)
}

func (m *Mirror) run() {
	defer close(m.done)

	for env := range m.queue {
		payload, err := json.Marshal(env)
		if err != nil {
			m.failed.Add(1)
			m.logger.Error("encode envelope", "type", env.Type, "error", err)
			continue
		}

		topic := m.Topic(env.Type)
		if err := m.pub.Publish(topic, payload, m.cfg.QoS, false); err != nil {
			m.failed.Add(1)
			m.logger.Warn("mirror publish failed", "topic", topic, "error", err)
			continue
		}
		m.published.Add(1)
	}
}

var _ connection.EnvelopeListener = (*Mirror)(nil)
