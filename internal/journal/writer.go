package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WriterConfig contains configuration for the batch writer.
type WriterConfig struct {
	// BatchSize is the number of records to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// WriterMetrics holds writer counters.
type WriterMetrics struct {
	Inserts int64
	Flushes int64
	Errors  int64
	Dropped int64 // Records lost to insert errors
}

// Writer drains a record buffer into a Store.
type Writer struct {
	cfg    WriterConfig
	input  *Buffer[Record]
	store  Store
	logger *slog.Logger

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	flushMu sync.Mutex // Serializes flushes

	metricsMu sync.Mutex
	metrics   WriterMetrics
}

// NewWriter creates a new Writer.
func NewWriter(cfg WriterConfig, input *Buffer[Record], store Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &Writer{
		cfg:    cfg,
		input:  input,
		store:  store,
		logger: logger,
	}
}

// Start begins draining the buffer.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.run()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop closes the input, waits for the loop, then flushes what is left
// using ctx.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	w.input.Close()
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
		return ctx.Err()
	}

	// Final flush
	w.flushAll(ctx)

	w.logger.Info("journal writer stopped", "inserts", w.Stats().Inserts)
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.metricsMu.Lock()
	defer w.metricsMu.Unlock()
	return w.metrics
}

func (w *Writer) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.input.Ready():
			if w.input.Len() >= w.cfg.BatchSize {
				w.flushFull(w.ctx)
			}
		case <-ticker.C:
			w.flushAll(w.ctx)
		}
	}
}

// flushFull writes full batches only, leaving a partial batch for the timer.
func (w *Writer) flushFull(ctx context.Context) {
	for w.input.Len() >= w.cfg.BatchSize {
		if !w.flush(ctx) {
			return
		}
	}
}

// flushAll writes everything buffered.
func (w *Writer) flushAll(ctx context.Context) {
	for w.input.Len() > 0 {
		if !w.flush(ctx) {
			return
		}
	}
}

// flush writes one batch. It reports false when the batch failed.
func (w *Writer) flush(ctx context.Context) bool {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	batch := w.input.Drain(w.cfg.BatchSize)
	if len(batch) == 0 {
		return true
	}

	start := time.Now()
	inserted, err := w.store.InsertBatch(ctx, batch)

	w.metricsMu.Lock()
	w.metrics.Inserts += int64(inserted)
	if err != nil {
		w.metrics.Errors++
		w.metrics.Dropped += int64(len(batch) - inserted)
	} else {
		w.metrics.Flushes++
	}
	w.metricsMu.Unlock()

	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		return false
	}

	w.logger.Debug("flushed messages",
		"count", len(batch),
		"duration", time.Since(start),
	)
	return true
}
