package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/cem-dashboard/internal/model"
)

// Source fetches discovery data from the backend. *api.Client implements it.
type Source interface {
	GetDiscoveredDevices(ctx context.Context) ([]model.Device, error)
	GetLocalSKI(ctx context.Context) (string, error)
}

// Handler receives polled results.
type Handler interface {
	HandleDevices(devices []model.Device)
	HandleLocalSKI(ski string)
}

// HandlerFuncs adapts a pair of functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Devices  func([]model.Device)
	LocalSKI func(string)
}

func (h HandlerFuncs) HandleDevices(devices []model.Device) {
	if h.Devices != nil {
		h.Devices(devices)
	}
}

func (h HandlerFuncs) HandleLocalSKI(ski string) {
	if h.LocalSKI != nil {
		h.LocalSKI(ski)
	}
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 5s)
	Timeout  time.Duration // Per-request timeout (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// Stats holds poller counters.
type Stats struct {
	Cycles   int64
	Errors   int64
	Devices  int       // Size of the last successful discovery list
	LastPoll time.Time // Zero until the first successful discovery fetch
}

// Poller periodically fetches discovered devices via the REST API.
type Poller struct {
	cfg     Config
	source  Source
	handler Handler
	logger  *slog.Logger

	haveLocalSKI bool

	cycles   atomic.Int64
	errors   atomic.Int64
	devices  atomic.Int64
	lastPoll atomic.Int64 // UnixNano

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, source Source, handler Handler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("device poller started",
		"interval", p.cfg.Interval,
		"timeout", p.cfg.Timeout,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("device poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (p *Poller) Stats() Stats {
	s := Stats{
		Cycles:  p.cycles.Load(),
		Errors:  p.errors.Load(),
		Devices: int(p.devices.Load()),
	}
	if ns := p.lastPoll.Load(); ns != 0 {
		s.LastPoll = time.Unix(0, ns)
	}
	return s
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll runs one cycle: the local SKI (until known), then the device list.
func (p *Poller) poll() {
	p.cycles.Add(1)

	if !p.haveLocalSKI {
		p.pollLocalSKI()
	}
	p.pollDevices()
}

func (p *Poller) pollLocalSKI() {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	ski, err := p.source.GetLocalSKI(ctx)
	if err != nil {
		if p.ctx.Err() == nil {
			p.logger.Warn("failed to fetch local ski", "error", err)
			p.errors.Add(1)
		}
		return
	}

	p.haveLocalSKI = true
	p.logger.Info("local ski fetched", "ski", ski)
	if p.handler != nil {
		p.handler.HandleLocalSKI(ski)
	}
}

func (p *Poller) pollDevices() {
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	devices, err := p.source.GetDiscoveredDevices(ctx)
	if err != nil {
		if p.ctx.Err() == nil {
			p.logger.Warn("failed to fetch devices", "error", err)
			p.errors.Add(1)
		}
		return
	}

	p.devices.Store(int64(len(devices)))
	p.lastPoll.Store(time.Now().UnixNano())

	p.logger.Debug("poll cycle complete",
		"devices", len(devices),
		"duration", time.Since(start),
	)

	if p.handler != nil {
		p.handler.HandleDevices(devices)
	}
}
