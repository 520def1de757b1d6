package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/rickgao/cem-dashboard/internal/connection"
	"github.com/rickgao/cem-dashboard/internal/model"
)

// Session errors.
var (
	ErrUnknownDevice = errors.New("device not discovered")
	ErrAlreadyOnGrid = errors.New("device already on grid")
	ErrNotOnGrid     = errors.New("device not on grid")
)

// Subscriber is the slice of *connection.Client the session listens on.
type Subscriber interface {
	OnMessage(msgType string, fn func(data json.RawMessage)) (remove func())
	LinkState() (connection.State, uint64)
}

// Simulator starts and stops simulations. *Service implements it.
type Simulator interface {
	StartSimulation(ctx context.Context, devices []string) error
	StopSimulation() error
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Connected         bool           `json:"connected"`
	LocalSKI          string         `json:"localSki"`
	SimulationRunning bool           `json:"simulationRunning"`
	Devices           []model.Device `json:"devices"`
	Grid              []model.Device `json:"grid"`
}

// Session holds the dashboard state fed by the message channel and the
// device poller.
//
// Connected is true only while the link that delivered the last "connected"
// notification is still open; a drop or a reconnect clears it until the
// backend greets again.
type Session struct {
	logger *slog.Logger

	// toggleMu serializes ToggleSimulation across the backend call.
	toggleMu sync.Mutex

	mu                sync.Mutex
	link              Subscriber
	connected         bool
	connectedOpens    uint64
	localSKI          string
	simulationRunning bool
	devices           []model.Device
	grid              []model.Device
	closed            bool
	removers          []func()
}

// NewSession creates an empty session.
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		logger:  logger.With("component", "session"),
		devices: []model.Device{},
		grid:    []model.Device{},
	}
}

// Attach subscribes the session to the backend's "connected" notification.
func (s *Session) Attach(sub Subscriber) {
	remove := sub.OnMessage(TypeConnected, func(data json.RawMessage) {
		s.handleConnected(sub, data)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		remove()
		return
	}
	s.link = sub
	s.removers = append(s.removers, remove)
}

// Close detaches the session from every subscriber. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	removers := s.removers
	s.removers = nil
	s.closed = true
	s.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
}

func (s *Session) handleConnected(sub Subscriber, data json.RawMessage) {
	var payload skiPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			s.logger.Warn("malformed connected payload", "error", err)
		}
	}
	_, opens := sub.LinkState()

	s.mu.Lock()
	s.connected = true
	s.connectedOpens = opens
	s.localSKI = payload.SKI
	s.mu.Unlock()

	s.logger.Info("backend connected", "ski", payload.SKI)
}

// HandleLocalSKI records the SKI fetched over REST.
func (s *Session) HandleLocalSKI(ski string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localSKI = ski
}

// HandleDevices replaces the discovered device list. Grid entries keep
// their position and pick up refreshed descriptions; devices that vanished
// from discovery stay on the grid until removed.
func (s *Session) HandleDevices(devices []model.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices = slices.Clone(devices)
	if s.devices == nil {
		s.devices = []model.Device{}
	}

	for i, g := range s.grid {
		if d, ok := findDevice(s.devices, g.SKI); ok {
			s.grid[i] = d
		}
	}
}

// AddToGrid places a discovered device on the grid.
func (s *Session) AddToGrid(ski string) (model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := findDevice(s.grid, ski); ok {
		return model.Device{}, ErrAlreadyOnGrid
	}
	d, ok := findDevice(s.devices, ski)
	if !ok {
		return model.Device{}, ErrUnknownDevice
	}

	s.grid = append(s.grid, d)
	s.logger.Info("device added to grid", "ski", ski, "name", d.DisplayName())
	return d, nil
}

// RemoveFromGrid takes a device off the grid.
func (s *Session) RemoveFromGrid(ski string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.grid, func(d model.Device) bool { return d.SKI == ski })
	if i < 0 {
		return ErrNotOnGrid
	}
	s.grid = slices.Delete(s.grid, i, i+1)
	s.logger.Info("device removed from grid", "ski", ski)
	return nil
}

// GridSKIs returns the SKIs of the devices on the grid, in placement order.
func (s *Session) GridSKIs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.DeviceSKIs(s.grid)
}

// ToggleSimulation starts a simulation over the grid devices, or stops the
// running one. The running flag only flips when the backend call succeeds.
// It returns the new running state.
//
// Concurrent toggles run one after another, so two callers that both saw
// the simulation stopped produce a start and then a stop.
func (s *Session) ToggleSimulation(ctx context.Context, sim Simulator) (bool, error) {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	s.mu.Lock()
	running := s.simulationRunning
	skis := model.DeviceSKIs(s.grid)
	s.mu.Unlock()

	if running {
		if err := sim.StopSimulation(); err != nil {
			return true, err
		}
	} else {
		if err := sim.StartSimulation(ctx, skis); err != nil {
			return false, err
		}
	}

	s.mu.Lock()
	s.simulationRunning = !running
	s.mu.Unlock()
	return !running, nil
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	link := s.link
	s.mu.Unlock()

	var (
		state connection.State
		opens uint64
	)
	if link != nil {
		state, opens = link.LinkState()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if link != nil && (state != connection.StateOpen || opens != s.connectedOpens) {
		s.connected = false
	}
	return Snapshot{
		Connected:         s.connected,
		LocalSKI:          s.localSKI,
		SimulationRunning: s.simulationRunning,
		Devices:           slices.Clone(s.devices),
		Grid:              slices.Clone(s.grid),
	}
}

func findDevice(devices []model.Device, ski string) (model.Device, bool) {
	for _, d := range devices {
		if d.SKI == ski {
			return d, true
		}
	}
	return model.Device{}, false
}
