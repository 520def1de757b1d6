package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/cem-dashboard/internal/connection"
	"github.com/rickgao/cem-dashboard/internal/model"
)

func discovered() []model.Device {
	return []model.Device{
		{SKI: "A", GeneralInfo: model.GeneralInfo{DeviceName: "Wallbox", Type: "wallbox"}},
		{SKI: "B", GeneralInfo: model.GeneralInfo{DeviceName: "Heat pump", Type: "heatpump"}},
		{SKI: "C", ShipInfo: model.SHIPInfo{InstanceName: "battery-1"}},
	}
}

func TestSession_ConnectedNotification(t *testing.T) {
	conn := newFakeRequester()
	s := NewSession(nil)
	s.Attach(conn)

	if s.Snapshot().Connected {
		t.Fatal("connected before notification")
	}

	conn.push(TypeConnected, `{"ski":"AB:CD:EF"}`)

	snap := s.Snapshot()
	if !snap.Connected {
		t.Error("Connected = false after notification")
	}
	if snap.LocalSKI != "AB:CD:EF" {
		t.Errorf("LocalSKI = %q, want AB:CD:EF", snap.LocalSKI)
	}

	// A notification without ski clears it.
	conn.push(TypeConnected, `{}`)
	if got := s.Snapshot().LocalSKI; got != "" {
		t.Errorf("LocalSKI = %q, want empty", got)
	}
}

func TestSession_ConnectedClearedWhenLinkDrops(t *testing.T) {
	conn := newFakeRequester()
	s := NewSession(nil)
	s.Attach(conn)

	conn.push(TypeConnected, `{"ski":"AB:CD:EF"}`)
	if !s.Snapshot().Connected {
		t.Fatal("Connected = false after notification")
	}

	conn.setLink(connection.StateDisconnected)
	if s.Snapshot().Connected {
		t.Error("Connected = true after the link dropped")
	}

	// Reopening alone is not enough; the backend has to greet again.
	conn.setLink(connection.StateOpen)
	if s.Snapshot().Connected {
		t.Error("Connected = true on a new link before its notification")
	}

	conn.push(TypeConnected, `{"ski":"AB:CD:EF"}`)
	if !s.Snapshot().Connected {
		t.Error("Connected = false after the new link's notification")
	}
	if got := s.Snapshot().LocalSKI; got != "AB:CD:EF" {
		t.Errorf("LocalSKI = %q, want it kept across the drop", got)
	}
}

func TestSession_ConnectedClearedByMissedReconnect(t *testing.T) {
	conn := newFakeRequester()
	s := NewSession(nil)
	s.Attach(conn)
	conn.push(TypeConnected, `{}`)

	// Drop and reopen between two reads.
	conn.setLink(connection.StateConnecting)
	conn.setLink(connection.StateOpen)

	if s.Snapshot().Connected {
		t.Error("Connected carried over from the previous link")
	}
}

func TestSession_Close(t *testing.T) {
	conn := newFakeRequester()
	s := NewSession(nil)
	s.Attach(conn)

	s.Close()
	s.Close()

	if conn.removed != 1 {
		t.Errorf("removed = %d, want 1", conn.removed)
	}

	conn.push(TypeConnected, `{"ski":"X"}`)
	if s.Snapshot().Connected {
		t.Error("closed session still receives notifications")
	}

	// Attaching after Close removes the listener immediately.
	s.Attach(conn)
	if conn.removed != 2 {
		t.Errorf("removed = %d, want 2", conn.removed)
	}
}

func TestSession_HandleLocalSKI(t *testing.T) {
	s := NewSession(nil)
	s.HandleLocalSKI("11:22")

	if got := s.Snapshot().LocalSKI; got != "11:22" {
		t.Errorf("LocalSKI = %q, want 11:22", got)
	}
}

func TestSession_Grid(t *testing.T) {
	s := NewSession(nil)
	s.HandleDevices(discovered())

	if _, err := s.AddToGrid("Z"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("AddToGrid(Z) err = %v, want ErrUnknownDevice", err)
	}

	d, err := s.AddToGrid("B")
	if err != nil {
		t.Fatalf("AddToGrid(B) failed: %v", err)
	}
	if d.DisplayName() != "Heat pump" {
		t.Errorf("device = %+v", d)
	}
	if _, err := s.AddToGrid("A"); err != nil {
		t.Fatalf("AddToGrid(A) failed: %v", err)
	}
	if _, err := s.AddToGrid("B"); !errors.Is(err, ErrAlreadyOnGrid) {
		t.Errorf("AddToGrid(B) again err = %v, want ErrAlreadyOnGrid", err)
	}

	if got := s.GridSKIs(); len(got) != 2 || got[0] != "B" || got[1] != "A" {
		t.Errorf("GridSKIs = %v, want [B A]", got)
	}

	if err := s.RemoveFromGrid("B"); err != nil {
		t.Fatalf("RemoveFromGrid(B) failed: %v", err)
	}
	if err := s.RemoveFromGrid("B"); !errors.Is(err, ErrNotOnGrid) {
		t.Errorf("RemoveFromGrid(B) again err = %v, want ErrNotOnGrid", err)
	}
	if got := s.GridSKIs(); len(got) != 1 || got[0] != "A" {
		t.Errorf("GridSKIs = %v, want [A]", got)
	}
}

func TestSession_HandleDevicesRefreshesGrid(t *testing.T) {
	s := NewSession(nil)
	s.HandleDevices(discovered())
	s.AddToGrid("A")

	renamed := discovered()[:1]
	renamed[0].GeneralInfo.DeviceName = "Garage Wallbox"
	s.HandleDevices(renamed)

	snap := s.Snapshot()
	if len(snap.Devices) != 1 {
		t.Errorf("Devices = %d, want 1", len(snap.Devices))
	}
	if len(snap.Grid) != 1 || snap.Grid[0].DisplayName() != "Garage Wallbox" {
		t.Errorf("Grid = %+v", snap.Grid)
	}

	// Vanished devices stay on the grid.
	s.HandleDevices(nil)
	snap = s.Snapshot()
	if snap.Devices == nil || len(snap.Devices) != 0 {
		t.Errorf("Devices = %#v, want empty", snap.Devices)
	}
	if len(snap.Grid) != 1 {
		t.Errorf("Grid = %d entries, want 1", len(snap.Grid))
	}
}

func TestSession_SnapshotIsCopy(t *testing.T) {
	s := NewSession(nil)
	s.HandleDevices(discovered())

	snap := s.Snapshot()
	snap.Devices[0].SKI = "mutated"

	if s.Snapshot().Devices[0].SKI != "A" {
		t.Error("Snapshot shares the device slice")
	}
}

func TestSession_ToggleSimulation(t *testing.T) {
	conn := newFakeRequester()
	svc := NewService(conn, nil)
	s := NewSession(nil)
	s.HandleDevices(discovered())
	s.AddToGrid("A")
	s.AddToGrid("C")

	running, err := s.ToggleSimulation(context.Background(), svc)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !running || !s.Snapshot().SimulationRunning {
		t.Error("simulation not running after start")
	}
	if got := conn.lastCall(); got.msgType != TypeStartSimulation || got.data != `{"devices":["A","C"]}` {
		t.Errorf("start call = %+v", got)
	}

	running, err = s.ToggleSimulation(context.Background(), svc)
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if running || s.Snapshot().SimulationRunning {
		t.Error("simulation running after stop")
	}
	if got := conn.lastCall(); got.msgType != TypeStopSimulation || !got.send {
		t.Errorf("stop call = %+v", got)
	}
}

func TestSession_ToggleSimulationFailureKeepsState(t *testing.T) {
	conn := newFakeRequester()
	conn.errs[TypeStartSimulation] = errors.New("timeout")
	svc := NewService(conn, nil)
	s := NewSession(nil)

	running, err := s.ToggleSimulation(context.Background(), svc)
	if err == nil {
		t.Fatal("expected error")
	}
	if running || s.Snapshot().SimulationRunning {
		t.Error("failed start flipped the running flag")
	}
}

// slowSimulator holds each backend call long enough for toggles to overlap.
type slowSimulator struct {
	inflight    atomic.Int32
	maxInflight atomic.Int32
	starts      atomic.Int32
	stops       atomic.Int32
}

func (f *slowSimulator) enter() {
	n := f.inflight.Add(1)
	for {
		m := f.maxInflight.Load()
		if n <= m || f.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	f.inflight.Add(-1)
}

func (f *slowSimulator) StartSimulation(ctx context.Context, devices []string) error {
	f.enter()
	f.starts.Add(1)
	return nil
}

func (f *slowSimulator) StopSimulation() error {
	f.enter()
	f.stops.Add(1)
	return nil
}

func TestSession_ConcurrentToggles(t *testing.T) {
	sim := &slowSimulator{}
	s := NewSession(nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []bool
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			running, err := s.ToggleSimulation(context.Background(), sim)
			if err != nil {
				t.Errorf("toggle failed: %v", err)
			}
			mu.Lock()
			results = append(results, running)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if sim.starts.Load() != 1 || sim.stops.Load() != 1 {
		t.Errorf("starts = %d stops = %d, want 1 and 1", sim.starts.Load(), sim.stops.Load())
	}
	if sim.maxInflight.Load() != 1 {
		t.Errorf("backend calls overlapped: max in flight = %d", sim.maxInflight.Load())
	}
	if len(results) != 2 || results[0] == results[1] {
		t.Errorf("results = %v, want one start and one stop", results)
	}
	if s.Snapshot().SimulationRunning {
		t.Error("simulation left running after start then stop")
	}
}
