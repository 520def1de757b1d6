package connection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// manualScheduler is a virtual clock. Tasks only run from Advance.
type manualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*manualTask
}

type manualTask struct {
	s       *manualScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &manualTask{s: s, at: s.now + d, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

func (t *manualTask) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward and runs every task that became due, in
// deadline order, outside the scheduler lock.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*manualTask
	for _, t := range s.tasks {
		if !t.stopped && !t.fired && t.at <= s.now {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of tasks that are neither stopped nor fired.
func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

var errFakeClosed = errors.New("fake conn closed")

// fakeDialer hands out in-memory connections.
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	err   error
	block bool // Dial waits for ctx cancellation

	conns chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	err := d.err
	block := d.block
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for dial")
		return nil
	}
}

// fakeConn is one in-memory transport handle.
type fakeConn struct {
	inbound chan []byte
	writes  chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 64),
		writes:  make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, errFakeClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errFakeClosed
	default:
	}
	c.writes <- data
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// push delivers a frame from the backend.
func (c *fakeConn) push(data string) {
	c.inbound <- []byte(data)
}

// written waits for the next frame the client sent.
func (c *fakeConn) written(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-c.writes:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for client write")
		return nil
	}
}

func newTestClient(t *testing.T, mutate func(*Config)) (*Client, *fakeDialer, *manualScheduler) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.URL = "ws://backend.test/ws"
	if mutate != nil {
		mutate(&cfg)
	}

	dialer := newFakeDialer()
	sched := &manualScheduler{}
	client := NewClient(cfg, nil, WithDialer(dialer), WithScheduler(sched))
	t.Cleanup(func() { client.Close() })
	return client, dialer, sched
}

func waitForState(t *testing.T, c *Client, want State) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.WaitForState(ctx, want); err != nil {
		t.Fatalf("WaitForState(%s): %v", want, err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

// openClient connects and returns the live fake handle.
func openClient(t *testing.T, c *Client, d *fakeDialer) *fakeConn {
	t.Helper()
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	conn := d.next(t)
	waitForState(t, c, StateOpen)
	return conn
}

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}
