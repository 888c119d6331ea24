package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeConn records written messages. Writes block while gate is held.
type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	writeErr error
	gate     chan struct{}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHub_SendDeliversJSON(t *testing.T) {
	h := NewHub(DefaultConfig())
	conn := &fakeConn{}
	h.Register("c1", conn)
	defer h.Unregister("c1")

	frame := map[string]any{"type": "connected", "payload": map[string]string{"connectionId": "c1"}}
	if err := h.Send("c1", frame); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	waitUntil(t, func() bool { return conn.count() == 1 })
	conn.mu.Lock()
	var got map[string]any
	err := json.Unmarshal(conn.messages[0], &got)
	conn.mu.Unlock()
	if err != nil {
		t.Fatalf("written frame is not JSON: %v", err)
	}
	if got["type"] != "connected" {
		t.Errorf("type = %v, want connected", got["type"])
	}
	if sent, _ := h.Stats(); sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
}

func TestHub_SendErrors(t *testing.T) {
	h := NewHub(Config{QueueSize: 1, WriteTimeout: time.Second})

	if err := h.Send("missing", "x"); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("Send() to unknown client error = %v, want ErrClientNotFound", err)
	}
	if err := h.Send("missing", make(chan int)); err == nil {
		t.Error("Send() of unencodable frame expected error")
	}

	// The first frame is taken by the write pump and blocks on the gate,
	// the second fills the queue and the third overflows.
	gate := make(chan struct{})
	conn := &fakeConn{gate: gate}
	h.Register("slow", conn)
	defer func() {
		close(gate)
		h.Unregister("slow")
	}()

	if err := h.Send("slow", "one"); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
	waitUntil(t, func() bool {
		return h.Send("slow", "two") == nil
	})
	if err := h.Send("slow", "three"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Send() to full queue error = %v, want ErrQueueFull", err)
	}
	if _, dropped := h.Stats(); dropped == 0 {
		t.Error("dropped frames should be counted")
	}
}

func TestHub_Unregister(t *testing.T) {
	h := NewHub(DefaultConfig())
	h.Register("c1", &fakeConn{})
	if h.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", h.ClientCount())
	}

	h.Unregister("c1")
	h.Unregister("c1")

	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
	if err := h.Send("c1", "x"); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("Send() after Unregister error = %v, want ErrClientNotFound", err)
	}
}

func TestHub_WriteFailureClosesClient(t *testing.T) {
	h := NewHub(DefaultConfig())
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	h.Register("c1", conn)
	defer h.Unregister("c1")

	h.Send("c1", "x")
	waitUntil(t, conn.isClosed)

	if err := h.Send("c1", "y"); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Send() after write failure error = %v, want ErrClientClosed", err)
	}
}

func TestHub_RunClosesClientsOnShutdown(t *testing.T) {
	h := NewHub(DefaultConfig())
	conn := &fakeConn{}
	h.Register("c1", conn)

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	cancel()
	h.Wait()

	if !conn.isClosed() {
		t.Error("connection should be closed on shutdown")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
}

func TestHub_DrainWaitsForHeldSessions(t *testing.T) {
	h := NewHub(DefaultConfig())
	release := h.Hold()

	drained := make(chan error, 1)
	go func() { drained <- h.Drain(context.Background()) }()

	select {
	case err := <-drained:
		t.Fatalf("Drain() returned %v while a session was held", err)
	case <-time.After(50 * time.Millisecond):
	}

	release()
	release()
	select {
	case err := <-drained:
		if err != nil {
			t.Errorf("Drain() unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Drain() did not return after release")
	}
}

func TestHub_DrainHonoursContext(t *testing.T) {
	h := NewHub(DefaultConfig())
	defer h.Hold()()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := h.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain() error = %v, want DeadlineExceeded", err)
	}
}

func TestBroadcastModule_StopWaitsForSessions(t *testing.T) {
	m := NewModule(DefaultConfig())
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}

	conn := &fakeConn{}
	hub := m.GetHub()
	release := hub.Hold()
	hub.Register("c1", conn)

	// The session unwinds only after its connection has been closed.
	var unwound sync.WaitGroup
	unwound.Add(1)
	var finishedBeforeStop bool
	var mu sync.Mutex
	go func() {
		defer unwound.Done()
		for !conn.isClosed() {
			time.Sleep(5 * time.Millisecond)
		}
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		finishedBeforeStop = true
		mu.Unlock()
		release()
	}()

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() unexpected error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if !finishedBeforeStop {
		t.Error("Stop() returned before the session released its hold")
	}
	unwound.Wait()
}

func TestBroadcastModule_Lifecycle(t *testing.T) {
	m := NewModule(DefaultConfig())
	ctx := context.Background()

	if m.Name() != "broadcast" {
		t.Errorf("Name() = %q, want broadcast", m.Name())
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	m.GetHub().Register("c1", &fakeConn{})

	health := m.Health(ctx)
	if !health.Healthy || health.Details["connected_clients"] != 1 {
		t.Errorf("Health() = %+v, want one connected client", health)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() unexpected error: %v", err)
	}
}
