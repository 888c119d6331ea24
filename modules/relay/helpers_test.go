package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Nsabwe/Cchat/domain/chat"
	"github.com/Nsabwe/Cchat/modules/store"
	"github.com/go-monolith/mono/pkg/types"
)

type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

// recordingSender records every frame per connection.
type recordingSender struct {
	mu     sync.Mutex
	frames map[string][]Frame
	broken map[string]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		frames: make(map[string][]Frame),
		broken: make(map[string]bool),
	}
}

func (s *recordingSender) Send(connectionID string, frame any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken[connectionID] {
		return errors.New("connection reset")
	}
	s.frames[connectionID] = append(s.frames[connectionID], frame.(Frame))
	return nil
}

func (s *recordingSender) breakConn(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken[connectionID] = true
}

// of returns the frames of type typ sent to connectionID.
func (s *recordingSender) of(connectionID, typ string) []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Frame
	for _, f := range s.frames[connectionID] {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (s *recordingSender) last(t *testing.T, connectionID, typ string) Frame {
	t.Helper()
	frames := s.of(connectionID, typ)
	if len(frames) == 0 {
		t.Fatalf("no %s frame sent to %s", typ, connectionID)
	}
	return frames[len(frames)-1]
}

func (s *recordingSender) waitFor(t *testing.T, connectionID, typ string) Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if frames := s.of(connectionID, typ); len(frames) > 0 {
			return frames[len(frames)-1]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s frame on %s", typ, connectionID)
	return Frame{}
}

// failingStore fails message writes with err.
type failingStore struct {
	*store.MemoryStore
	err error
}

func (s *failingStore) CreateMessage(context.Context, *chat.Message) error {
	return s.err
}

func (s *failingStore) UpdateMessage(context.Context, *chat.Message) error {
	return s.err
}

const testPromotionDelay = 30 * time.Millisecond

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PromotionDelay = testPromotionDelay
	cfg.PersistRetries = 1
	cfg.PersistRetryDelay = time.Millisecond
	cfg.StoreTimeout = time.Second
	return cfg
}

func newTestEngine(t *testing.T, st store.Store) (*Engine, *recordingSender) {
	t.Helper()
	sender := newRecordingSender()
	e, err := NewEngine(testConfig(), Deps{
		Sender: sender,
		Store:  st,
		Logger: &mockLogger{},
	})
	if err != nil {
		t.Fatalf("NewEngine() unexpected error: %v", err)
	}
	t.Cleanup(e.Close)
	return e, sender
}

// joinGlobal connects connectionID and joins it as userID.
func joinGlobal(t *testing.T, e *Engine, connectionID, userID string) {
	t.Helper()
	if err := e.Connect(connectionID); err != nil {
		t.Fatalf("Connect(%s) unexpected error: %v", connectionID, err)
	}
	if _, err := e.JoinGlobal(context.Background(), connectionID, userID, chat.Profile{DisplayName: userID}); err != nil {
		t.Fatalf("JoinGlobal(%s) unexpected error: %v", userID, err)
	}
}
