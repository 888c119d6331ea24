package relay

import (
	"context"
	"testing"

	"github.com/Nsabwe/Cchat/domain/chat"
	"github.com/Nsabwe/Cchat/modules/store"
)

func newTestModule(t *testing.T) (*Module, *recordingSender) {
	t.Helper()
	sender := newRecordingSender()
	m, err := NewModule(testConfig(), Deps{
		Sender: sender,
		Store:  store.NewMemoryStore(),
		Logger: &mockLogger{},
	})
	if err != nil {
		t.Fatalf("NewModule() unexpected error: %v", err)
	}
	t.Cleanup(func() { m.Stop(context.Background()) })
	return m, sender
}

func TestModule_Lifecycle(t *testing.T) {
	m, _ := newTestModule(t)

	if m.Name() != "relay" {
		t.Errorf("Name() = %q, want relay", m.Name())
	}
	if len(m.EmitEvents()) != 4 {
		t.Errorf("EmitEvents() = %d definitions, want 4", len(m.EmitEvents()))
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	health := m.Health(context.Background())
	if !health.Healthy {
		t.Errorf("Health() = %+v, want healthy", health)
	}
}

func TestModule_PublishesWithoutBus(t *testing.T) {
	m, sender := newTestModule(t)
	e := m.Engine()
	joinGlobal(t, e, "c1", "alice")

	// No event bus is set; posting must still succeed.
	if _, err := e.PostMessage(context.Background(), chat.Global, "alice", "hi", ""); err != nil {
		t.Fatalf("PostMessage() unexpected error: %v", err)
	}
	if len(sender.of("c1", TypeNewMessage)) != 1 {
		t.Error("message was not delivered")
	}
}

func TestModule_RegisterUserService(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestModule(t)

	tests := []struct {
		name     string
		req      RegisterUserRequest
		wantCode string
	}{
		{name: "new user", req: RegisterUserRequest{UserID: "gina", DisplayName: "Gina"}},
		{name: "duplicate user", req: RegisterUserRequest{UserID: "gina"}, wantCode: "user_exists"},
		{name: "empty user id", req: RegisterUserRequest{}, wantCode: "invalid_identity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := m.registerUser(ctx, tt.req, nil)
			if err != nil {
				t.Fatalf("registerUser() unexpected error: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", resp.Code, tt.wantCode)
			}
			if tt.wantCode == "" && (resp.User == nil || resp.User.UserID != tt.req.UserID) {
				t.Errorf("User = %+v, want %s", resp.User, tt.req.UserID)
			}
		})
	}
}

func TestModule_ReadServices(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestModule(t)
	e := m.Engine()
	joinGlobal(t, e, "c1", "alice")
	e.PostMessage(ctx, chat.Global, "alice", "one", "")
	e.SendTip(ctx, "alice", "bob", 2.5)

	online, _ := m.listOnline(ctx, ListOnlineRequest{}, nil)
	if online.Count != 1 || online.Users[0].ConnectionID != "" {
		t.Errorf("listOnline() = %+v, want alice without connection id", online)
	}

	history, _ := m.roomHistory(ctx, RoomHistoryRequest{}, nil)
	if history.RoomKey != "global" || len(history.Messages) != 1 {
		t.Errorf("roomHistory() = %+v, want one global message", history)
	}

	tip, _ := m.tipTotal(ctx, TipTotalRequest{UserID: "bob"}, nil)
	if tip.Total != 2.5 {
		t.Errorf("tipTotal() = %v, want 2.5", tip.Total)
	}
	if tip, _ := m.tipTotal(ctx, TipTotalRequest{}, nil); tip.Code != "invalid_identity" {
		t.Errorf("tipTotal() without user code = %q, want invalid_identity", tip.Code)
	}
}

func TestModule_SubscribePushService(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestModule(t)

	bad, _ := m.subscribePush(ctx, SubscribePushRequest{Subscription: chat.PushSubscription{UserID: "alice"}}, nil)
	if bad.Saved || bad.Code != "invalid_payload" {
		t.Errorf("subscribePush() = %+v, want invalid_payload", bad)
	}

	ok, _ := m.subscribePush(ctx, SubscribePushRequest{Subscription: chat.PushSubscription{
		UserID:   "alice",
		Endpoint: "https://push.example/abc",
		P256dh:   "key",
		Auth:     "secret",
	}}, nil)
	if !ok.Saved || ok.Code != "" {
		t.Errorf("subscribePush() = %+v, want saved", ok)
	}
}

func TestStatus_Err(t *testing.T) {
	if err := (Status{}).err(); err != nil {
		t.Errorf("err() = %v, want nil", err)
	}
	err := Status{Code: "user_exists", Message: "user already exists"}.err()
	se, ok := err.(*ServiceError)
	if !ok || se.Code != "user_exists" || se.Error() != "user already exists" {
		t.Errorf("err() = %#v, want ServiceError user_exists", err)
	}
}
