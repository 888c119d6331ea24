package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Nsabwe/Cchat/domain/chat"
)

func TestStoreModule_Name(t *testing.T) {
	m := NewModule(Config{Driver: "memory"})
	if name := m.Name(); name != "store" {
		t.Errorf("Name() = %q, want 'store'", name)
	}
}

func TestStoreModule_UnavailableBeforeStart(t *testing.T) {
	m := NewModule(Config{Driver: "memory"})
	ctx := context.Background()

	if err := m.SaveUser(ctx, &chat.UserSession{UserID: "alice"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("SaveUser() before Start error = %v, want ErrUnavailable", err)
	}
	if health := m.Health(ctx); health.Healthy {
		t.Error("Health() before Start should be unhealthy")
	}
}

func TestStoreModule_StartStop(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		driver string
	}{
		{name: "memory", cfg: Config{Driver: "memory"}, driver: "memory"},
		{name: "sqlite", cfg: Config{Driver: "sqlite", DBPath: filepath.Join(t.TempDir(), "chat.db")}, driver: "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m := NewModule(tt.cfg)

			if err := m.Start(ctx); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			health := m.Health(ctx)
			if !health.Healthy {
				t.Fatalf("Health() = %+v, want healthy", health)
			}
			if health.Details["driver"] != tt.driver {
				t.Errorf("Health().Details[driver] = %v, want %s", health.Details["driver"], tt.driver)
			}

			if err := m.SaveUser(ctx, &chat.UserSession{UserID: "alice", DisplayName: "Alice"}); err != nil {
				t.Fatalf("SaveUser() error = %v", err)
			}
			if _, err := m.FindUser(ctx, "alice"); err != nil {
				t.Fatalf("FindUser() error = %v", err)
			}

			if err := m.Stop(ctx); err != nil {
				t.Fatalf("Stop() error = %v", err)
			}
			if _, err := m.FindUser(ctx, "alice"); !errors.Is(err, ErrUnavailable) {
				t.Errorf("FindUser() after Stop error = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestStoreModule_UnknownDriver(t *testing.T) {
	m := NewModule(Config{Driver: "postgres"})
	if err := m.Start(context.Background()); err == nil {
		t.Error("Start() with unknown driver should fail")
	}
}
