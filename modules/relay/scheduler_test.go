package relay

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPromotionScheduler_Fires(t *testing.T) {
	s := newPromotionScheduler()
	done := make(chan struct{})

	s.schedule("m1", 10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled task did not run")
	}
	if s.pending() != 0 {
		t.Errorf("pending() = %d after fire, want 0", s.pending())
	}
}

func TestPromotionScheduler_Cancel(t *testing.T) {
	s := newPromotionScheduler()
	var ran atomic.Bool

	s.schedule("m1", 20*time.Millisecond, func() { ran.Store(true) })
	if !s.cancel("m1") {
		t.Error("cancel() = false for pending task")
	}
	if s.cancel("m1") {
		t.Error("cancel() = true twice")
	}

	time.Sleep(60 * time.Millisecond)
	if ran.Load() {
		t.Error("cancelled task ran")
	}
}

func TestPromotionScheduler_RescheduleReplaces(t *testing.T) {
	s := newPromotionScheduler()
	var runs atomic.Int32

	s.schedule("m1", 10*time.Millisecond, func() { runs.Add(1) })
	s.schedule("m1", 10*time.Millisecond, func() { runs.Add(10) })

	time.Sleep(80 * time.Millisecond)
	if got := runs.Load(); got != 10 {
		t.Errorf("runs = %d, want only the replacement to run", got)
	}
}

func TestPromotionScheduler_Stop(t *testing.T) {
	s := newPromotionScheduler()
	var ran atomic.Bool

	s.schedule("m1", 20*time.Millisecond, func() { ran.Store(true) })
	s.stop()

	if s.pending() != 0 {
		t.Errorf("pending() = %d after stop, want 0", s.pending())
	}
	if s.schedule("m2", time.Millisecond, func() { ran.Store(true) }) {
		t.Error("schedule() = true after stop")
	}

	time.Sleep(60 * time.Millisecond)
	if ran.Load() {
		t.Error("task ran after stop")
	}
}
