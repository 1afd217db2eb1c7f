package registry_test

import (
	"sync"
	"testing"

	"github.com/omis-2025/strangerwave-sub000/internal/events"
	"github.com/omis-2025/strangerwave-sub000/internal/registry"
	"github.com/omis-2025/strangerwave-sub000/internal/registry/registrytest"
)

func TestRegistry_RegisterSupersedes(t *testing.T) {
	r := registry.New()
	first := registrytest.NewRecorder()
	second := registrytest.NewRecorder()

	if prev := r.Register(1, first); prev != nil {
		t.Fatalf("first Register returned %v, want nil", prev)
	}
	prev := r.Register(1, second)
	if prev == nil || prev.ID() != first.ID() {
		t.Fatalf("second Register returned %v, want first handle", prev)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}

	if r.UnregisterIf(1, first.ID()) {
		t.Error("UnregisterIf with stale handle removed the current one")
	}
	if !r.IsOnline(1) {
		t.Error("user should still be online")
	}
	if !r.UnregisterIf(1, second.ID()) {
		t.Error("UnregisterIf with current handle failed")
	}
	if r.IsOnline(1) {
		t.Error("user should be offline")
	}
}

func TestRegistry_Send(t *testing.T) {
	r := registry.New()
	h := registrytest.NewRecorder()
	r.Register(5, h)

	tests := []struct {
		name   string
		userID uint
		want   bool
	}{
		{name: "Online user", userID: 5, want: true},
		{name: "Unknown user", userID: 6, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Send(tt.userID, events.QueueJoined{}); got != tt.want {
				t.Errorf("Send() = %v, want %v", got, tt.want)
			}
		})
	}

	h.Close()
	if r.Send(5, events.QueueJoined{}) {
		t.Error("Send() to a closed handle should report false")
	}
	if h.Count(events.TypeQueueJoined) != 1 {
		t.Errorf("recorded %d queue_joined events, want 1", h.Count(events.TypeQueueJoined))
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := registry.New()
	h := registrytest.NewRecorder()
	r.Register(1, h)

	if got := r.Unregister(1); got == nil || got.ID() != h.ID() {
		t.Errorf("Unregister() = %v, want registered handle", got)
	}
	if got := r.Unregister(1); got != nil {
		t.Errorf("second Unregister() = %v, want nil", got)
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := registry.New()
	var wg sync.WaitGroup

	for i := uint(1); i <= 50; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			h := registrytest.NewRecorder()
			r.Register(id, h)
			r.Send(id, events.Connected{UserID: id})
			r.IsOnline(id)
			r.UnregisterIf(id, h.ID())
		}(i)
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}
