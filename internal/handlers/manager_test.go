package handlers

import (
	"context"
	"testing"

	"github.com/omis-2025/strangerwave-sub000/internal/events"
	"github.com/omis-2025/strangerwave-sub000/internal/matching"
	"github.com/omis-2025/strangerwave-sub000/internal/models"
	"github.com/omis-2025/strangerwave-sub000/internal/queue"
	"github.com/omis-2025/strangerwave-sub000/internal/registry"
	"github.com/omis-2025/strangerwave-sub000/internal/registry/registrytest"
	"github.com/omis-2025/strangerwave-sub000/internal/relay"
	"github.com/omis-2025/strangerwave-sub000/internal/session"
	"github.com/omis-2025/strangerwave-sub000/internal/store"
)

type harness struct {
	store *store.MemoryStore
	reg   *registry.Registry
	queue *queue.Queue
	mgr   *HandlerManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: store.NewMemoryStore(),
		reg:   registry.New(),
		queue: queue.New(),
	}
	sessions := session.NewManager(h.store, h.store, h.reg)
	engine := matching.NewEngine(h.queue, sessions, h.store, h.store, h.reg, matching.Options{})
	rl := relay.New(sessions, h.store, h.store, h.reg, nil, nil, nil, nil, relay.Options{})
	h.mgr = NewHandlerManager(h.reg, engine, sessions, rl, h.store)
	return h
}

func (h *harness) connect(t *testing.T, u models.User) (uint, *registrytest.Recorder) {
	t.Helper()
	stored := h.store.PutUser(u)
	rec := registrytest.NewRecorder()
	if err := h.mgr.Connect(context.Background(), stored.ID, rec); err != nil {
		t.Fatalf("Connect(%d) error = %v", stored.ID, err)
	}
	return stored.ID, rec
}

func TestHandlerManager_ChatLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice, a := h.connect(t, models.User{Gender: models.GenderFemale})
	bob, b := h.connect(t, models.User{Gender: models.GenderMale})

	if a.Count(events.TypeConnected) != 1 {
		t.Fatalf("alice events = %v, want connected", a.Types())
	}

	h.mgr.Handle(ctx, alice, &events.Inbound{Type: events.TypeJoinQueue, PreferredGender: "male"})
	h.mgr.Handle(ctx, bob, &events.Inbound{Type: events.TypeJoinQueue})

	for name, rec := range map[string]*registrytest.Recorder{"alice": a, "bob": b} {
		if rec.Count(events.TypeMatchFound) != 1 {
			t.Fatalf("%s events = %v, want match_found", name, rec.Types())
		}
	}

	h.mgr.Handle(ctx, bob, &events.Inbound{Type: events.TypeTyping, IsTyping: true})
	h.mgr.Handle(ctx, bob, &events.Inbound{Type: events.TypeSendMessage, Content: "hello"})

	e, ok := a.Last(events.TypeMessage)
	if !ok || e.(events.Message).Content != "hello" || e.(events.Message).SenderID != bob {
		t.Fatalf("alice events = %v, want message from bob", a.Types())
	}
	if a.Count(events.TypeTyping) != 1 {
		t.Errorf("alice typing events = %d, want 1", a.Count(events.TypeTyping))
	}

	h.mgr.Handle(ctx, alice, &events.Inbound{Type: events.TypeDisconnect})
	if b.Count(events.TypePartnerDisconnected) != 1 {
		t.Errorf("bob events = %v, want partner_disconnected", b.Types())
	}
	if a.Count(events.TypeDisconnected) != 1 {
		t.Errorf("alice events = %v, want disconnected", a.Types())
	}

	sessions := h.store.Sessions()
	if len(sessions) != 1 || sessions[0].Active || sessions[0].EndReason != session.ReasonDisconnect {
		t.Errorf("stored sessions = %+v", sessions)
	}
}

func TestHandlerManager_ErrorsGoToSender(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, a := h.connect(t, models.User{})
	_, b := h.connect(t, models.User{})

	tests := []struct {
		name string
		in   events.Inbound
		want string
	}{
		{name: "Message without session", in: events.Inbound{Type: events.TypeSendMessage, Content: "hi"}, want: "you are not in a chat"},
		{name: "Typing without session", in: events.Inbound{Type: events.TypeTyping, IsTyping: true}, want: "you are not in a chat"},
		{name: "Unknown type", in: events.Inbound{Type: "dance"}, want: "unknown event type: dance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			h.mgr.Handle(ctx, alice, &in)
			e, ok := a.Last(events.TypeError)
			if !ok || e.(events.Error).Error != tt.want {
				t.Errorf("last error = %v, want %q", e, tt.want)
			}
		})
	}

	if b.Count(events.TypeError) != 0 {
		t.Errorf("bystander got errors: %v", b.Types())
	}
}

func TestHandlerManager_LeaveQueueIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, a := h.connect(t, models.User{})

	h.mgr.Handle(ctx, alice, &events.Inbound{Type: events.TypeJoinQueue})
	if !h.queue.Contains(alice) {
		t.Fatal("alice not queued")
	}

	for i := 0; i < 2; i++ {
		h.mgr.Handle(ctx, alice, &events.Inbound{Type: events.TypeLeaveQueue})
	}
	if h.queue.Contains(alice) {
		t.Error("alice still queued")
	}
	if a.Count(events.TypeQueueLeft) != 2 {
		t.Errorf("queue_left count = %d, want 2", a.Count(events.TypeQueueLeft))
	}
	if a.Count(events.TypeError) != 0 {
		t.Errorf("unexpected errors: %v", a.Types())
	}
}

func TestHandlerManager_BannedConnectRejected(t *testing.T) {
	h := newHarness(t)
	u := h.store.PutUser(models.User{IsBanned: true, BanReason: "spam"})
	rec := registrytest.NewRecorder()

	if err := h.mgr.Connect(context.Background(), u.ID, rec); err == nil {
		t.Fatal("Connect() accepted a banned user")
	}
	if !rec.Closed() || rec.Count(events.TypeBanned) != 1 {
		t.Errorf("handle closed=%v events=%v", rec.Closed(), rec.Types())
	}
	if h.reg.IsOnline(u.ID) {
		t.Error("banned user registered")
	}
}

func TestHandlerManager_ReconnectKeepsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice, oldHandle := h.connect(t, models.User{})
	bob, b := h.connect(t, models.User{})
	h.mgr.Handle(ctx, alice, &events.Inbound{Type: events.TypeJoinQueue})
	h.mgr.Handle(ctx, bob, &events.Inbound{Type: events.TypeJoinQueue})

	newHandle := registrytest.NewRecorder()
	if err := h.mgr.Connect(ctx, alice, newHandle); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !oldHandle.Closed() {
		t.Error("replaced handle not closed")
	}

	if h.mgr.ConnectionClosed(alice, oldHandle.ID()) {
		t.Error("stale close tore down the new connection")
	}
	if !h.mgr.Sessions.IsActive(alice) {
		t.Fatal("session ended by stale close")
	}

	if !h.mgr.ConnectionClosed(alice, newHandle.ID()) {
		t.Fatal("ConnectionClosed() = false for the current handle")
	}
	if h.mgr.Sessions.IsActive(bob) {
		t.Error("session still active after connection loss")
	}
	if b.Count(events.TypePartnerDisconnected) != 1 {
		t.Errorf("bob events = %v, want partner_disconnected", b.Types())
	}
}

func TestHandlerManager_Shutdown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice, a := h.connect(t, models.User{})
	bob, _ := h.connect(t, models.User{})
	carol, c := h.connect(t, models.User{Country: "DE"})
	h.mgr.Handle(ctx, alice, &events.Inbound{Type: events.TypeJoinQueue})
	h.mgr.Handle(ctx, bob, &events.Inbound{Type: events.TypeJoinQueue})
	h.mgr.Handle(ctx, carol, &events.Inbound{Type: events.TypeJoinQueue, Country: "JP"})

	h.mgr.Shutdown(ctx)

	if a.Count(events.TypeDisconnected) != 1 {
		t.Errorf("alice events = %v, want disconnected", a.Types())
	}
	if c.Count(events.TypeQueueLeft) != 1 {
		t.Errorf("carol events = %v, want queue_left", c.Types())
	}
	if h.queue.Len() != 0 || h.mgr.Sessions.ActiveCount() != 0 {
		t.Errorf("queue=%d active=%d after shutdown", h.queue.Len(), h.mgr.Sessions.ActiveCount())
	}
	if !a.Closed() || !c.Closed() || h.reg.Count() != 0 {
		t.Errorf("connections left open: registry count = %d", h.reg.Count())
	}
}
