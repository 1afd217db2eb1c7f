package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/omis-2025/strangerwave-sub000/internal/events"
	"github.com/omis-2025/strangerwave-sub000/internal/registry"
	"github.com/omis-2025/strangerwave-sub000/internal/security"
	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
)

const testSecret = "test_secret_key_minimum_32_chars"

type closed struct {
	userID   uint
	handleID string
}

type fakeConnector struct {
	reject  bool
	handles chan registry.Handle
	inbound chan *events.Inbound
	closed  chan closed
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		handles: make(chan registry.Handle, 4),
		inbound: make(chan *events.Inbound, 16),
		closed:  make(chan closed, 4),
	}
}

func (f *fakeConnector) Connect(ctx context.Context, userID uint, handle registry.Handle) error {
	if f.reject {
		return errors.New(errors.ErrCodePolicyRejection, "you are banned")
	}
	f.handles <- handle
	return handle.Send(events.Connected{UserID: userID})
}

func (f *fakeConnector) Handle(ctx context.Context, userID uint, in *events.Inbound) {
	f.inbound <- in
}

func (f *fakeConnector) ConnectionClosed(userID uint, handleID string) bool {
	f.closed <- closed{userID: userID, handleID: handleID}
	return true
}

func startServer(t *testing.T, f *fakeConnector) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(context.Background(), f, testSecret, nil))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID uint) *websocket.Conn {
	t.Helper()
	token, err := security.GenerateJWT(userID, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("frame %s is not JSON: %v", data, err)
	}
	return frame
}

func TestServer_RejectsMissingOrBadToken(t *testing.T) {
	srv := startServer(t, newFakeConnector())

	tests := []struct {
		name string
		url  string
	}{
		{name: "No token", url: srv.URL + "/"},
		{name: "Garbage token", url: srv.URL + "/?token=nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(tt.url)
			if err != nil {
				t.Fatalf("GET error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestServer_RoundTrip(t *testing.T) {
	f := newFakeConnector()
	srv := startServer(t, f)
	conn := dial(t, srv, 7)

	frame := readFrame(t, conn)
	if frame["type"] != events.TypeConnected || frame["userId"] != float64(7) {
		t.Fatalf("first frame = %v, want connected for user 7", frame)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing","isTyping":true}`)); err != nil {
		t.Fatal(err)
	}
	select {
	case in := <-f.inbound:
		if in.Type != events.TypeTyping || !in.IsTyping {
			t.Errorf("inbound = %+v", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never received the typing event")
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"fly"}`)); err != nil {
		t.Fatal(err)
	}
	frame = readFrame(t, conn)
	if frame["type"] != events.TypeError {
		t.Errorf("frame = %v, want error", frame)
	}

	handle := <-f.handles
	conn.Close()
	select {
	case c := <-f.closed:
		if c.userID != 7 || c.handleID != handle.ID() {
			t.Errorf("ConnectionClosed(%d, %s), want (7, %s)", c.userID, c.handleID, handle.ID())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ConnectionClosed was never called")
	}
}

func TestServer_ServerSideClose(t *testing.T) {
	f := newFakeConnector()
	srv := startServer(t, f)
	conn := dial(t, srv, 3)
	readFrame(t, conn)

	handle := <-f.handles
	if err := handle.Send(events.Banned{Reason: "spam"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	_ = handle.Close()

	frame := readFrame(t, conn)
	if frame["type"] != events.TypeBanned {
		t.Errorf("frame = %v, want banned flushed before close", frame)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("ReadMessage() error = %v, want normal close", err)
	}
	if err := handle.Send(events.QueueLeft{}); err == nil {
		t.Error("Send() after Close() succeeded")
	}
}

func TestServer_ConnectRejected(t *testing.T) {
	f := newFakeConnector()
	f.reject = true
	srv := startServer(t, f)
	conn := dial(t, srv, 5)

	frame := readFrame(t, conn)
	if frame["type"] != events.TypeError || frame["error"] != "you are banned" {
		t.Errorf("frame = %v, want error", frame)
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "Empty list allows all", origin: "https://evil.test", want: true},
		{name: "Wildcard", allowed: []string{"*"}, origin: "https://a.test", want: true},
		{name: "Listed", allowed: []string{"https://a.test"}, origin: "https://a.test", want: true},
		{name: "Not listed", allowed: []string{"https://a.test"}, origin: "https://b.test", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Header.Set("Origin", tt.origin)
			if got := originChecker(tt.allowed)(r); got != tt.want {
				t.Errorf("originChecker() = %v, want %v", got, tt.want)
			}
		})
	}
}
