package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/sushistage/internal/proto"
)

// fakeServer accepts websocket sessions and exposes them to the test one at a time.
type fakeServer struct {
	ts       *httptest.Server
	sessions chan *websocket.Conn
	accepted atomic.Int32
	stop     chan struct{}
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	fs := &fakeServer{sessions: make(chan *websocket.Conn, 4), stop: make(chan struct{})}
	fs.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		fs.accepted.Add(1)
		fs.sessions <- conn
		// Keep the handler alive until the test ends.
		select {
		case <-r.Context().Done():
		case <-fs.stop:
		}
	}))
	t.Cleanup(func() {
		close(fs.stop)
		fs.ts.Close()
	})
	return fs
}

func (fs *fakeServer) url() string {
	return strings.Replace(fs.ts.URL, "http", "ws", 1)
}

func (fs *fakeServer) next(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-fs.sessions:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("no websocket session accepted")
		return nil
	}
}

func waitConnected(t *testing.T, c *Conn, want bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.Connected() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("connected state never became %v", want)
}

func startConn(t *testing.T, c *Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
}

func TestConnDispatchesInboundEvents(t *testing.T) {
	fs := newFakeServer(t)

	var mu sync.Mutex
	var got []proto.SnapshotData
	received := make(chan struct{}, 4)

	c := New(Options{URL: fs.url()})
	err := c.On(proto.EventRoomJoined, func(_ context.Context, data json.RawMessage) {
		var snap proto.SnapshotData
		if err := json.Unmarshal(data, &snap); err != nil {
			t.Errorf("unmarshal: %v", err)
			return
		}
		mu.Lock()
		got = append(got, snap)
		mu.Unlock()
		received <- struct{}{}
	})
	if err != nil {
		t.Fatalf("On: %v", err)
	}
	startConn(t, c)

	server := fs.next(t)
	defer server.CloseNow()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Frames without a handler are skipped.
	ignored, _ := proto.NewFrame("somethingElse", map[string]string{"x": "y"})
	if err := wsjson.Write(ctx, server, ignored); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame, _ := proto.NewFrame(proto.EventRoomJoined, proto.SnapshotData{
		Room: proto.RoomSnapshot{ID: "1a2", Users: []proto.User{{ID: "b", Name: "bob"}}},
		User: proto.User{Name: "bob"},
	})
	if err := wsjson.Write(ctx, server, frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-received:
	case <-ctx.Done():
		t.Fatal("handler not called")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Room.ID != "1a2" || got[0].User.Name != "bob" || len(got[0].Room.Users) != 1 {
		t.Fatalf("unexpected payloads: %+v", got)
	}
}

func TestConnEmitReachesServer(t *testing.T) {
	fs := newFakeServer(t)
	c := New(Options{URL: fs.url()})

	if err := c.Emit(proto.EventJoinRoom, nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected before Run, got %v", err)
	}

	startConn(t, c)
	server := fs.next(t)
	defer server.CloseNow()
	waitConnected(t, c, true)

	payload := proto.MembershipData{
		Room: proto.Room{ID: "1a2", Name: "master", Users: []proto.User{}},
		User: proto.User{ID: "a", Name: "alice"},
	}
	if err := c.Emit(proto.EventJoinRoom, payload); err != nil {
		t.Fatalf("emit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var frame proto.Frame
	if err := wsjson.Read(ctx, server, &frame); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if frame.Event != proto.EventJoinRoom {
		t.Fatalf("unexpected event %q", frame.Event)
	}
	var data proto.MembershipData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.Room.ID != "1a2" || data.User.Name != "alice" {
		t.Fatalf("unexpected payload: %+v", data)
	}
}

func TestConnReconnectKeepsSingleHandler(t *testing.T) {
	fs := newFakeServer(t)

	var calls atomic.Int32
	received := make(chan struct{}, 8)
	c := New(Options{URL: fs.url(), ReconnectMin: 10 * time.Millisecond, ReconnectMax: 20 * time.Millisecond})
	if err := c.On(proto.EventRoomLeft, func(context.Context, json.RawMessage) {
		calls.Add(1)
		received <- struct{}{}
	}); err != nil {
		t.Fatalf("On: %v", err)
	}
	startConn(t, c)

	first := fs.next(t)
	waitConnected(t, c, true)
	first.Close(websocket.StatusGoingAway, "restart")

	second := fs.next(t)
	defer second.CloseNow()
	waitConnected(t, c, true)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	frame, _ := proto.NewFrame(proto.EventRoomLeft, proto.SnapshotData{Room: proto.RoomSnapshot{ID: "1a2"}})
	if err := wsjson.Write(ctx, second, frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-received:
	case <-ctx.Done():
		t.Fatal("handler not called after reconnect")
	}
	// Give a duplicate registration a chance to show up.
	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("handler called %d times, want 1", n)
	}
	if n := fs.accepted.Load(); n < 2 {
		t.Fatalf("expected a reconnect, accepted=%d", n)
	}
}

func TestConnRegistrationRules(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1"})
	noop := func(context.Context, json.RawMessage) {}

	if err := c.On("a", noop); err != nil {
		t.Fatalf("first On: %v", err)
	}
	if err := c.On("a", noop); !errors.Is(err, ErrHandlerExists) {
		t.Fatalf("expected ErrHandlerExists, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !c.started.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := c.On("b", noop); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := c.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run: %v", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestConnClose(t *testing.T) {
	fs := newFakeServer(t)
	c := New(Options{URL: fs.url()})

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	server := fs.next(t)
	defer server.CloseNow()
	waitConnected(t, c, true)

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = c.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after Close")
	}
	if err := c.Emit(proto.EventLeaveRoom, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestConnDropsFramesQueuedBetweenSessions(t *testing.T) {
	fs := newFakeServer(t)
	c := New(Options{URL: fs.url()})

	// A frame left behind by a session that already ended.
	stale, err := proto.NewFrame(proto.EventJoinRoom, proto.MembershipData{Room: proto.Room{ID: "stale"}})
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	c.send <- stale

	startConn(t, c)
	server := fs.next(t)
	defer server.CloseNow()
	waitConnected(t, c, true)

	if err := c.Emit(proto.EventLeaveRoom, proto.MembershipData{Room: proto.Room{ID: "fresh"}}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var frame proto.Frame
	if err := wsjson.Read(ctx, server, &frame); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if frame.Event != proto.EventLeaveRoom {
		t.Fatalf("stale frame replayed: %q %s", frame.Event, frame.Data)
	}
}
