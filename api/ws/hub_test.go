package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruipedro-pinheiro/CHIKA/agent/collaboration"
)

type countingObserver struct {
	opened atomic.Int32
	closed atomic.Int32
}

func (o *countingObserver) WebSocketOpened() { o.opened.Add(1) }
func (o *countingObserver) WebSocketClosed() { o.closed.Add(1) }

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/rooms/{room}/ws", hub)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/rooms/" + room + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) collaboration.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var ev collaboration.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func waitClients(t *testing.T, hub *Hub, room string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients(room) == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_PublishToRoom(t *testing.T) {
	hub := NewHub(Config{}, nil, nil)
	srv := newTestServer(t, hub)

	a1 := dial(t, srv, "room-a")
	a2 := dial(t, srv, "room-a")
	b := dial(t, srv, "room-b")
	waitClients(t, hub, "room-a", 2)
	waitClients(t, hub, "room-b", 1)

	hub.Publish(collaboration.Event{
		Type:      collaboration.EventMessage,
		RoomID:    "room-a",
		Responder: "claude",
		Content:   "I agree with gpt",
		Round:     1,
	})

	for _, conn := range []*websocket.Conn{a1, a2} {
		ev := readEvent(t, conn)
		assert.Equal(t, collaboration.EventMessage, ev.Type)
		assert.Equal(t, "claude", ev.Responder)
		assert.Equal(t, 1, ev.Round)
	}

	// room-b 不应收到 room-a 的事件
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := b.Read(ctx)
	assert.Error(t, err)
}

func TestHub_ObserverAndUnregister(t *testing.T) {
	obs := &countingObserver{}
	hub := NewHub(Config{}, obs, nil)
	srv := newTestServer(t, hub)

	conn := dial(t, srv, "room-a")
	waitClients(t, hub, "room-a", 1)
	assert.Equal(t, int32(1), obs.opened.Load())

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	waitClients(t, hub, "room-a", 0)
	require.Eventually(t, func() bool { return obs.closed.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_CloseSendsGoingAway(t *testing.T) {
	hub := NewHub(Config{}, nil, nil)
	srv := newTestServer(t, hub)

	conn := dial(t, srv, "room-a")
	waitClients(t, hub, "room-a", 1)

	hub.Close()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))

	// 关闭后拒绝新连接
	resp, err := http.Get(srv.URL + "/api/v1/rooms/room-a/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHub_SlowConsumerIsKicked(t *testing.T) {
	hub := NewHub(Config{BufferSize: 1}, nil, nil)
	c := &client{
		id:   uuid.New(),
		room: "room-a",
		send: make(chan []byte, 1),
		done: make(chan struct{}),
	}
	require.True(t, hub.register(c))

	hub.Publish(collaboration.Event{Type: collaboration.EventMessage, RoomID: "room-a"})
	select {
	case <-c.done:
		t.Fatal("client kicked before its buffer filled")
	default:
	}

	hub.Publish(collaboration.Event{Type: collaboration.EventMessage, RoomID: "room-a"})
	select {
	case <-c.done:
	default:
		t.Fatal("slow client was not kicked")
	}
	assert.Equal(t, websocket.StatusPolicyViolation, c.status)

	// 已踢出的客户端不再阻塞发布
	hub.Publish(collaboration.Event{Type: collaboration.EventMessage, RoomID: "room-a"})
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"http://localhost:5173", "https://chika.example.com", " ", "*.example.org"})
	assert.Equal(t, []string{"localhost:5173", "chika.example.com", "*.example.org"}, got)
}

func TestHub_CrossOriginRejected(t *testing.T) {
	hub := NewHub(Config{AllowedOrigins: []string{"http://allowed.test"}}, nil, nil)
	srv := newTestServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/rooms/room-a/ws"

	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.test"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://allowed.test"}},
	})
	require.NoError(t, err)
	_ = conn.CloseNow()
}
