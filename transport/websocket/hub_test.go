package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wricardo/mcp-training/tilemerge/game/engine"
)

func newClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, engine.WebSocketBufferSize),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	require.NotNil(t, hub)
	assert.NotNil(t, hub.sessions)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.NotNil(t, hub.done)
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := newClient(hub, "AbC1")

	hub.registerClient(client)

	require.Contains(t, hub.sessions, "abc1")
	assert.True(t, hub.sessions["abc1"][client])
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	a := newClient(hub, "abc1")
	b := newClient(hub, "abc1")
	hub.registerClient(a)
	hub.registerClient(b)

	hub.unregisterClient(a)
	assert.Len(t, hub.sessions["abc1"], 1)

	_, open := <-a.send
	assert.False(t, open, "send channel should be closed")

	hub.unregisterClient(b)
	assert.NotContains(t, hub.sessions, "abc1", "empty session should be removed")

	// unknown clients are ignored
	hub.unregisterClient(newClient(hub, "zzzz"))
}

func TestHubDeliver(t *testing.T) {
	hub := NewHub()
	same := newClient(hub, "abc1")
	other := newClient(hub, "def2")
	hub.registerClient(same)
	hub.registerClient(other)

	hub.deliver(outbound{sessionID: "ABC1", data: []byte(`{"event":"x"}`)})

	select {
	case msg := <-same.send:
		assert.JSONEq(t, `{"event":"x"}`, string(msg))
	default:
		t.Fatal("client in session did not receive the message")
	}
	assert.Empty(t, other.send)
}

func TestHubDeliverDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, sessionID: "abc1", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.deliver(outbound{sessionID: "abc1", data: []byte("{}")})

	assert.NotContains(t, hub.sessions, "abc1")
}

func TestHubPublishAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// none of these may block once the loop is gone
	hub.BroadcastToSession("abc1", &engine.GameState{})
	hub.BroadcastEvent("abc1", EventGameOver, nil)
	assert.Zero(t, hub.ClientCount("abc1"))
}

func TestHubEndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=abc1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.ClientCount("abc1") == 1 }, time.Second, 10*time.Millisecond)

	state := &engine.GameState{
		Grid:        engine.Grid{{2, 0}, {0, 2}},
		Score:       4,
		Phase:       engine.PhasePlaying,
		VariantName: "duo",
	}
	hub.BroadcastToSession("abc1", state)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "abc1", msg.SessionID)
	assert.Equal(t, EventStateUpdate, msg.Event)
	require.NotNil(t, msg.GameState)
	assert.Equal(t, 4, msg.GameState.Score)
	assert.Equal(t, engine.PhasePlaying, msg.GameState.Phase)

	hub.BroadcastEvent("abc1", EventGameOver, map[string]int{"score": 4})
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, EventGameOver, msg.Event)

	// stopping the hub closes the connection from the server side
	cancel()
	<-stopped
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	conn.Close()
	server.Close()
}
