package network

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needdbeach/hunt/internal/game"
)

func dialSpectator(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/spectate", nil)
	if resp != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) game.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)

	var f game.Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestSpectatorGetsLatestFrameOnJoin(t *testing.T) {
	hub := NewSpectators(nil)
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)

	hub.Broadcast(game.Frame{Tick: 7, GateOpen: true})

	conn := dialSpectator(t, srv.URL)
	defer conn.Close()

	f := readFrame(t, conn)
	assert.Equal(t, uint64(7), f.Tick)
	assert.True(t, f.GateOpen)

	hub.Broadcast(game.Frame{Tick: 8, Actors: []game.ActorState{{ID: 3, Origin: game.Tile{X: 1, Y: 2}}}})
	f = readFrame(t, conn)
	assert.Equal(t, uint64(8), f.Tick)
	require.Len(t, f.Actors, 1)
	assert.Equal(t, game.Tile{X: 1, Y: 2}, f.Actors[0].Origin)
}

func TestSpectatorRemovedOnClose(t *testing.T) {
	hub := NewSpectators(nil)
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)

	hub.Broadcast(game.Frame{Tick: 1})
	conn := dialSpectator(t, srv.URL)
	readFrame(t, conn)
	assert.Equal(t, 1, hub.Count())

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestServerStreamsToSpectators(t *testing.T) {
	srv := startTestServer(t)
	require.NoError(t, srv.StartSpectators("127.0.0.1:0"))

	srv.mu.RLock()
	addr := srv.spectators.Addr()
	srv.mu.RUnlock()

	conn := dialSpectator(t, "http://"+addr)
	defer conn.Close()

	f := readFrame(t, conn)
	require.Len(t, f.Actors, 1)
	assert.Equal(t, game.KindPlayer, f.Actors[0].Kind)
}

func TestStalledSpectatorDoesNotBlockBroadcast(t *testing.T) {
	hub := NewSpectators(nil)
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)

	conn := dialSpectator(t, srv.URL)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	frame := game.Frame{Actors: make([]game.ActorState, 64)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			frame.Tick = uint64(i)
			hub.Broadcast(frame)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast blocked on a spectator that stopped reading")
	}
}
