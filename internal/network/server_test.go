package network

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needdbeach/hunt/internal/game"
	"github.com/needdbeach/hunt/internal/input"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	level := game.NewTilemap([][]int{
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
	})
	cfg := game.DefaultConfig()
	cfg.TickRate = 200
	queue := input.NewQueue()
	engine := game.NewEngine(cfg, level, queue, nil)
	_, err := engine.Spawn(game.Spawn{ID: 0, Kind: game.KindPlayer, Tile: game.Tile{X: 2, Y: 2}})
	require.NoError(t, err)

	srv := NewServer("127.0.0.1:0", engine, queue, level, 0, nil)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv
}

// waitFrame reads frames until match returns true.
func waitFrame(t *testing.T, frames <-chan game.Frame, match func(game.Frame) bool) game.Frame {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-frames:
			require.True(t, ok, "frame channel closed")
			if match(f) {
				return f
			}
		case <-deadline:
			t.Fatal("timed out waiting for frame")
		}
	}
}

func TestClientJoinReceivesWelcome(t *testing.T) {
	srv := startTestServer(t)

	c, err := NewClient(srv.Addr(), "tester")
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, srv.Session(), c.Session())
	assert.Eventually(t, func() bool { return srv.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, c.ActorID())
	assert.Equal(t, 200, c.Config().TickRate)
	require.NotNil(t, c.Level())
	assert.Equal(t, 5, c.Level().Width)

	f := waitFrame(t, c.FrameChan(), func(game.Frame) bool { return true })
	require.Len(t, f.Actors, 1)
}

func TestClientInputMovesActor(t *testing.T) {
	srv := startTestServer(t)

	c, err := NewClient(srv.Addr(), "tester")
	require.NoError(t, err)
	defer c.Close()

	waitFrame(t, c.FrameChan(), func(game.Frame) bool { return true })
	require.NoError(t, c.SendInput(game.DirRight))

	f := waitFrame(t, c.FrameChan(), func(f game.Frame) bool {
		return f.Actors[0].Origin == game.Tile{X: 3, Y: 2} && f.Actors[0].Dir == game.DirNone
	})
	assert.Equal(t, 1, f.Turns)
}

func TestServerRejectsMissingJoin(t *testing.T) {
	srv := startTestServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, Encode(conn, MsgInput, InputMsg{Direction: game.DirUp}))
	env, err := Decode(conn)
	require.NoError(t, err)
	assert.Equal(t, MsgError, env.Type)
}

func TestServerLocalListenersSeeFrames(t *testing.T) {
	level := game.NewTilemap([][]int{{0, 0}})
	queue := input.NewQueue()
	engine := game.NewEngine(game.DefaultConfig(), level, queue, nil)
	srv := NewServer("127.0.0.1:0", engine, queue, level, 0, nil)

	var got []uint64
	srv.OnFrame(func(f game.Frame) { got = append(got, f.Tick) })
	engine.Step()
	engine.Step()

	assert.Equal(t, []uint64{0, 1}, got)
}

func TestServerStopIsIdempotent(t *testing.T) {
	srv := startTestServer(t)
	srv.Stop()
	srv.Stop()

	_, err := NewClient(srv.Addr(), "late")
	assert.Error(t, err)
}

func TestStalledClientDoesNotBlockEngine(t *testing.T) {
	srv := startTestServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.(*net.TCPConn).SetReadBuffer(4096))
	require.NoError(t, Encode(conn, MsgJoin, JoinMsg{Name: "stalled"}))
	assert.Eventually(t, func() bool { return srv.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// The stalled connection never reads, so its socket buffers fill well
	// before the loop ends.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20000; i++ {
			srv.engine.Step()
		}
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("engine blocked on a client that stopped reading")
	}

	c, err := NewClient(srv.Addr(), "reader")
	require.NoError(t, err)
	defer c.Close()
	waitFrame(t, c.FrameChan(), func(game.Frame) bool { return true })
}
