package input

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/needdbeach/hunt/internal/game"
)

// fakeClock is a manually advanced time source for Queue.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestQueue() (*Queue, *fakeClock) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	q := NewQueue()
	q.now = clock.now
	return q, clock
}

func TestQueueDeliversOnce(t *testing.T) {
	q := NewQueueWithWindow(0)
	assert.True(t, q.Push(game.DirLeft))
	assert.False(t, q.Push(game.DirRight), "second press while pending is dropped")
	assert.False(t, q.Push(game.DirNone))

	assert.Equal(t, game.DirLeft, q.PollDirection())
	assert.Equal(t, game.DirNone, q.PollDirection())

	assert.True(t, q.Push(game.DirDown))
	assert.Equal(t, game.DirDown, q.PollDirection())
}

func TestScriptPlaysByTick(t *testing.T) {
	s := NewScript(map[uint64]game.Direction{1: game.DirUp, 3: game.DirLeft})

	var got []game.Direction
	for i := 0; i < 5; i++ {
		got = append(got, s.PollDirection())
	}
	assert.Equal(t, []game.Direction{game.DirNone, game.DirUp, game.DirNone, game.DirLeft, game.DirNone}, got)
	assert.Equal(t, uint64(5), s.Tick())
}

func TestScriptDrivesEngine(t *testing.T) {
	level := game.NewTilemap([][]int{{0, 0, 0}})
	e := game.NewEngine(game.DefaultConfig(), level, NewScript(map[uint64]game.Direction{0: game.DirRight}), nil)
	_, err := e.Spawn(game.Spawn{ID: 0, Kind: game.KindPlayer, Tile: game.Tile{X: 0, Y: 0}})
	assert.NoError(t, err)

	for i := 0; i < 20; i++ {
		e.Step()
	}
	f := e.Snapshot()
	assert.Equal(t, game.Tile{X: 1, Y: 0}, f.Actors[0].Origin)
	assert.Equal(t, 1, f.Turns)
}

func TestQueueTreatsRepeatsAsHeld(t *testing.T) {
	q, clock := newTestQueue()

	assert.True(t, q.Push(game.DirUp))
	assert.Equal(t, game.DirUp, q.PollDirection())

	clock.advance(500 * time.Millisecond)
	assert.False(t, q.Push(game.DirUp), "initial auto-repeat")
	clock.advance(30 * time.Millisecond)
	assert.False(t, q.Push(game.DirUp), "auto-repeat")
	assert.Equal(t, game.DirNone, q.PollDirection())

	// A different key is a new press even inside the window.
	clock.advance(30 * time.Millisecond)
	assert.True(t, q.Push(game.DirLeft))
	assert.Equal(t, game.DirLeft, q.PollDirection())

	clock.advance(RepeatWindow)
	assert.True(t, q.Push(game.DirLeft), "pressed again after the key was let go")
}

func TestHeldKeyMovesOnce(t *testing.T) {
	q, clock := newTestQueue()
	level := game.NewTilemap([][]int{{0, 0, 0, 0, 0, 0, 0, 0}})
	e := game.NewEngine(game.DefaultConfig(), level, q, nil)
	_, err := e.Spawn(game.Spawn{ID: 0, Kind: game.KindPlayer, Tile: game.Tile{X: 0, Y: 0}})
	assert.NoError(t, err)

	const tick = 16 * time.Millisecond
	for i := 0; i < 60; i++ {
		if i%2 == 0 {
			q.Push(game.DirRight)
		}
		e.Step()
		clock.advance(tick)
	}
	f := e.Snapshot()
	assert.Equal(t, game.Tile{X: 1, Y: 0}, f.Actors[0].Origin)
	assert.Equal(t, 1, f.Turns)

	clock.advance(time.Second)
	q.Push(game.DirRight)
	for i := 0; i < 60; i++ {
		e.Step()
	}
	f = e.Snapshot()
	assert.Equal(t, game.Tile{X: 2, Y: 0}, f.Actors[0].Origin)
	assert.Equal(t, 2, f.Turns)
}
