package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needdbeach/hunt/internal/game"
)

func testFrame() *game.Frame {
	return &game.Frame{
		Tick:     42,
		GateOpen: false,
		Turns:    3,
		Actors: []game.ActorState{
			{ID: 0, Kind: game.KindPlayer, Render: game.Vec{X: 0, Y: 0}, Origin: game.Tile{X: 0, Y: 0}},
			{ID: 1, Kind: game.KindEnemy, Render: game.Vec{X: 32, Y: 0}, Origin: game.Tile{X: 2, Y: 0}, Flipped: true},
		},
		Collisions: []game.Collision{
			{ActorID: 0, Outcome: game.Outcome{Collided: true, NeighborCollision: true, With: 1}},
		},
	}
}

func TestRenderBoardPlacesActors(t *testing.T) {
	level := game.NewTilemap([][]int{{0, 0, 0, 2}, {1, 0, 0, 0}})
	out := RenderBoard(level, testFrame(), 16, 0)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "@@")
	assert.Contains(t, lines[0], "E1")
	assert.Contains(t, lines[0], "██")
	assert.Contains(t, lines[1], "''")
}

func TestRenderBoardShowsOtherPlayers(t *testing.T) {
	level := game.NewTilemap([][]int{{0, 0, 0}})
	out := RenderBoard(level, testFrame(), 16, 5)
	assert.Contains(t, out, "P0")
	assert.NotContains(t, out, "@@")
}

func TestRenderBoardUsesRenderedPosition(t *testing.T) {
	level := game.NewTilemap([][]int{{0, 0, 0}})
	frame := &game.Frame{Actors: []game.ActorState{
		// Past the halfway point to tile 2.
		{ID: 1, Kind: game.KindEnemy, Render: game.Vec{X: 25, Y: 0}, Origin: game.Tile{X: 1, Y: 0}},
	}}
	board := RenderBoard(level, frame, 16, 0)
	assert.Equal(t, 2, strings.Index(stripStyles(board), "E1")/2)
}

func TestRenderBoardWaiting(t *testing.T) {
	assert.Contains(t, RenderBoard(nil, nil, 16, 0), "Waiting")
	assert.Equal(t, "", RenderHUD(nil, 0))
}

func TestRenderHUD(t *testing.T) {
	out := RenderHUD(testFrame(), 0)
	assert.Contains(t, out, "Tick:  42")
	assert.Contains(t, out, "Turns: 3")
	assert.Contains(t, out, "Moving...")
	assert.Contains(t, out, "flipped")
	assert.Contains(t, out, "swap")
}

func TestKeysSendDirections(t *testing.T) {
	var sent []game.Direction
	m := NewModel(game.DefaultLevel(), 16, nil, func(d game.Direction) error {
		sent = append(sent, d)
		return nil
	}, 0)

	var model tea.Model = m
	for _, k := range []tea.KeyMsg{
		{Type: tea.KeyUp},
		{Type: tea.KeyRunes, Runes: []rune("a")},
		{Type: tea.KeyRight},
		{Type: tea.KeyRunes, Runes: []rune("s")},
		{Type: tea.KeyRunes, Runes: []rune("x")},
	} {
		var cmd tea.Cmd
		model, cmd = model.Update(k)
		assert.Nil(t, cmd)
	}
	assert.Equal(t, []game.Direction{game.DirUp, game.DirLeft, game.DirRight, game.DirDown}, sent)
}

func TestSendErrorQuits(t *testing.T) {
	m := NewModel(game.DefaultLevel(), 16, nil, func(game.Direction) error {
		return errors.New("connection lost")
	}, 0)

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	assert.NotNil(t, cmd)
	assert.Contains(t, model.View(), "connection lost")
}

func TestQuitKey(t *testing.T) {
	m := NewModel(game.DefaultLevel(), 16, nil, nil, 0)
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd)
	assert.Equal(t, "Goodbye!\n", model.View())
}

func TestFramesFlowThroughModel(t *testing.T) {
	frames := make(chan game.Frame, 1)
	m := NewModel(game.DefaultLevel(), 16, frames, nil, 0)

	frames <- *testFrame()
	msg := m.Init()()
	model, cmd := m.Update(msg)
	assert.NotNil(t, cmd, "model keeps waiting for frames")
	assert.Contains(t, model.View(), "Tick:  42")

	close(frames)
	model, _ = model.Update(cmd())
	assert.Contains(t, model.View(), "frame stream closed")
}

func TestClosedStreamShowsServerError(t *testing.T) {
	frames := make(chan game.Frame)
	close(frames)
	m := NewModel(game.DefaultLevel(), 16, frames, nil, 0).
		WithErrorSource(func() string { return "session full" })

	model, cmd := m.Update(m.Init()())
	assert.NotNil(t, cmd)
	assert.Contains(t, model.View(), "frame stream closed: session full")
}

// stripStyles removes ANSI escape sequences.
func stripStyles(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEsc = false
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
