package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/needdbeach/hunt/internal/game"
)

// frameMsg carries a new frame from the engine or the network client.
type frameMsg game.Frame

// errMsg carries an error.
type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// SendFunc delivers a key press to whoever owns the engine.
type SendFunc func(game.Direction) error

// Model is the Bubbletea model shared by local play and network clients.
type Model struct {
	level    *game.Tilemap
	tileSize int
	frames   <-chan game.Frame
	send     SendFunc
	selfID   int
	lastErr  func() string
	frame    *game.Frame
	err      error
	quitting bool
}

// NewModel creates a model that renders frames from the channel and sends
// key presses through send.
func NewModel(level *game.Tilemap, tileSize int, frames <-chan game.Frame, send SendFunc, selfID int) Model {
	return Model{
		level:    level,
		tileSize: tileSize,
		frames:   frames,
		send:     send,
		selfID:   selfID,
	}
}

// WithErrorSource sets where the model looks for the reason the frame stream
// ended, such as the last error a server reported.
func (m Model) WithErrorSource(fn func() string) Model {
	m.lastErr = fn
	return m
}

// Init starts listening for frames.
func (m Model) Init() tea.Cmd {
	return waitForFrame(m.frames, m.lastErr)
}

// Update handles incoming messages (key presses, frames).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		frame := game.Frame(msg)
		m.frame = &frame
		return m, waitForFrame(m.frames, m.lastErr)

	case errMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

// View renders the current frame.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.err != nil {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff4444")).
			Render("Error: "+m.err.Error()) + "\n"
	}

	board := RenderBoard(m.level, m.frame, m.tileSize, m.selfID)
	hud := RenderHUD(m.frame, m.selfID)

	// Layout: board on the left, HUD on the right
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		board,
		"  ",
		hud,
	) + "\n"
}

// keyDirections maps key names to intents.
var keyDirections = map[string]game.Direction{
	"up":    game.DirUp,
	"w":     game.DirUp,
	"down":  game.DirDown,
	"s":     game.DirDown,
	"left":  game.DirLeft,
	"a":     game.DirLeft,
	"right": game.DirRight,
	"d":     game.DirRight,
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	default:
		if dir, ok := keyDirections[key]; ok && m.send != nil {
			if err := m.send(dir); err != nil {
				m.err = err
				return m, tea.Quit
			}
		}
	}

	return m, nil
}

// waitForFrame returns a Cmd that waits for the next frame.
func waitForFrame(frames <-chan game.Frame, lastErr func() string) tea.Cmd {
	return func() tea.Msg {
		frame, ok := <-frames
		if !ok {
			if lastErr != nil {
				if reason := lastErr(); reason != "" {
					return errMsg{err: fmt.Errorf("frame stream closed: %s", reason)}
				}
			}
			return errMsg{err: fmt.Errorf("frame stream closed")}
		}
		return frameMsg(frame)
	}
}
