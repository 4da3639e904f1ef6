package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/needdbeach/hunt/internal/game"
)

// Color palette
var (
	// Tile styles
	boulderStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#3a3a3a")).
			Foreground(lipgloss.Color("#555555"))

	grassStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1f3d1f")).
			Foreground(lipgloss.Color("#2f5d2f"))

	floorStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1a1a2e")).
			Foreground(lipgloss.Color("#1a1a2e"))

	playerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1a1a2e")).
			Foreground(lipgloss.Color("#00ff88")).
			Bold(true)

	enemyStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1a1a2e")).
			Foreground(lipgloss.Color("#ffaa44")).
			Bold(true)

	flippedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1a1a2e")).
			Foreground(lipgloss.Color("#ff44ff")).
			Bold(true)

	bounceStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#ff6600")).
			Foreground(lipgloss.Color("#ffcc00")).
			Bold(true)

	// HUD styles
	hudBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff8844")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	openStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff88")).
			Bold(true)

	closedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff4444"))
)

// RenderBoard draws the tilemap with every actor at its rendered position.
func RenderBoard(level *game.Tilemap, frame *game.Frame, tileSize, selfID int) string {
	if level == nil || frame == nil {
		return "Waiting for first frame..."
	}

	actorSet := make(map[game.Tile]game.ActorState, len(frame.Actors))
	for _, s := range frame.Actors {
		actorSet[displayTile(s, tileSize)] = s
	}

	var rows []string
	for y := 0; y < level.Height; y++ {
		var cells []string
		for x := 0; x < level.Width; x++ {
			cells = append(cells, renderCell(level, game.Tile{X: x, Y: y}, actorSet, selfID))
		}
		rows = append(rows, strings.Join(cells, ""))
	}

	return strings.Join(rows, "\n")
}

// displayTile is the tile under the centre of the actor's rendered sprite.
func displayTile(s game.ActorState, tileSize int) game.Tile {
	half := float64(tileSize) / 2
	return game.Vec{X: s.Render.X + half, Y: s.Render.Y + half}.Tile(tileSize)
}

// renderCell renders a single board cell with the appropriate style.
// Each cell is 2 characters wide for a square-ish appearance.
func renderCell(level *game.Tilemap, pos game.Tile, actorSet map[game.Tile]game.ActorState, selfID int) string {
	if s, ok := actorSet[pos]; ok {
		return renderActor(s, selfID)
	}

	switch level.Index(pos.X, pos.Y) {
	case game.TileBoulder, -1:
		return boulderStyle.Render("██")
	case game.TileGrass:
		return grassStyle.Render("''")
	default:
		return floorStyle.Render("  ")
	}
}

func renderActor(s game.ActorState, selfID int) string {
	label := fmt.Sprintf("E%d", s.ID%10)
	style := enemyStyle
	if s.Kind == game.KindPlayer {
		label = "@@"
		style = playerStyle
		if s.ID != selfID {
			label = fmt.Sprintf("P%d", s.ID%10)
		}
	} else if s.Flipped {
		style = flippedStyle
	}
	if s.Bouncing {
		style = bounceStyle
	}
	return style.Render(label)
}

// RenderHUD renders the tick counter, the gate and the actor list.
func RenderHUD(frame *game.Frame, selfID int) string {
	if frame == nil {
		return ""
	}

	var parts []string

	parts = append(parts, titleStyle.Render("HUNT"))
	parts = append(parts, "")

	parts = append(parts, fmt.Sprintf("Tick:  %d", frame.Tick))
	parts = append(parts, fmt.Sprintf("Turns: %d", frame.Turns))
	if frame.GateOpen {
		parts = append(parts, openStyle.Render("Ready"))
	} else {
		parts = append(parts, closedStyle.Render("Moving..."))
	}
	parts = append(parts, "")

	parts = append(parts, dimStyle.Render("Actors:"))
	for _, s := range frame.Actors {
		marker := "  "
		if s.ID == selfID {
			marker = "→ "
		}
		flags := ""
		if s.Flipped {
			flags += " flipped"
		}
		if s.Bouncing {
			flags += " bounce"
		}
		parts = append(parts, fmt.Sprintf("%s%d %-6s (%d,%d) %-5s%s",
			marker, s.ID, s.Kind, s.Origin.X, s.Origin.Y, s.Dir, flags))
	}

	if len(frame.Collisions) > 0 {
		parts = append(parts, "")
		parts = append(parts, closedStyle.Render("Collisions:"))
		for _, c := range frame.Collisions {
			kind := "destination"
			if c.Outcome.NeighborCollision {
				kind = "swap"
			}
			parts = append(parts, fmt.Sprintf("  %d ↔ %d %s", c.ActorID, c.Outcome.With, kind))
		}
	}

	parts = append(parts, "")
	parts = append(parts, dimStyle.Render("WASD/Arrows: Move | Q: Quit"))

	return hudBorderStyle.Render(strings.Join(parts, "\n"))
}
