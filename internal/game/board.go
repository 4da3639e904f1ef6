package game

import (
	"math/rand"
)

// Tile indices used by level data.
const (
	TileFloor   = 0
	TileGrass   = 1 // Decoration, passable
	TileBoulder = 2
)

// Oracle reports whether a tile can be entered.
// Out-of-range coordinates must resolve to Blocking.
type Oracle interface {
	TileAt(x, y int) TileKind
}

// Tilemap is a fixed grid of tile indices. It implements Oracle.
type Tilemap struct {
	Width  int     `json:"width" msgpack:"width"`
	Height int     `json:"height" msgpack:"height"`
	Cells  [][]int `json:"cells" msgpack:"cells"` // Row-major: Cells[y][x]
}

// NewTilemap wraps level rows. Ragged rows are allowed; missing cells block.
func NewTilemap(rows [][]int) *Tilemap {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	cells := make([][]int, len(rows))
	for y, row := range rows {
		cells[y] = make([]int, len(row))
		copy(cells[y], row)
	}
	return &Tilemap{Width: width, Height: len(rows), Cells: cells}
}

// TileAt implements Oracle.
func (m *Tilemap) TileAt(x, y int) TileKind {
	if m == nil || y < 0 || y >= len(m.Cells) || x < 0 || x >= len(m.Cells[y]) {
		return Blocking
	}
	if m.Cells[y][x] == TileBoulder {
		return Blocking
	}
	return Passable
}

// Index returns the raw tile index, or -1 off the map.
func (m *Tilemap) Index(x, y int) int {
	if m == nil || y < 0 || y >= len(m.Cells) || x < 0 || x >= len(m.Cells[y]) {
		return -1
	}
	return m.Cells[y][x]
}

// DefaultLevel returns the hand-built 8x8 hunting ground.
func DefaultLevel() *Tilemap {
	return NewTilemap([][]int{
		{0, 0, 0, 1, 0, 0, 0, 0},
		{1, 0, 0, 0, 0, 1, 0, 0},
		{0, 0, 1, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 2, 0, 0, 1},
		{0, 0, 0, 0, 0, 0, 0, 0},
		{0, 1, 2, 0, 1, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 1, 0, 0},
	})
}

// GenerateTilemap builds a random level of config.Width x config.Height.
//
// Layout rules:
//   - Boulders are scattered at config.BoulderDensity
//   - Grass decoration fills a fraction of the remaining floor
//   - Spawn tiles (and their four neighbors) are kept clear
//
// The same Seed always yields the same map.
func GenerateTilemap(config Config, spawns []Spawn) *Tilemap {
	rng := rand.New(rand.NewSource(config.Seed))
	safeSet := makeSafeSet(spawns)

	cells := make([][]int, config.Height)
	for y := 0; y < config.Height; y++ {
		cells[y] = make([]int, config.Width)
		for x := 0; x < config.Width; x++ {
			// Draw both numbers for every cell so the layout does not shift
			// when the safe set changes.
			boulder := rng.Float64() < config.BoulderDensity
			grass := rng.Float64() < 0.15
			switch {
			case safeSet[Tile{X: x, Y: y}]:
				cells[y][x] = TileFloor
			case boulder:
				cells[y][x] = TileBoulder
			case grass:
				cells[y][x] = TileGrass
			default:
				cells[y][x] = TileFloor
			}
		}
	}
	return &Tilemap{Width: config.Width, Height: config.Height, Cells: cells}
}

// makeSafeSet returns the tiles that must stay clear for spawning.
// Each spawn gets a plus-shaped clear zone so nobody starts boxed in.
func makeSafeSet(spawns []Spawn) map[Tile]bool {
	safe := make(map[Tile]bool)
	for _, sp := range spawns {
		safe[sp.Tile] = true
		for _, d := range []Direction{DirLeft, DirRight, DirUp, DirDown} {
			safe[sp.Tile.Step(d)] = true
		}
	}
	return safe
}
