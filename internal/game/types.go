package game

import (
	"math"
)

// TileKind reports whether a tile can be entered.
type TileKind int

const (
	Passable TileKind = iota
	Blocking          // Walls, boulders, and anything off the map
)

// Direction represents a movement direction.
type Direction int

const (
	DirNone Direction = iota
	DirLeft
	DirRight
	DirUp
	DirDown
)

// String returns a short lowercase name, used in logs and the HUD.
func (d Direction) String() string {
	switch d {
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	default:
		return "none"
	}
}

// Opposite returns the reverse direction. DirNone has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirLeft:
		return DirRight
	case DirRight:
		return DirLeft
	case DirUp:
		return DirDown
	case DirDown:
		return DirUp
	default:
		return DirNone
	}
}

// Delta returns the unit tile step for the direction.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	}
	return 0, 0
}

// Tile is a grid coordinate. It is comparable and used directly as a map key.
type Tile struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// Adjacent returns the direction from t to o when the two tiles share an edge
// (one axis differs by exactly one, the other is equal). Otherwise DirNone.
func (t Tile) Adjacent(o Tile) Direction {
	dx, dy := o.X-t.X, o.Y-t.Y
	switch {
	case dy == 0 && dx == -1:
		return DirLeft
	case dy == 0 && dx == 1:
		return DirRight
	case dx == 0 && dy == -1:
		return DirUp
	case dx == 0 && dy == 1:
		return DirDown
	}
	return DirNone
}

// Step returns the neighboring tile in direction d.
func (t Tile) Step(d Direction) Tile {
	dx, dy := d.Delta()
	return Tile{X: t.X + dx, Y: t.Y + dy}
}

// Pixel returns the grid-aligned pixel coordinate of the tile's corner.
func (t Tile) Pixel(size int) Vec {
	return Vec{X: float64(t.X * size), Y: float64(t.Y * size)}
}

// Vec is a continuous pixel coordinate.
type Vec struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Tile returns the grid cell containing v.
func (v Vec) Tile(size int) Tile {
	s := float64(size)
	return Tile{X: int(math.Floor(v.X / s)), Y: int(math.Floor(v.Y / s))}
}

// Add returns v+o.
func (v Vec) Add(o Vec) Vec {
	return Vec{X: v.X + o.X, Y: v.Y + o.Y}
}

// ClaimKind selects which bucket of the position index a lookup reads.
type ClaimKind int

const (
	ByTarget ClaimKind = iota // Keyed by the claim's destination tile
	ByOrigin                  // Keyed by the claim's starting tile
)

// Claim is an actor's declared origin and destination for the current tick.
type Claim struct {
	ActorID int
	Target  Tile
	Origin  Tile
	Dir     Direction
}

// Outcome records how the resolver treated an actor this tick.
type Outcome struct {
	Collided          bool `json:"collided" msgpack:"collided"`
	NeighborCollision bool `json:"neighbor_collision" msgpack:"neighbor_collision"`
	With              int  `json:"with" msgpack:"with"` // Last actor collided with
}

// Config holds the tunable parameters of a simulation session.
type Config struct {
	TileSize    int     `json:"tile_size" msgpack:"tile_size"`
	Speed       float64 `json:"speed" msgpack:"speed"`               // Pixels per tick
	TickRate    int     `json:"tick_rate" msgpack:"tick_rate"`       // Ticks per second
	BounceTicks int     `json:"bounce_ticks" msgpack:"bounce_ticks"` // Duration of the collision bounce
	FlipEvery   int     `json:"flip_every" msgpack:"flip_every"`     // Default enemy flip cadence, in steps

	// FullChainResolution repeats the chain-reaction pass until no conflict
	// remains. Off by default: a single correction pass leaves chains of three
	// or more actors unresolved.
	FullChainResolution bool `json:"full_chain_resolution" msgpack:"full_chain_resolution"`

	Width          int     `json:"width" msgpack:"width"`   // Tiles
	Height         int     `json:"height" msgpack:"height"` // Tiles
	BoulderDensity float64 `json:"boulder_density" msgpack:"boulder_density"`
	Seed           int64   `json:"seed" msgpack:"seed"`
}

// DefaultConfig returns the parameters of the default 8x8 hunting level.
func DefaultConfig() Config {
	return Config{
		TileSize:       16,
		Speed:          1.5,
		TickRate:       60,
		BounceTicks:    12,
		FlipEvery:      5,
		Width:          8,
		Height:         8,
		BoulderDensity: 0.1,
	}
}
