package game

// Kind distinguishes the player from enemies for rendering and hooks.
type Kind int

const (
	KindPlayer Kind = iota
	KindEnemy
)

func (k Kind) String() string {
	if k == KindPlayer {
		return "player"
	}
	return "enemy"
}

// Spawn describes an actor to place when a session starts.
type Spawn struct {
	ID        int  `json:"id" msgpack:"id"`
	Kind      Kind `json:"kind" msgpack:"kind"`
	Tile      Tile `json:"tile" msgpack:"tile"`
	Flipped   bool `json:"flipped" msgpack:"flipped"`
	FlipEvery int  `json:"flip_every,omitempty" msgpack:"flip_every"` // Enemies only; 0 uses Config.FlipEvery
}

// DefaultSpawns returns the hunter and the two animals of the default level.
func DefaultSpawns() []Spawn {
	return []Spawn{
		{ID: 0, Kind: KindPlayer, Tile: Tile{X: 6, Y: 6}},
		{ID: 1, Kind: KindEnemy, Tile: Tile{X: 6, Y: 7}},
		{ID: 2, Kind: KindEnemy, Tile: Tile{X: 6, Y: 5}, Flipped: true, FlipEvery: 3},
	}
}

// Actor is one moving piece on the grid.
//
// Pos is continuous; Origin and Target are always tile-aligned. Outside the
// advance phase Dir is DirNone exactly when Pos == Target.
type Actor struct {
	ID      int
	Kind    Kind
	Pos     Vec
	Origin  Vec // Last committed position
	Target  Vec // Proposed or committed destination
	Dir     Direction
	Speed   float64
	Flipped bool

	tileSize int
	bounce   bounce
	behavior Behavior
}

// NewActor creates an idle actor at pos. Pos should be tile-aligned.
func NewActor(id int, kind Kind, pos Vec, flipped bool, speed float64, tileSize int, behavior Behavior) *Actor {
	return &Actor{
		ID:       id,
		Kind:     kind,
		Pos:      pos,
		Origin:   pos,
		Target:   pos,
		Speed:    speed,
		Flipped:  flipped,
		tileSize: tileSize,
		behavior: behavior,
	}
}

// Moving reports whether the actor is travelling toward its target.
func (a *Actor) Moving() bool {
	return a.Dir != DirNone
}

// Bouncing reports whether a collision bounce is still playing.
func (a *Actor) Bouncing() bool {
	return a.bounce.active()
}

// OriginTile returns the tile of the last committed position.
func (a *Actor) OriginTile() Tile {
	return a.Origin.Tile(a.tileSize)
}

// TargetTile returns the tile the actor is heading to.
func (a *Actor) TargetTile() Tile {
	return a.Target.Tile(a.tileSize)
}

// Claim returns the actor's claim for the position index.
func (a *Actor) Claim() Claim {
	return Claim{
		ActorID: a.ID,
		Target:  a.TargetTile(),
		Origin:  a.OriginTile(),
		Dir:     a.Dir,
	}
}

// Revert cancels the pending move. Calling it twice is harmless.
func (a *Actor) Revert() {
	a.Target = a.Origin
	a.Dir = DirNone
}

// ActorState is the per-tick view of an actor handed to renderers.
type ActorState struct {
	ID       int       `json:"id" msgpack:"id"`
	Kind     Kind      `json:"kind" msgpack:"kind"`
	Pos      Vec       `json:"pos" msgpack:"pos"`
	Render   Vec       `json:"render" msgpack:"render"` // Pos plus bounce displacement
	Origin   Tile      `json:"origin" msgpack:"origin"`
	Target   Tile      `json:"target" msgpack:"target"`
	Dir      Direction `json:"dir" msgpack:"dir"`
	Flipped  bool      `json:"flipped" msgpack:"flipped"`
	Bouncing bool      `json:"bouncing" msgpack:"bouncing"`
}

// State snapshots the actor.
func (a *Actor) State() ActorState {
	return ActorState{
		ID:       a.ID,
		Kind:     a.Kind,
		Pos:      a.Pos,
		Render:   a.Pos.Add(a.bounce.offset()),
		Origin:   a.OriginTile(),
		Target:   a.TargetTile(),
		Dir:      a.Dir,
		Flipped:  a.Flipped,
		Bouncing: a.Bouncing(),
	}
}
