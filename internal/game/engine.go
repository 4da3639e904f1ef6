package game

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrDuplicateActor = errors.New("duplicate actor id")
	ErrSpawnBlocked   = errors.New("spawn tile is blocking")
	ErrSpawnOccupied  = errors.New("spawn tile is occupied")
)

// InputProvider reports at most one directional intent per tick.
type InputProvider interface {
	PollDirection() Direction
}

// Collision pairs an actor id with its outcome, for frames.
type Collision struct {
	ActorID int     `json:"actor_id" msgpack:"actor_id"`
	Outcome Outcome `json:"outcome" msgpack:"outcome"`
}

// Frame is everything a renderer needs about one tick.
// Actors and Collisions are sorted by ascending actor id.
type Frame struct {
	Tick       uint64       `json:"tick" msgpack:"tick"`
	GateOpen   bool         `json:"gate_open" msgpack:"gate_open"`
	Intent     Direction    `json:"intent" msgpack:"intent"`
	Turns      int          `json:"turns" msgpack:"turns"`
	Actors     []ActorState `json:"actors" msgpack:"actors"`
	Collisions []Collision  `json:"collisions,omitempty" msgpack:"collisions"`
}

// Engine owns the actor registry and runs the fixed per-tick phase order:
// gate, input, propose, resolve, advance, commit.
type Engine struct {
	Config   Config
	oracle   Oracle
	input    InputProvider
	resolver *Resolver
	actors   []*Actor // Sorted by ascending id
	byID     map[int]*Actor
	tick     uint64
	turns    int
	log      *logrus.Entry
	done     chan struct{}
	mu       sync.Mutex
	onTick   func(Frame) // Callback after each tick with a copy of the frame
}

// NewEngine creates an engine with no actors. A nil log discards output.
func NewEngine(config Config, oracle Oracle, input InputProvider, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(discardLogger())
	}
	return &Engine{
		Config:   config,
		oracle:   oracle,
		input:    input,
		resolver: NewResolver(config, log),
		byID:     make(map[int]*Actor),
		log:      log.WithField("component", "engine"),
		done:     make(chan struct{}),
	}
}

// OnTick sets a callback that is invoked after every tick with the frame.
// Used by the UI and the network server to push frames to renderers.
func (e *Engine) OnTick(fn func(Frame)) {
	e.onTick = fn
}

// Run steps the engine at the configured tick rate.
// This blocks until Stop() is called.
func (e *Engine) Run() {
	rate := e.Config.TickRate
	if rate <= 0 {
		rate = DefaultConfig().TickRate
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.Step()
		}
	}
}

// Stop halts the loop started by Run. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}

// AddActor registers an actor. Ids must be unique and the actor must start
// on a passable tile nobody else occupies.
func (e *Engine) AddActor(a *Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.byID[a.ID]; exists {
		return fmt.Errorf("add actor %d: %w", a.ID, ErrDuplicateActor)
	}
	tile := a.OriginTile()
	if e.oracle == nil || e.oracle.TileAt(tile.X, tile.Y) != Passable {
		return fmt.Errorf("add actor %d at (%d,%d): %w", a.ID, tile.X, tile.Y, ErrSpawnBlocked)
	}
	for _, other := range e.actors {
		if other.OriginTile() == tile {
			return fmt.Errorf("add actor %d at (%d,%d) taken by %d: %w", a.ID, tile.X, tile.Y, other.ID, ErrSpawnOccupied)
		}
	}

	e.byID[a.ID] = a
	e.actors = append(e.actors, a)
	sort.Slice(e.actors, func(i, j int) bool { return e.actors[i].ID < e.actors[j].ID })
	return nil
}

// Spawn builds an actor from a spawn description, attaches its variant
// behavior, and registers it.
func (e *Engine) Spawn(sp Spawn) (*Actor, error) {
	var behavior Behavior
	switch sp.Kind {
	case KindPlayer:
		behavior = &TurnCounter{OnTurn: e.countTurn}
	case KindEnemy:
		every := sp.FlipEvery
		if every <= 0 {
			every = e.Config.FlipEvery
		}
		behavior = &Flipper{Every: every}
	}

	size := e.Config.TileSize
	a := NewActor(sp.ID, sp.Kind, sp.Tile.Pixel(size), sp.Flipped, e.Config.Speed, size, behavior)
	if err := e.AddActor(a); err != nil {
		return nil, err
	}
	return a, nil
}

// SpawnAll spawns every entry, stopping at the first error.
func (e *Engine) SpawnAll(spawns []Spawn) error {
	for _, sp := range spawns {
		if _, err := e.Spawn(sp); err != nil {
			return err
		}
	}
	return nil
}

// countTurn is the player's turn hook. Runs with e.mu held.
func (e *Engine) countTurn(turn int) {
	e.turns++
	e.log.WithField("turn", e.turns).Debug("player turn")
}

// Step runs one tick and returns its frame.
// The lock is released BEFORE calling onTick so the callback may call back
// into the engine.
func (e *Engine) Step() Frame {
	e.mu.Lock()
	frame := e.stepLocked()
	e.mu.Unlock()

	if e.onTick != nil {
		e.onTick(frame)
	}
	return frame
}

// stepLocked runs the six phases. MUST be called while e.mu is held.
func (e *Engine) stepLocked() Frame {
	tick := e.tick
	e.tick++

	// 1. Gate: every actor finishes its step and bounce before anyone moves.
	open := e.gateOpenLocked()

	// 2. Input is sampled every tick so a press made mid-move is consumed,
	// not queued for later.
	intent := DirNone
	if e.input != nil {
		intent = e.input.PollDirection()
	}

	// 3. Propose. With the gate closed nothing proposes and the index stays
	// empty, which makes the resolve phase a no-op.
	ix := NewIndex()
	if open {
		for _, a := range e.actors {
			if a.propose(intent, e.oracle) {
				e.log.WithFields(logrus.Fields{
					"tick":     tick,
					"actor_id": a.ID,
					"dir":      a.Dir.String(),
				}).Debug("move proposed")
			}
			ix.Register(a.Claim())
		}
	}

	// 4. Resolve.
	outcomes := e.resolver.Resolve(tick, e.actors, ix)

	// 5. Advance.
	for _, a := range e.actors {
		a.advance()
	}

	// 6. Commit.
	for _, a := range e.actors {
		if a.commit() {
			e.log.WithFields(logrus.Fields{
				"tick":     tick,
				"actor_id": a.ID,
				"tile":     a.OriginTile(),
			}).Debug("move committed")
		}
	}

	return e.frameLocked(tick, open, intent, outcomes)
}

// GateOpen reports whether a new move may start on the next tick.
func (e *Engine) GateOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gateOpenLocked()
}

func (e *Engine) gateOpenLocked() bool {
	for _, a := range e.actors {
		if a.Moving() || a.Bouncing() {
			return false
		}
	}
	return true
}

// Snapshot returns a frame of the current state without stepping.
func (e *Engine) Snapshot() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameLocked(e.tick, e.gateOpenLocked(), DirNone, nil)
}

// frameLocked copies the state into a frame. MUST be called while e.mu is held.
func (e *Engine) frameLocked(tick uint64, open bool, intent Direction, outcomes map[int]Outcome) Frame {
	states := make([]ActorState, len(e.actors))
	for i, a := range e.actors {
		states[i] = a.State()
	}

	var collisions []Collision
	for _, a := range e.actors {
		if o, ok := outcomes[a.ID]; ok {
			collisions = append(collisions, Collision{ActorID: a.ID, Outcome: o})
		}
	}

	return Frame{
		Tick:       tick,
		GateOpen:   open,
		Intent:     intent,
		Turns:      e.turns,
		Actors:     states,
		Collisions: collisions,
	}
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
