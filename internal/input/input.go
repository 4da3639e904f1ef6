// Package input turns raw key events into the one-intent-per-tick stream the
// engine polls.
package input

import (
	"sync"
	"time"

	"github.com/needdbeach/hunt/internal/game"
)

// RepeatWindow is how soon a press must follow the previous press of the same
// key to count as terminal auto-repeat. It covers the usual initial repeat
// delay of 500ms.
const RepeatWindow = 550 * time.Millisecond

// Queue latches key presses from devices without release events (terminals,
// network clients). Each press is delivered once; presses arriving while one
// is pending are dropped. A press of the same key within the repeat window of
// the last one is treated as the key still being held, so holding a key
// yields a single intent.
type Queue struct {
	mu        sync.Mutex
	pending   game.Direction
	held      game.Direction
	lastPress time.Time
	window    time.Duration
	now       func() time.Time
}

// NewQueue creates an empty queue using RepeatWindow.
func NewQueue() *Queue {
	return NewQueueWithWindow(RepeatWindow)
}

// NewQueueWithWindow creates an empty queue with a custom repeat window.
// A zero window delivers every press.
func NewQueueWithWindow(window time.Duration) *Queue {
	return &Queue{window: window, now: time.Now}
}

// Push offers a press. Returns false if it was dropped.
func (q *Queue) Push(d game.Direction) bool {
	if d == game.DirNone {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	repeat := d == q.held && q.window > 0 && now.Sub(q.lastPress) < q.window
	q.held = d
	q.lastPress = now
	if repeat || q.pending != game.DirNone {
		return false
	}
	q.pending = d
	return true
}

// PollDirection implements game.InputProvider.
func (q *Queue) PollDirection() game.Direction {
	q.mu.Lock()
	defer q.mu.Unlock()
	d := q.pending
	q.pending = game.DirNone
	return d
}

// Script plays back recorded intents by tick. Each poll is one tick,
// starting at tick 0.
type Script struct {
	byTick map[uint64]game.Direction
	tick   uint64
}

// NewScript creates a script from a tick -> direction map.
func NewScript(byTick map[uint64]game.Direction) *Script {
	if byTick == nil {
		byTick = make(map[uint64]game.Direction)
	}
	return &Script{byTick: byTick}
}

// PollDirection implements game.InputProvider.
func (s *Script) PollDirection() game.Direction {
	d := s.byTick[s.tick]
	s.tick++
	return d
}

// Tick returns how many polls have happened.
func (s *Script) Tick() uint64 {
	return s.tick
}
