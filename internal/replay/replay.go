// Package replay records the input of a session and plays it back to prove
// the simulation is deterministic.
package replay

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/needdbeach/hunt/internal/game"
	"github.com/needdbeach/hunt/internal/input"
)

// ErrChecksumMismatch is returned when a playback diverges from its recording.
var ErrChecksumMismatch = errors.New("replay checksum mismatch")

// Input is one recorded intent.
type Input struct {
	Tick uint64         `msgpack:"tick"`
	Dir  game.Direction `msgpack:"dir"`
}

// Log is a complete recording: enough to rebuild the session and the
// checksum of every frame it produced.
type Log struct {
	Session  string        `msgpack:"session"`
	Created  int64         `msgpack:"created"` // Unix seconds
	Config   game.Config   `msgpack:"config"`
	Level    *game.Tilemap `msgpack:"level"`
	Spawns   []game.Spawn  `msgpack:"spawns"`
	Ticks    uint64        `msgpack:"ticks"`
	Inputs   []Input       `msgpack:"inputs"`
	Checksum string        `msgpack:"checksum"` // sha256 over msgpack frames, hex
}

// frameHasher folds frames into a running sha256.
type frameHasher struct {
	h hash.Hash
}

func newFrameHasher() *frameHasher {
	return &frameHasher{h: sha256.New()}
}

func (fh *frameHasher) add(f game.Frame) error {
	data, err := msgpack.Marshal(&f)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", f.Tick, err)
	}
	fh.h.Write(data)
	return nil
}

func (fh *frameHasher) sum() string {
	return hex.EncodeToString(fh.h.Sum(nil))
}

// Recorder wraps the live input provider and records what the engine polls.
// Attach Observe to the engine's tick callback to checksum the frames.
type Recorder struct {
	mu     sync.Mutex
	inner  game.InputProvider
	log    Log
	hasher *frameHasher
	tick   uint64
	err    error
}

// NewRecorder starts a recording for a session built from these parameters.
func NewRecorder(inner game.InputProvider, config game.Config, level *game.Tilemap, spawns []game.Spawn) *Recorder {
	return &Recorder{
		inner: inner,
		log: Log{
			Session: uuid.NewString(),
			Created: time.Now().Unix(),
			Config:  config,
			Level:   level,
			Spawns:  append([]game.Spawn(nil), spawns...),
		},
		hasher: newFrameHasher(),
	}
}

// PollDirection implements game.InputProvider.
func (r *Recorder) PollDirection() game.Direction {
	d := game.DirNone
	if r.inner != nil {
		d = r.inner.PollDirection()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d != game.DirNone {
		r.log.Inputs = append(r.log.Inputs, Input{Tick: r.tick, Dir: d})
	}
	r.tick++
	return d
}

// Observe adds a frame to the checksum.
func (r *Recorder) Observe(f game.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	if err := r.hasher.add(f); err != nil {
		r.err = err
		return
	}
	r.log.Ticks = f.Tick + 1
}

// Session returns the recording's session id.
func (r *Recorder) Session() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Session
}

// Log finalizes and returns a copy of the recording.
func (r *Recorder) Log() (*Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	l := r.log
	l.Inputs = append([]Input(nil), r.log.Inputs...)
	l.Checksum = r.hasher.sum()
	return &l, nil
}

// Save writes the log in msgpack.
func Save(w io.Writer, l *Log) error {
	if err := msgpack.NewEncoder(w).Encode(l); err != nil {
		return fmt.Errorf("encode replay: %w", err)
	}
	return nil
}

// Load reads a msgpack log.
func Load(r io.Reader) (*Log, error) {
	var l Log
	if err := msgpack.NewDecoder(r).Decode(&l); err != nil {
		return nil, fmt.Errorf("decode replay: %w", err)
	}
	return &l, nil
}

// SaveFile writes the log to path.
func SaveFile(path string, l *Log) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create replay file: %w", err)
	}
	if err := Save(f, l); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a log from path.
func LoadFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Play rebuilds the session from the log and runs it for l.Ticks ticks,
// returning the checksum of the frames produced.
func Play(l *Log, log *logrus.Entry) (string, error) {
	byTick := make(map[uint64]game.Direction, len(l.Inputs))
	for _, in := range l.Inputs {
		byTick[in.Tick] = in.Dir
	}

	engine := game.NewEngine(l.Config, l.Level, input.NewScript(byTick), log)
	if err := engine.SpawnAll(l.Spawns); err != nil {
		return "", fmt.Errorf("replay spawn: %w", err)
	}

	hasher := newFrameHasher()
	for i := uint64(0); i < l.Ticks; i++ {
		if err := hasher.add(engine.Step()); err != nil {
			return "", err
		}
	}
	return hasher.sum(), nil
}

// Verify plays the log back and checks it against the recorded checksum.
func Verify(l *Log, log *logrus.Entry) error {
	got, err := Play(l, log)
	if err != nil {
		return err
	}
	if got != l.Checksum {
		return fmt.Errorf("session %s after %d ticks: got %s, want %s: %w",
			l.Session, l.Ticks, got, l.Checksum, ErrChecksumMismatch)
	}
	return nil
}
