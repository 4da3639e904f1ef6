package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/needdbeach/hunt/internal/game"
	"github.com/needdbeach/hunt/internal/input"
	"github.com/needdbeach/hunt/internal/logger"
	"github.com/needdbeach/hunt/internal/replay"
	"github.com/needdbeach/hunt/internal/ui"
)

func main() {
	generate := flag.Bool("generate", false, "Generate a random map instead of the default level")
	seed := flag.Int64("seed", 1, "Seed for -generate")
	width := flag.Int("width", 8, "Generated map width in tiles")
	height := flag.Int("height", 8, "Generated map height in tiles")
	density := flag.Float64("density", 0.1, "Generated boulder density")
	tickRate := flag.Int("tick-rate", 60, "Simulation ticks per second")
	fullChain := flag.Bool("full-chain", false, "Resolve chain reactions to a fixed point")
	logFile := flag.String("log", "", "Log file path (default: discard logs)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	record := flag.String("record", "", "Write a replay of this session to the given file")
	verify := flag.String("verify", "", "Verify a replay file and exit")
	flag.Parse()

	// Logs never go to stderr: it would corrupt Bubbletea's terminal rendering.
	log, closeLog, err := logger.New(*logFile, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if *verify != "" {
		code := runVerify(*verify, log)
		closeLog()
		os.Exit(code)
	}

	config := game.DefaultConfig()
	config.TickRate = *tickRate
	config.FullChainResolution = *fullChain
	config.Width = *width
	config.Height = *height
	config.BoulderDensity = *density
	config.Seed = *seed

	spawns := game.DefaultSpawns()
	level := game.DefaultLevel()
	if *generate {
		level = game.GenerateTilemap(config, spawns)
	}

	queue := input.NewQueue()
	var provider game.InputProvider = queue
	var rec *replay.Recorder
	if *record != "" {
		rec = replay.NewRecorder(queue, config, level, spawns)
		provider = rec
	}

	engine := game.NewEngine(config, level, provider, logrus.NewEntry(log))
	if err := engine.SpawnAll(spawns); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to place actors: %v\n", err)
		os.Exit(1)
	}

	frames := make(chan game.Frame, 1)
	engine.OnTick(func(f game.Frame) {
		if rec != nil {
			rec.Observe(f)
		}
		offer(frames, f)
	})
	go engine.Run()

	send := func(d game.Direction) error {
		queue.Push(d)
		return nil
	}
	model := ui.NewModel(level, config.TileSize, frames, send, spawns[0].ID)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, runErr := p.Run()
	engine.Stop()

	if rec != nil {
		if err := saveReplay(rec, *record); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save replay: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Replay %s saved to %s\n", rec.Session(), *record)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", runErr)
		os.Exit(1)
	}
}

// offer delivers f, replacing a frame the UI has not picked up yet.
func offer(frames chan game.Frame, f game.Frame) {
	select {
	case frames <- f:
	default:
		select {
		case <-frames:
		default:
		}
		frames <- f
	}
}

func saveReplay(rec *replay.Recorder, path string) error {
	l, err := rec.Log()
	if err != nil {
		return err
	}
	return replay.SaveFile(path, l)
}

func runVerify(path string, log *logrus.Logger) int {
	l, err := replay.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load replay: %v\n", err)
		return 1
	}

	err = replay.Verify(l, logrus.NewEntry(log))
	switch {
	case errors.Is(err, replay.ErrChecksumMismatch):
		fmt.Printf("Replay %s diverged: %v\n", l.Session, err)
		return 2
	case err != nil:
		fmt.Fprintf(os.Stderr, "Failed to play replay: %v\n", err)
		return 1
	}

	fmt.Printf("Replay %s OK: %d ticks, %d inputs\n", l.Session, l.Ticks, len(l.Inputs))
	return 0
}
