package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/needdbeach/hunt/internal/discovery"
	"github.com/needdbeach/hunt/internal/game"
	"github.com/needdbeach/hunt/internal/input"
	"github.com/needdbeach/hunt/internal/logger"
	"github.com/needdbeach/hunt/internal/network"
	"github.com/needdbeach/hunt/internal/replay"
	"github.com/needdbeach/hunt/internal/ui"
)

func main() {
	port := flag.Int("port", 9999, "Port to listen on")
	name := flag.String("name", "Host", "Host name shown to other players")
	spectate := flag.String("spectate", "", "Serve websocket spectators on this address (e.g. :8080)")
	announce := flag.Bool("announce", true, "Announce the session on the local network")
	headless := flag.Bool("headless", false, "Run without the host TUI")
	generate := flag.Bool("generate", false, "Generate a random map instead of the default level")
	seed := flag.Int64("seed", 1, "Seed for -generate")
	width := flag.Int("width", 8, "Generated map width in tiles")
	height := flag.Int("height", 8, "Generated map height in tiles")
	tickRate := flag.Int("tick-rate", 60, "Simulation ticks per second")
	fullChain := flag.Bool("full-chain", false, "Resolve chain reactions to a fixed point")
	record := flag.String("record", "", "Write a replay of this session to the given file")
	logFile := flag.String("log", "", "Log file path (default: discard server logs)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	// Server goroutines log constantly; anything on stderr would corrupt
	// Bubbletea's terminal rendering.
	log, closeLog, err := logger.New(*logFile, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	config := game.DefaultConfig()
	config.TickRate = *tickRate
	config.FullChainResolution = *fullChain
	config.Width = *width
	config.Height = *height
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

	addr := fmt.Sprintf("0.0.0.0:%d", *port)
	server := network.NewServer(addr, engine, queue, level, spawns[0].ID, logger.Component(log, "network"))

	frames := make(chan game.Frame, 1)
	if rec != nil {
		server.OnFrame(rec.Observe)
	}
	if !*headless {
		server.OnFrame(func(f game.Frame) { offer(frames, f) })
	}

	var announcer *discovery.Announcer
	if *announce {
		announcer = discovery.NewAnnouncer(discovery.SessionInfo{
			Session:  server.Session(),
			Host:     *name,
			Addr:     fmt.Sprintf("%s:%d", outboundIP(), *port),
			Spectate: *spectate,
			Width:    level.Width,
			Height:   level.Height,
			Actors:   len(spawns),
		}, discovery.DefaultPort, logger.Component(log, "discovery"))
		server.OnClients(announcer.SetClients)
	}

	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
	if *spectate != "" {
		if err := server.StartSpectators(*spectate); err != nil {
			server.Stop()
			fmt.Fprintf(os.Stderr, "Failed to serve spectators: %v\n", err)
			os.Exit(1)
		}
	}
	if announcer != nil {
		if err := announcer.Start(); err != nil {
			log.WithError(err).Warn("session announcements disabled")
		}
	}

	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			if announcer != nil {
				announcer.Stop()
			}
			server.Stop()
			if rec != nil {
				if err := saveReplay(rec, *record); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to save replay: %v\n", err)
				}
			}
		})
	}

	fmt.Printf("Hunt server %s on port %d\n", server.Session(), *port)
	printLocalAddrs(*port)
	if *spectate != "" {
		fmt.Printf("Spectators: ws://%s/spectate\n", *spectate)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *headless {
		<-sigCh
		shutdown()
		return
	}

	go func() {
		<-sigCh
		shutdown()
		closeLog()
		os.Exit(0)
	}()

	// Small pause so the user can read the addresses
	time.Sleep(500 * time.Millisecond)

	// The host plays on the same queue the clients push to.
	send := func(d game.Direction) error {
		queue.Push(d)
		return nil
	}
	model := ui.NewModel(level, config.TileSize, frames, send, spawns[0].ID)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, runErr := p.Run()
	shutdown()
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

// outboundIP returns the first non-loopback IPv4 address, or loopback.
func outboundIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}

// printLocalAddrs prints all local network addresses for players to connect to.
func printLocalAddrs(port int) {
	fmt.Println("Players can connect using:")
	fmt.Printf("  127.0.0.1:%d (this machine)\n", port)

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				fmt.Printf("  %s:%d\n", ipnet.IP.String(), port)
			}
		}
	}
}
