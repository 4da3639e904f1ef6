package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/needdbeach/hunt/internal/discovery"
	"github.com/needdbeach/hunt/internal/network"
	"github.com/needdbeach/hunt/internal/ui"
)

func main() {
	addr := flag.String("addr", "", "Server address (e.g., 192.168.1.5:9999); empty searches the local network")
	name := flag.String("name", "Player", "Your name")
	wait := flag.Duration("wait", 3*time.Second, "How long to search for sessions when -addr is empty")
	flag.Parse()

	if *addr == "" {
		found, err := discover(*wait)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to search for sessions: %v\n", err)
			os.Exit(1)
		}
		if found == "" {
			fmt.Fprintln(os.Stderr, "No sessions found. Usage: client --addr <host:port> [--name <name>]")
			fmt.Fprintln(os.Stderr, "  Example: client --addr 192.168.1.5:9999 --name Alice")
			os.Exit(1)
		}
		*addr = found
	}

	fmt.Printf("Connecting to %s as %s...\n", *addr, *name)

	client, err := network.NewClient(*addr, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	fmt.Printf("Connected to session %s\n", client.Session())
	fmt.Println("Starting TUI...")
	time.Sleep(500 * time.Millisecond)

	model := ui.NewModel(client.Level(), client.Config().TileSize, client.FrameChan(), client.SendInput, client.ActorID()).
		WithErrorSource(client.LastError)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// discover listens for session announcements and returns the first address.
func discover(wait time.Duration) (string, error) {
	l := discovery.NewListener()
	if err := l.Start(discovery.DefaultPort); err != nil {
		return "", err
	}
	defer l.Stop()

	fmt.Println("Searching for sessions...")
	sessions := l.Wait(wait)
	if len(sessions) == 0 {
		return "", nil
	}
	for _, s := range sessions {
		fmt.Printf("  %s  %s (%dx%d, %d actors, %d clients)\n", s.Addr, s.Host, s.Width, s.Height, s.Actors, s.Clients)
	}
	return sessions[0].Addr, nil
}
