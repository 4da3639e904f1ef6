// Package discovery advertises running sessions on the local network over UDP
// broadcast so clients can join without typing an address.
package discovery

import (
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPort is the UDP port used for session announcements.
	DefaultPort = 9998
	// AnnounceInterval is how often hosts advertise their session.
	AnnounceInterval = 1 * time.Second
	// SessionExpiry is how long a session stays visible after its last announcement.
	SessionExpiry = 4 * time.Second
)

// SessionInfo describes a session a client can join.
type SessionInfo struct {
	Session  string `json:"session"`
	Host     string `json:"host"`
	Addr     string `json:"addr"`               // TCP host:port to connect to
	Spectate string `json:"spectate,omitempty"` // Websocket host:port, if served
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Actors   int    `json:"actors"`
	Clients  int    `json:"clients"`
}

// Announcer periodically sends the session info to every target.
type Announcer struct {
	info     SessionInfo
	targets  []*net.UDPAddr
	interval time.Duration
	log      *logrus.Entry
	done     chan struct{}
	mu       sync.Mutex
}

// NewAnnouncer creates an announcer for port. With no explicit targets it
// sends to loopback, the global broadcast address and every interface's
// broadcast address.
func NewAnnouncer(info SessionInfo, port int, log *logrus.Entry, targets ...*net.UDPAddr) *Announcer {
	if log == nil {
		l := logrus.New()
		l.SetOutput(nopWriter{})
		log = logrus.NewEntry(l)
	}
	if len(targets) == 0 {
		targets = broadcastTargets(port)
	}
	return &Announcer{
		info:     info,
		targets:  targets,
		interval: AnnounceInterval,
		log:      log.WithField("component", "discovery"),
		done:     make(chan struct{}),
	}
}

// SetClients updates the advertised client count.
func (a *Announcer) SetClients(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.info.Clients = n
}

// Start opens the sending socket and begins announcing.
func (a *Announcer) Start() error {
	// ListenPacket rather than DialUDP so broadcast works on Linux.
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return fmt.Errorf("open announce socket: %w", err)
	}
	go a.loop(conn)
	return nil
}

// Stop stops announcing. Safe to call more than once.
func (a *Announcer) Stop() {
	select {
	case <-a.done:
	default:
		close(a.done)
	}
}

func (a *Announcer) loop(conn net.PacketConn) {
	defer conn.Close()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.send(conn)
	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.send(conn)
		}
	}
}

func (a *Announcer) send(conn net.PacketConn) {
	a.mu.Lock()
	data, err := json.Marshal(a.info)
	a.mu.Unlock()
	if err != nil {
		a.log.WithError(err).Error("failed to marshal session info")
		return
	}

	for _, dst := range a.targets {
		if _, err := conn.WriteTo(data, dst); err != nil {
			a.log.WithError(err).WithField("dst", dst.String()).Debug("announce failed")
		}
	}
}

// broadcastTargets lists loopback, the global broadcast address and the
// broadcast address of every up interface.
func broadcastTargets(port int) []*net.UDPAddr {
	targets := []*net.UDPAddr{
		{IP: net.IPv4(127, 0, 0, 1), Port: port},
		{IP: net.IPv4bcast, Port: port},
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return targets
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagBroadcast == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil || len(ipnet.Mask) != net.IPv4len {
				continue
			}
			// IP | ~Mask
			ip4 := ipnet.IP.To4()
			bcast := make(net.IP, net.IPv4len)
			for i := range bcast {
				bcast[i] = ip4[i] | ^ipnet.Mask[i]
			}
			targets = append(targets, &net.UDPAddr{IP: bcast, Port: port})
		}
	}
	return targets
}

// seenSession holds a session and when it was last announced.
type seenSession struct {
	info     SessionInfo
	lastSeen time.Time
}

// Listener collects session announcements.
type Listener struct {
	sessions map[string]*seenSession // Keyed by Addr
	mu       sync.RWMutex
	conn     *net.UDPConn
	done     chan struct{}
}

// NewListener creates a listener.
func NewListener() *Listener {
	return &Listener{
		sessions: make(map[string]*seenSession),
		done:     make(chan struct{}),
	}
}

// Start listens on port. Port 0 picks a free port; see Port.
func (l *Listener) Start(port int) error {
	var err error
	l.conn, err = net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return fmt.Errorf("listen UDP on port %d: %w", port, err)
	}

	go l.listenLoop()
	go l.pruneLoop()
	return nil
}

// Port returns the bound UDP port.
func (l *Listener) Port() int {
	if l.conn == nil {
		return 0
	}
	return l.conn.LocalAddr().(*net.UDPAddr).Port
}

// Stop stops the listener.
func (l *Listener) Stop() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	if l.conn != nil {
		l.conn.Close()
	}
}

// Sessions returns the visible sessions sorted by address.
func (l *Listener) Sessions() []SessionInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]SessionInfo, 0, len(l.sessions))
	for _, s := range l.sessions {
		out = append(out, s.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// Wait blocks until at least one session is visible or timeout passes.
func (l *Listener) Wait(timeout time.Duration) []SessionInfo {
	deadline := time.Now().Add(timeout)
	for {
		if s := l.Sessions(); len(s) > 0 || time.Now().After(deadline) {
			return s
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (l *Listener) listenLoop() {
	buf := make([]byte, 4096)
	for {
		select {
		case <-l.done:
			return
		default:
		}

		l.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		l.record(buf[:n], time.Now())
	}
}

func (l *Listener) record(data []byte, now time.Time) {
	var info SessionInfo
	if err := json.Unmarshal(data, &info); err != nil || info.Addr == "" {
		return
	}

	l.mu.Lock()
	l.sessions[info.Addr] = &seenSession{info: info, lastSeen: now}
	l.mu.Unlock()
}

func (l *Listener) pruneLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.prune(now)
		}
	}
}

func (l *Listener) prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for addr, s := range l.sessions {
		if now.Sub(s.lastSeen) > SessionExpiry {
			delete(l.sessions, addr)
		}
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
