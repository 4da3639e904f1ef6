package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/needdbeach/hunt/internal/game"
)

const writeWait = 2 * time.Second

// spectator is one websocket watching the session.
type spectator struct {
	conn *websocket.Conn
	out  *outbox
}

// writeLoop is the only writer on conn.
func (s *spectator) writeLoop() error {
	return s.out.run(func(data []byte) error {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return s.conn.WriteMessage(websocket.TextMessage, data)
	})
}

// Spectators streams frames as JSON text messages to read-only websocket
// viewers. A new viewer immediately receives the latest frame.
type Spectators struct {
	upgrader websocket.Upgrader
	subs     map[string]*spectator
	last     []byte
	mu       sync.Mutex
	log      *logrus.Entry
	srv      *http.Server
	addr     string
}

// NewSpectators creates an empty hub. A nil log discards output.
func NewSpectators(log *logrus.Entry) *Spectators {
	if log == nil {
		l := logrus.New()
		l.SetOutput(nopWriter{})
		log = logrus.NewEntry(l)
	}
	return &Spectators{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		subs: make(map[string]*spectator),
		log:  log.WithField("component", "spectators"),
	}
}

// Handler returns the HTTP handler serving /spectate.
func (h *Spectators) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/spectate", h.handle)
	return mux
}

// Start serves the handler on addr in the background.
func (h *Spectators) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen spectators: %w", err)
	}
	h.mu.Lock()
	h.addr = ln.Addr().String()
	h.srv = &http.Server{Handler: h.Handler()}
	srv := h.srv
	h.mu.Unlock()

	h.log.WithField("addr", ln.Addr().String()).Info("serving spectators")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.WithError(err).Error("spectator server stopped")
		}
	}()
	return nil
}

// Addr returns the address Start bound to.
func (h *Spectators) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Count returns the number of connected spectators.
func (h *Spectators) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Stop closes the HTTP server and every spectator.
func (h *Spectators) Stop() {
	h.mu.Lock()
	srv := h.srv
	subs := h.subs
	h.subs = make(map[string]*spectator)
	h.mu.Unlock()

	if srv != nil {
		srv.Close()
	}
	for _, sub := range subs {
		sub.out.close()
		sub.conn.Close()
	}
}

// Broadcast encodes the frame once and queues it for every spectator. It
// never waits on a viewer's connection.
func (h *Spectators) Broadcast(frame game.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for _, sub := range h.subs {
		sub.out.push(data)
	}
}

func (h *Spectators) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("upgrade failed")
		return
	}

	id := uuid.NewString()
	sub := &spectator{conn: conn, out: newOutbox(outboxSize)}
	slog := h.log.WithField("spectator", id)

	// Queueing the latest frame under the hub lock keeps a concurrent
	// broadcast from reaching the viewer first.
	h.mu.Lock()
	h.subs[id] = sub
	if h.last != nil {
		sub.out.push(h.last)
	}
	h.mu.Unlock()

	slog.Info("spectator joined")
	go func() {
		if err := sub.writeLoop(); err != nil {
			slog.WithError(err).Debug("dropping spectator")
			h.remove(id)
		}
	}()

	// Spectators never send anything; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			slog.Info("spectator left")
			h.remove(id)
			return
		}
	}
}

func (h *Spectators) remove(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		sub.out.close()
		sub.conn.Close()
	}
}
