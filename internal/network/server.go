package network

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/needdbeach/hunt/internal/game"
	"github.com/needdbeach/hunt/internal/input"
)

// Server hosts a session: it runs the engine, feeds client key presses into
// the shared input queue, and broadcasts every frame.
type Server struct {
	engine     *game.Engine
	queue      *input.Queue
	level      *game.Tilemap
	actorID    int
	session    string
	addr       string
	listener   net.Listener
	clients    map[string]*clientConn
	spectators *Spectators
	onFrame    []func(game.Frame)
	onClients  func(int)
	log        *logrus.Entry
	mu         sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once
}

// clientConn represents a connected client. Frames reach it through out,
// drained by its own writer goroutine.
type clientConn struct {
	conn net.Conn
	id   string
	name string
	out  *outbox
}

// NewServer wraps an engine whose input provider reads from queue.
// actorID is the actor clients follow in their HUD.
func NewServer(addr string, engine *game.Engine, queue *input.Queue, level *game.Tilemap, actorID int, log *logrus.Entry) *Server {
	if log == nil {
		l := logrus.New()
		l.SetOutput(nopWriter{})
		log = logrus.NewEntry(l)
	}
	s := &Server{
		engine:  engine,
		queue:   queue,
		level:   level,
		actorID: actorID,
		session: uuid.NewString(),
		addr:    addr,
		clients: make(map[string]*clientConn),
		log:     log.WithField("component", "server"),
		done:    make(chan struct{}),
	}

	// Set up the broadcast callback; the engine hands over a finished frame.
	engine.OnTick(s.broadcastFrame)

	return s
}

// Session returns the session id sent to clients.
func (s *Server) Session() string {
	return s.session
}

// OnFrame registers a local listener (UI, replay recorder) called on every
// frame before clients are sent it. Register before Start.
func (s *Server) OnFrame(fn func(game.Frame)) {
	s.onFrame = append(s.onFrame, fn)
}

// OnClients registers a callback run with the client count whenever a client
// joins or leaves. Register before Start.
func (s *Server) OnClients(fn func(int)) {
	s.onClients = fn
}

// ClientCount returns the number of joined clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Start begins accepting connections and running the engine.
func (s *Server) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"addr":    s.listener.Addr().String(),
		"session": s.session,
	}).Info("listening")

	go s.engine.Run()
	go s.acceptLoop()

	return nil
}

// StartSpectators serves the websocket frame stream on addr.
func (s *Server) StartSpectators(addr string) error {
	sp := NewSpectators(s.log)
	if err := sp.Start(addr); err != nil {
		return err
	}
	s.mu.Lock()
	s.spectators = sp
	s.mu.Unlock()
	return nil
}

// Stop shuts down the server. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.engine.Stop()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.RLock()
		for _, c := range s.clients {
			c.out.close()
			c.conn.Close()
		}
		sp := s.spectators
		s.mu.RUnlock()
		if sp != nil {
			sp.Stop()
		}
	})
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.log.WithError(err).Warn("accept failed")
				continue
			}
		}
		go s.handleClient(conn)
	}
}

func (s *Server) handleClient(conn net.Conn) {
	defer conn.Close()

	env, err := Decode(conn)
	if err != nil {
		s.log.WithError(err).Warn("failed to read join message")
		return
	}

	if env.Type != MsgJoin {
		s.log.WithField("type", env.Type).Warn("expected join message")
		Encode(conn, MsgError, ErrorMsg{Message: "expected join message"})
		return
	}

	var join JoinMsg
	if err := DecodePayload(env, &join); err != nil {
		s.log.WithError(err).Warn("failed to decode join message")
		return
	}

	cc := &clientConn{
		conn: conn,
		id:   uuid.NewString(),
		name: join.Name,
		out:  newOutbox(outboxSize),
	}
	clog := s.log.WithFields(logrus.Fields{"client": cc.id, "name": cc.name})

	// The welcome and first frame are written before the client is
	// registered, so no broadcast can overtake them.
	welcome := WelcomeMsg{
		Session: s.session,
		ActorID: s.actorID,
		Config:  s.engine.Config,
		Level:   s.level,
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := Encode(conn, MsgWelcome, welcome); err != nil {
		clog.WithError(err).Warn("failed to send welcome")
		return
	}
	if err := Encode(conn, MsgFrame, FrameMsg{Frame: s.engine.Snapshot()}); err != nil {
		clog.WithError(err).Warn("failed to send snapshot")
		return
	}
	conn.SetWriteDeadline(time.Time{})

	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return
	default:
	}
	s.clients[cc.id] = cc
	count := len(s.clients)
	s.mu.Unlock()
	s.notifyClients(count)
	clog.Info("client joined")

	go s.writeLoop(cc, clog)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		env, err := Decode(conn)
		if err != nil {
			clog.WithError(err).Info("client disconnected")
			s.removeClient(cc.id)
			return
		}

		switch env.Type {
		case MsgInput:
			var msg InputMsg
			if err := DecodePayload(env, &msg); err != nil {
				clog.WithError(err).Warn("invalid input")
				continue
			}
			if msg.Direction < game.DirNone || msg.Direction > game.DirDown {
				clog.WithField("direction", int(msg.Direction)).Warn("unknown direction")
				continue
			}
			s.queue.Push(msg.Direction)
		default:
			clog.WithField("type", env.Type).Warn("unknown message type")
		}
	}
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	cc, ok := s.clients[id]
	if ok {
		cc.out.close()
		cc.conn.Close()
		delete(s.clients, id)
	}
	count := len(s.clients)
	s.mu.Unlock()
	if ok {
		s.notifyClients(count)
	}
}

func (s *Server) notifyClients(count int) {
	if s.onClients != nil {
		s.onClients(count)
	}
}

// broadcastFrame runs on the engine goroutine. It encodes the frame once and
// only queues it; writes happen on each client's writer goroutine.
func (s *Server) broadcastFrame(frame game.Frame) {
	for _, fn := range s.onFrame {
		fn(frame)
	}

	data, err := encodeMessage(MsgFrame, FrameMsg{Frame: frame})
	if err != nil {
		s.log.WithError(err).Error("failed to encode frame")
		return
	}

	s.mu.RLock()
	for _, cc := range s.clients {
		cc.out.push(data)
	}
	sp := s.spectators
	s.mu.RUnlock()

	if sp != nil {
		sp.Broadcast(frame)
	}
}

// writeLoop sends queued frames to one client. A client that cannot take a
// frame within writeWait is dropped.
func (s *Server) writeLoop(cc *clientConn, clog *logrus.Entry) {
	err := cc.out.run(func(data []byte) error {
		cc.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_, err := cc.conn.Write(data)
		return err
	})
	if err != nil {
		clog.WithError(err).Info("dropping slow client")
		s.removeClient(cc.id)
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
