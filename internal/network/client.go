package network

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/needdbeach/hunt/internal/game"
)

// Client connects to a session server, sends key presses and receives frames.
type Client struct {
	conn    net.Conn
	welcome WelcomeMsg
	frameCh chan game.Frame
	errMsg  string
	done    chan struct{}
	mu      sync.Mutex
}

// NewClient creates a new client and connects to the server.
func NewClient(addr, name string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	c := &Client{
		conn:    conn,
		frameCh: make(chan game.Frame, 10),
		done:    make(chan struct{}),
	}

	if err := Encode(conn, MsgJoin, JoinMsg{Name: name}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}

	env, err := Decode(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}

	if env.Type == MsgError {
		var errMsg ErrorMsg
		DecodePayload(env, &errMsg)
		conn.Close()
		return nil, fmt.Errorf("server error: %s", errMsg.Message)
	}

	if env.Type != MsgWelcome {
		conn.Close()
		return nil, fmt.Errorf("expected welcome, got %s", env.Type)
	}

	if err := DecodePayload(env, &c.welcome); err != nil {
		conn.Close()
		return nil, fmt.Errorf("decode welcome: %w", err)
	}

	go c.receiveLoop()

	return c, nil
}

// Session returns the server's session id.
func (c *Client) Session() string {
	return c.welcome.Session
}

// ActorID returns the actor this client follows.
func (c *Client) ActorID() int {
	return c.welcome.ActorID
}

// Config returns the session configuration received from the server.
func (c *Client) Config() game.Config {
	return c.welcome.Config
}

// Level returns the tilemap received from the server.
func (c *Client) Level() *game.Tilemap {
	return c.welcome.Level
}

// FrameChan yields frames. It is closed when the connection ends.
func (c *Client) FrameChan() <-chan game.Frame {
	return c.frameCh
}

// LastError returns the last error message pushed by the server, if any.
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// SendInput sends one key press to the server.
func (c *Client) SendInput(dir game.Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Encode(c.conn, MsgInput, InputMsg{Direction: dir})
}

// Close disconnects from the server.
func (c *Client) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.conn.Close()
}

func (c *Client) receiveLoop() {
	defer close(c.frameCh)

	for {
		select {
		case <-c.done:
			return
		default:
		}

		env, err := Decode(c.conn)
		if err != nil {
			return
		}

		switch env.Type {
		case MsgFrame:
			var msg FrameMsg
			if err := DecodePayload(env, &msg); err != nil {
				continue
			}
			select {
			case c.frameCh <- msg.Frame:
			default:
				// Drop the oldest frame if the consumer is slow.
				select {
				case <-c.frameCh:
				default:
				}
				c.frameCh <- msg.Frame
			}
		case MsgError:
			var msg ErrorMsg
			if DecodePayload(env, &msg) == nil {
				c.mu.Lock()
				c.errMsg = msg.Message
				c.mu.Unlock()
			}
		}
	}
}
