package network

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/needdbeach/hunt/internal/game"
)

// MsgType identifies the type of network message.
type MsgType string

const (
	MsgJoin    MsgType = "join"
	MsgWelcome MsgType = "welcome"
	MsgInput   MsgType = "input"
	MsgFrame   MsgType = "frame"
	MsgError   MsgType = "error"
)

// maxMessageSize bounds a single decoded message (1MB).
const maxMessageSize = 1 << 20

// Envelope wraps all messages with a type discriminator for deserialization.
type Envelope struct {
	Type    MsgType         `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// --- Client → Server Messages ---

// JoinMsg is sent by a client to join the session.
type JoinMsg struct {
	Name string `json:"name"`
}

// InputMsg carries one key press. Every client steers the whole scene.
type InputMsg struct {
	Direction game.Direction `json:"direction"`
}

// --- Server → Client Messages ---

// WelcomeMsg is sent to a client after joining. It carries everything a
// renderer needs that does not change per tick.
type WelcomeMsg struct {
	Session string        `json:"session"`
	ActorID int           `json:"actor_id"` // The actor this client follows in the HUD
	Config  game.Config   `json:"config"`
	Level   *game.Tilemap `json:"level"`
}

// FrameMsg is one tick of the simulation.
type FrameMsg struct {
	Frame game.Frame `json:"frame"`
}

// ErrorMsg notifies a client of an error.
type ErrorMsg struct {
	Message string `json:"message"`
}

// Encode serializes a message and writes it to the writer.
// Format: [4-byte big-endian length][JSON body]
func Encode(w io.Writer, msgType MsgType, payload interface{}) error {
	buf, err := encodeMessage(msgType, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// encodeMessage returns the framed message, header and body in one buffer so
// it goes out in a single write.
func encodeMessage(msgType MsgType, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	env := Envelope{
		Type:    msgType,
		Payload: json.RawMessage(payloadBytes),
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	return buf, nil
}

// Decode reads a length-prefixed JSON message from the reader.
func Decode(r io.Reader) (*Envelope, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	if length > maxMessageSize {
		return nil, fmt.Errorf("message too large: %d bytes", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	return &env, nil
}

// DecodePayload unmarshals the payload from an envelope into the target struct.
func DecodePayload(env *Envelope, target interface{}) error {
	return json.Unmarshal(env.Payload, target)
}
