package network

import "sync"

// outboxSize is how many encoded frames may wait for a slow reader.
const outboxSize = 8

// outbox is a bounded per-connection send queue. A full outbox drops its
// oldest message, so producers on the engine goroutine never block on a
// reader that stopped reading.
type outbox struct {
	ch     chan []byte
	closed chan struct{}
	once   sync.Once
}

func newOutbox(size int) *outbox {
	return &outbox{
		ch:     make(chan []byte, size),
		closed: make(chan struct{}),
	}
}

// push queues msg, dropping the oldest queued message if full.
func (o *outbox) push(msg []byte) {
	for {
		select {
		case <-o.closed:
			return
		case o.ch <- msg:
			return
		default:
		}
		select {
		case <-o.ch:
		default:
		}
	}
}

// run hands queued messages to write until close is called or write fails.
func (o *outbox) run(write func([]byte) error) error {
	for {
		select {
		case <-o.closed:
			return nil
		case msg := <-o.ch:
			if err := write(msg); err != nil {
				return err
			}
		}
	}
}

// close stops run. Safe to call more than once.
func (o *outbox) close() {
	o.once.Do(func() { close(o.closed) })
}
