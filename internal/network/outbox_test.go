package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutboxDropsOldest(t *testing.T) {
	o := newOutbox(2)
	o.push([]byte("a"))
	o.push([]byte("b"))
	o.push([]byte("c"))

	assert.Equal(t, []byte("b"), <-o.ch)
	assert.Equal(t, []byte("c"), <-o.ch)
}

func TestOutboxRunStopsOnWriteError(t *testing.T) {
	o := newOutbox(2)
	o.push([]byte("a"))

	boom := errors.New("boom")
	err := o.run(func([]byte) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestOutboxClose(t *testing.T) {
	o := newOutbox(1)
	o.close()
	o.close()

	o.push([]byte("ignored"))
	assert.Empty(t, o.ch)
	assert.NoError(t, o.run(func([]byte) error {
		t.Fatal("write after close")
		return nil
	}))
}
