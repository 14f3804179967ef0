package bms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(2, false)
	assert.False(t, d.Update(true))
	assert.True(t, d.Update(true))

	// A single glitch is ignored.
	assert.True(t, d.Update(false))
	assert.True(t, d.Update(true))
	assert.True(t, d.Update(false))
	assert.False(t, d.Update(false))

	d.Force(true)
	assert.True(t, d.Level())
	assert.True(t, d.Update(false))
}

func TestDebouncerSingleSample(t *testing.T) {
	d := NewDebouncer(0, false)
	assert.True(t, d.Update(true))
	assert.False(t, d.Update(false))
}

func TestMailboxKeepsNewest(t *testing.T) {
	mb := NewMailbox()
	_, ok := mb.Take()
	assert.False(t, ok)

	mb.Post(true)
	mb.Post(false)
	level, ok := mb.Take()
	assert.True(t, ok)
	assert.False(t, level)

	_, ok = mb.Take()
	assert.False(t, ok)
}

func TestWatchEdges(t *testing.T) {
	pin := &gpiotest.Pin{N: "charge-port", EdgesChan: make(chan gpio.Level, 1)}
	require.NoError(t, pin.In(gpio.PullDown, gpio.BothEdges))
	mb := NewMailbox()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		WatchEdges(ctx, pin, mb)
		close(done)
	}()

	pin.EdgesChan <- gpio.High
	var level, ok bool
	assert.Eventually(t, func() bool {
		level, ok = mb.Take()
		return ok
	}, time.Second, time.Millisecond)
	assert.True(t, level)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * edgeTimeout):
		t.Fatal("watcher did not stop")
	}
}
