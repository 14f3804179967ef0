package bms

import (
	"context"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// edgeTimeout bounds each wait so a watcher notices its context ending.
const edgeTimeout = time.Second

// Debouncer accepts a new input level only after it has been read the same
// number of times in a row.
type Debouncer struct {
	samples   int
	level     bool
	candidate bool
	count     int
}

func NewDebouncer(samples int, initial bool) *Debouncer {
	if samples < 1 {
		samples = 1
	}
	return &Debouncer{samples: samples, level: initial, candidate: initial}
}

// Update feeds one raw reading and returns the accepted level.
func (d *Debouncer) Update(raw bool) bool {
	if raw == d.level {
		d.candidate = raw
		d.count = 0
		return d.level
	}
	if raw != d.candidate {
		d.candidate = raw
		d.count = 0
	}
	d.count++
	if d.count >= d.samples {
		d.level = raw
		d.count = 0
	}
	return d.level
}

// Force sets the accepted level directly, used when an edge interrupt has
// already been seen for the input.
func (d *Debouncer) Force(level bool) {
	d.level = level
	d.candidate = level
	d.count = 0
}

func (d *Debouncer) Level() bool {
	return d.level
}

// Mailbox passes the latest input level from an edge watcher to the cycle.
// It holds one value, posting again replaces one that hasn't been taken.
type Mailbox struct {
	ch chan bool
}

func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan bool, 1)}
}

// Post never blocks.
func (m *Mailbox) Post(level bool) {
	for {
		select {
		case m.ch <- level:
			return
		default:
		}
		select {
		case <-m.ch:
		default:
		}
	}
}

// Take returns the posted level, ok is false when nothing was posted.
func (m *Mailbox) Take() (level, ok bool) {
	select {
	case level = <-m.ch:
		return level, true
	default:
		return false, false
	}
}

// WatchEdges posts the pin level to the mailbox on every edge until ctx is
// done. The pin must already be configured for edge detection.
func WatchEdges(ctx context.Context, pin gpio.PinIn, mb *Mailbox) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if pin.WaitForEdge(edgeTimeout) {
			mb.Post(pin.Read() == gpio.High)
		}
	}
}
