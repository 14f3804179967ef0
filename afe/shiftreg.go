package afe

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// ShiftRegister drives the outputs of a 74HC595 by bit banging three GPIOs.
type ShiftRegister struct {
	mu    sync.Mutex
	data  gpio.PinOut
	clock gpio.PinOut
	latch gpio.PinOut
	state byte
}

// NewShiftRegister clears every output and returns the register.
func NewShiftRegister(data, clock, latch gpio.PinOut) (*ShiftRegister, error) {
	sr := &ShiftRegister{data: data, clock: clock, latch: latch}
	for _, p := range []gpio.PinOut{data, clock, latch} {
		if err := p.Out(gpio.Low); err != nil {
			return nil, err
		}
	}
	if err := sr.write(0); err != nil {
		return nil, err
	}
	return sr, nil
}

// Set changes one output and latches the whole register.
func (sr *ShiftRegister) Set(line int, on bool) error {
	if line < 0 || line > 7 {
		return fmt.Errorf("shift register has no output %d", line)
	}
	sr.mu.Lock()
	defer sr.mu.Unlock()

	state := sr.state
	if on {
		state |= 1 << line
	} else {
		state &^= 1 << line
	}
	if err := sr.write(state); err != nil {
		return err
	}
	sr.state = state
	return nil
}

// State returns the last latched outputs.
func (sr *ShiftRegister) State() byte {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.state
}

// write shifts out MSB first then pulses the latch.
func (sr *ShiftRegister) write(state byte) error {
	for i := 7; i >= 0; i-- {
		if err := sr.data.Out(gpio.Level(state&(1<<i) != 0)); err != nil {
			return err
		}
		if err := sr.clock.Out(gpio.High); err != nil {
			return err
		}
		if err := sr.clock.Out(gpio.Low); err != nil {
			return err
		}
	}
	if err := sr.latch.Out(gpio.High); err != nil {
		return err
	}
	return sr.latch.Out(gpio.Low)
}
