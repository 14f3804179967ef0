package afe

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/TheCacophonyProject/go-utils/logging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

const (
	// SPIFrequency is the clock used for the MAX14921, well under its 10MHz limit.
	SPIFrequency = physic.MegaHertz
	// SPIMode is mode 0. Chip select is driven from a GPIO per pack so the
	// driver is told not to touch its own CS line.
	SPIMode = spi.Mode0 | spi.NoCS
)

// Enabler drives individual enable lines.
type Enabler interface {
	Set(line int, on bool) error
}

// SPITransport is a Transport over a shared SPI bus with one chip select GPIO
// per pack. The chip expects LSB first which most spidev drivers don't do so
// the bit order is reversed here.
type SPITransport struct {
	mu          sync.Mutex
	conn        spi.Conn
	chipSelects []gpio.PinOut
	enable      Enabler
	enableLines []int
	log         *logging.Logger
}

// NewSPITransport deselects every chip and returns the transport.
// enableLines maps a pack index to its line on the Enabler.
func NewSPITransport(conn spi.Conn, chipSelects []gpio.PinOut, enable Enabler, enableLines []int, log *logging.Logger) (*SPITransport, error) {
	if len(enableLines) != len(chipSelects) {
		return nil, fmt.Errorf("have %d chip selects but %d enable lines", len(chipSelects), len(enableLines))
	}
	if log == nil {
		log = logging.NewLogger("info")
	}
	for i, cs := range chipSelects {
		if err := cs.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("failed to deselect pack %d: %w", i, err)
		}
	}
	return &SPITransport{
		conn:        conn,
		chipSelects: chipSelects,
		enable:      enable,
		enableLines: enableLines,
		log:         log,
	}, nil
}

func (t *SPITransport) Transfer3(cs int, b0, b1, b2 byte) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cs < 0 || cs >= len(t.chipSelects) {
		t.log.Errorf("No chip select %d", cs)
		return 0
	}
	pin := t.chipSelects[cs]

	w := []byte{bits.Reverse8(b0), bits.Reverse8(b1), bits.Reverse8(b2)}
	r := make([]byte, len(w))

	if err := pin.Out(gpio.Low); err != nil {
		t.log.Errorf("Failed to select pack %d: %v", cs, err)
		return 0
	}
	err := t.conn.Tx(w, r)
	if err2 := pin.Out(gpio.High); err2 != nil {
		t.log.Errorf("Failed to deselect pack %d: %v", cs, err2)
	}
	if err != nil {
		t.log.Errorf("SPI transfer to pack %d failed: %v", cs, err)
		return 0
	}

	return uint32(bits.Reverse8(r[0])) |
		uint32(bits.Reverse8(r[1]))<<8 |
		uint32(bits.Reverse8(r[2]))<<16
}

func (t *SPITransport) SetEnable(pack int, on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if pack < 0 || pack >= len(t.enableLines) {
		t.log.Errorf("No enable line for pack %d", pack)
		return
	}
	if err := t.enable.Set(t.enableLines[pack], on); err != nil {
		t.log.Errorf("Failed to set enable line for pack %d: %v", pack, err)
	}
}
