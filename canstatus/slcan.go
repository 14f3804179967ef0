package canstatus

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// slcanBitRates maps a bit rate to the Lawicel "Sn" setup command.
var slcanBitRates = map[int]string{
	10000:   "S0",
	20000:   "S1",
	50000:   "S2",
	100000:  "S3",
	125000:  "S4",
	250000:  "S5",
	500000:  "S6",
	800000:  "S7",
	1000000: "S8",
}

// SLCAN sends frames through a USB/serial CAN adapter speaking the Lawicel
// ASCII protocol.
type SLCAN struct {
	port io.ReadWriteCloser
}

// OpenSLCAN opens the serial device, sets the bus bit rate and opens the channel.
func OpenSLCAN(device string, baud, bitRate int) (*SLCAN, error) {
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud, ReadTimeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open SLCAN device '%s': %w", device, err)
	}
	s, err := NewSLCAN(port, bitRate)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

// NewSLCAN runs the adapter setup on an already open port.
func NewSLCAN(port io.ReadWriteCloser, bitRate int) (*SLCAN, error) {
	setup, ok := slcanBitRates[bitRate]
	if !ok {
		return nil, fmt.Errorf("SLCAN does not support a bit rate of %d", bitRate)
	}
	s := &SLCAN{port: port}
	// Close first in case the adapter was left open.
	for _, cmd := range []string{"C", setup, "O"} {
		if err := s.write(cmd); err != nil {
			return nil, fmt.Errorf("SLCAN setup command '%s' failed: %w", cmd, err)
		}
	}
	return s, nil
}

func (s *SLCAN) Send(id uint32, data []byte) error {
	if err := checkFrame(id, data); err != nil {
		return err
	}
	return s.write(slcanFrame(id, data))
}

func (s *SLCAN) Close() error {
	if err := s.write("C"); err != nil {
		s.port.Close()
		return err
	}
	return s.port.Close()
}

func (s *SLCAN) write(cmd string) error {
	_, err := s.port.Write([]byte(cmd + "\r"))
	return err
}

// slcanFrame formats an extended data frame: T, 8 hex digit id, length, data.
func slcanFrame(id uint32, data []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "T%08X%d", id, len(data))
	for _, d := range data {
		fmt.Fprintf(&b, "%02X", d)
	}
	return b.String()
}
