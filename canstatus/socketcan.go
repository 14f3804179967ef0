package canstatus

import (
	"fmt"

	"github.com/brutella/can"
)

// effFlag marks a SocketCAN frame identifier as extended (CAN_EFF_FLAG).
const effFlag uint32 = 0x80000000

type publisher interface {
	Publish(frame can.Frame) error
	Disconnect() error
}

// SocketCAN sends frames through a Linux CAN interface. The interface bit rate
// is configured by the system (ip link set can0 type can bitrate 250000).
type SocketCAN struct {
	bus publisher
}

// OpenSocketCAN opens the named interface, e.g. "can0".
func OpenSocketCAN(iface string) (*SocketCAN, error) {
	bus, err := can.NewBusForInterfaceWithName(iface)
	if err != nil {
		return nil, fmt.Errorf("failed to open CAN interface '%s': %w", iface, err)
	}
	return &SocketCAN{bus: bus}, nil
}

func (s *SocketCAN) Send(id uint32, data []byte) error {
	frame, err := extendedFrame(id, data)
	if err != nil {
		return err
	}
	return s.bus.Publish(frame)
}

func (s *SocketCAN) Close() error {
	return s.bus.Disconnect()
}

func extendedFrame(id uint32, data []byte) (can.Frame, error) {
	if err := checkFrame(id, data); err != nil {
		return can.Frame{}, err
	}
	frame := can.Frame{
		ID:     id | effFlag,
		Length: uint8(len(data)),
	}
	copy(frame.Data[:], data)
	return frame, nil
}
