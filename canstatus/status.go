// Package canstatus encodes the BMS status message read by the charger (EVCC)
// and sends it on the vehicle CAN bus.
package canstatus

import "fmt"

const (
	// StatusFrameID is the 29 bit identifier of the BMS to EVCC status message.
	StatusFrameID uint32 = 0x01DD0001
	// BitRate of the vehicle bus.
	BitRate = 250000
	// PayloadLength of the status message.
	PayloadLength = 5

	maxExtendedID = 0x1FFFFFFF
)

// Status flag bits, byte 0.
const (
	FlagOverVoltage  byte = 0x01 // A cell is above the upper threshold.
	FlagUnderVoltage byte = 0x02 // A cell is below the lower threshold.
	FlagBalancing    byte = 0x04 // A pack is balancing.
)

// Fault bits, byte 2.
const (
	FaultOverTemperature byte = 0x04
)

// Status is the BMS status message body.
type Status struct {
	Flags     byte
	SourceID  byte
	Fault     byte
	Reserved2 byte
	Reserved3 byte
}

// NewStatus builds a status from the individual conditions.
func NewStatus(overVoltage, underVoltage, balancing, overTemperature bool) Status {
	var s Status
	if overVoltage {
		s.Flags |= FlagOverVoltage
	}
	if underVoltage {
		s.Flags |= FlagUnderVoltage
	}
	if balancing {
		s.Flags |= FlagBalancing
	}
	if overTemperature {
		s.Fault |= FaultOverTemperature
	}
	return s
}

func (s Status) OverVoltage() bool { return s.Flags&FlagOverVoltage != 0 }
func (s Status) UnderVoltage() bool { return s.Flags&FlagUnderVoltage != 0 }
func (s Status) Balancing() bool { return s.Flags&FlagBalancing != 0 }
func (s Status) OverTemperature() bool { return s.Fault&FaultOverTemperature != 0 }

// Bytes returns the payload in wire order.
func (s Status) Bytes() [PayloadLength]byte {
	return [PayloadLength]byte{s.Flags, s.SourceID, s.Fault, s.Reserved2, s.Reserved3}
}

// Decode parses a status payload.
func Decode(data []byte) (Status, error) {
	if len(data) != PayloadLength {
		return Status{}, fmt.Errorf("status payload is %d bytes, expected %d", len(data), PayloadLength)
	}
	return Status{
		Flags:     data[0],
		SourceID:  data[1],
		Fault:     data[2],
		Reserved2: data[3],
		Reserved3: data[4],
	}, nil
}

func (s Status) String() string {
	return fmt.Sprintf("flags 0x%02X (over %t, under %t, balancing %t), fault 0x%02X",
		s.Flags, s.OverVoltage(), s.UnderVoltage(), s.Balancing(), s.Fault)
}

// Sender puts one extended frame on the bus. There is no acknowledgement,
// arbitration and retransmission are left to the CAN controller.
type Sender interface {
	Send(id uint32, data []byte) error
	Close() error
}

// Encoder sends status messages.
type Encoder struct {
	sender Sender
	id     uint32
}

func NewEncoder(sender Sender) *Encoder {
	return &Encoder{sender: sender, id: StatusFrameID}
}

// Transmit sends the status once.
func (e *Encoder) Transmit(s Status) error {
	payload := s.Bytes()
	if err := e.sender.Send(e.id, payload[:]); err != nil {
		return fmt.Errorf("failed to send status frame: %w", err)
	}
	return nil
}

func checkFrame(id uint32, data []byte) error {
	if id > maxExtendedID {
		return fmt.Errorf("identifier 0x%X does not fit in 29 bits", id)
	}
	if len(data) > 8 {
		return fmt.Errorf("frame data is %d bytes, max is 8", len(data))
	}
	return nil
}
