package canstatus

import (
	"bytes"
	"errors"
	"testing"

	"github.com/brutella/can"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFlags(t *testing.T) {
	s := NewStatus(true, false, true, false)
	payload := s.Bytes()
	assert.Equal(t, [PayloadLength]byte{0x05, 0, 0, 0, 0}, payload)

	s = NewStatus(false, true, false, true)
	assert.Equal(t, [PayloadLength]byte{0x02, 0, 0x04, 0, 0}, s.Bytes())

	assert.Equal(t, [PayloadLength]byte{}, NewStatus(false, false, false, false).Bytes())
}

func TestStatusRoundTrip(t *testing.T) {
	for _, c := range [][4]bool{
		{false, false, false, false},
		{true, false, true, false},
		{true, true, true, true},
		{false, true, false, true},
	} {
		s := NewStatus(c[0], c[1], c[2], c[3])
		payload := s.Bytes()
		decoded, err := Decode(payload[:])
		require.NoError(t, err)
		assert.Equal(t, s, decoded)
		assert.Equal(t, c[0], decoded.OverVoltage())
		assert.Equal(t, c[1], decoded.UnderVoltage())
		assert.Equal(t, c[2], decoded.Balancing())
		assert.Equal(t, c[3], decoded.OverTemperature())
	}

	_, err := Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}

type fakeSender struct {
	ids    []uint32
	frames [][]byte
	err    error
}

func (f *fakeSender) Send(id uint32, data []byte) error {
	f.ids = append(f.ids, id)
	f.frames = append(f.frames, append([]byte{}, data...))
	return f.err
}

func (f *fakeSender) Close() error { return nil }

func TestEncoderTransmit(t *testing.T) {
	sender := &fakeSender{}
	e := NewEncoder(sender)

	require.NoError(t, e.Transmit(NewStatus(true, false, true, false)))
	assert.Equal(t, []uint32{StatusFrameID}, sender.ids)
	assert.Equal(t, [][]byte{{0x05, 0, 0, 0, 0}}, sender.frames)

	sender.err = errors.New("bus off")
	assert.Error(t, e.Transmit(Status{}))
	// No retries.
	assert.Len(t, sender.frames, 2)
}

type fakeBus struct {
	frames []can.Frame
}

func (b *fakeBus) Publish(frame can.Frame) error {
	b.frames = append(b.frames, frame)
	return nil
}

func (b *fakeBus) Disconnect() error { return nil }

func TestSocketCANExtendedFrame(t *testing.T) {
	bus := &fakeBus{}
	s := &SocketCAN{bus: bus}

	require.NoError(t, s.Send(StatusFrameID, []byte{0x05, 0, 0x04, 0, 0}))
	require.Len(t, bus.frames, 1)
	f := bus.frames[0]
	assert.Equal(t, uint32(0x81DD0001), f.ID)
	assert.Equal(t, uint8(5), f.Length)
	assert.Equal(t, []byte{0x05, 0, 0x04, 0, 0}, f.Data[:5])

	assert.Error(t, s.Send(0x20000000, nil))
	assert.Error(t, s.Send(1, make([]byte, 9)))
	assert.Len(t, bus.frames, 1)
}

type bufferPort struct {
	bytes.Buffer
	closed bool
}

func (p *bufferPort) Close() error {
	p.closed = true
	return nil
}

func TestSLCAN(t *testing.T) {
	port := &bufferPort{}
	s, err := NewSLCAN(port, BitRate)
	require.NoError(t, err)
	assert.Equal(t, "C\rS5\rO\r", port.String())

	port.Reset()
	require.NoError(t, s.Send(StatusFrameID, []byte{0x05, 0, 0x04, 0, 0}))
	assert.Equal(t, "T01DD000150500040000\r", port.String())

	port.Reset()
	require.NoError(t, s.Close())
	assert.Equal(t, "C\r", port.String())
	assert.True(t, port.closed)

	_, err = NewSLCAN(&bufferPort{}, 42)
	assert.Error(t, err)
}
