package bmsstatus

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClient() client {
	return client{
		mode:        func() (string, error) { return "charging", nil },
		statusFlags: func() (byte, error) { return 0x05, nil },
		packCurrent: func() (float64, error) { return -12.5, nil },
		packVoltage: func(pack int) (float64, error) { return 57.0 + float64(pack), nil },
		cellVoltages: func(pack int) ([]float64, error) {
			return []float64{3.8, 4.16}, nil
		},
		balanceMask: func(pack int) (uint16, error) {
			if pack == 0 {
				return 0x0040, nil // cell 1
			}
			return 0, nil
		},
	}
}

func TestPrintStatus(t *testing.T) {
	saved := bms
	defer func() { bms = saved }()
	bms = fakeClient()

	var out bytes.Buffer
	require.NoError(t, printStatus(&out, 2))
	assert.Equal(t, "Mode: charging\n"+
		"Flags: 0x05 (over voltage, balancing)\n"+
		"Current: -12.50A\n"+
		"Pack 0: 57.000V\n"+
		"  Cell  0: 3.800V\n"+
		"  Cell  1: 4.160V (balancing)\n"+
		"Pack 1: 58.000V\n"+
		"  Cell  0: 3.800V\n"+
		"  Cell  1: 4.160V\n", out.String())
}

func TestPrintStatusServiceDown(t *testing.T) {
	saved := bms
	defer func() { bms = saved }()
	bms = fakeClient()
	bms.mode = func() (string, error) { return "", errors.New("org.freedesktop.DBus.Error.ServiceUnknown") }

	var out bytes.Buffer
	assert.Error(t, printStatus(&out, 2))
	assert.Empty(t, out.String())
}

func TestDescribeFlags(t *testing.T) {
	assert.Equal(t, "0x00", describeFlags(0))
	assert.Equal(t, "0x02 (under voltage)", describeFlags(0x02))
}
