package bms

import (
	"testing"

	goconfig "github.com/TheCacophonyProject/go-config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	conf := DefaultConfig()
	require.NoError(t, conf.Validate())
	assert.Equal(t, []uint16{0x48, 0x48}, conf.CellADCAddresses)
	assert.Equal(t, uint16(0x4B), conf.ShuntADCAddress)
	assert.Equal(t, CANBackendSocketCAN, conf.CANBackend)
}

func TestConfigValidate(t *testing.T) {
	conf := DefaultConfig()
	conf.ChipSelectPins = conf.ChipSelectPins[:1]
	assert.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.CANBackend = "carrier-pigeon"
	assert.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.CellADCChannels = nil
	assert.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.DebounceSamples = 0
	assert.Error(t, conf.Validate())
}

func TestProcArgsConfigDir(t *testing.T) {
	args, err := procArgs([]string{})
	require.NoError(t, err)
	assert.Equal(t, goconfig.DefaultConfigDir, args.ConfigDir)
	assert.Nil(t, args.ReadCells)

	args, err = procArgs([]string{"--config", "/tmp/bms", "read-cells", "--samples", "3"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/bms", args.ConfigDir)
	require.NotNil(t, args.ReadCells)
	assert.Equal(t, 3, args.ReadCells.Samples)
}
