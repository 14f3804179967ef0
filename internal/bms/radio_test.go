package bms

import (
	"errors"
	"testing"

	"github.com/TheCacophonyProject/go-utils/logging"
	"github.com/TheCacophonyProject/rpi-net-manager/netmanagerclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRFKillRadio(t *testing.T) {
	var commands [][]string
	runCommand = func(command ...string) ([]byte, error) {
		commands = append(commands, command)
		return nil, nil
	}
	readNetworkState = func() (netmanagerclient.NetworkState, error) {
		return netmanagerclient.NS_WIFI_CONNECTED, nil
	}
	defer func() {
		runCommand = defaultRunCommand
		readNetworkState = netmanagerclient.ReadState
	}()

	r := NewRFKillRadio("wifi", logging.NewLogger("error"))
	require.NoError(t, r.Enable())
	require.NoError(t, r.Disable())
	assert.Equal(t, [][]string{
		{"rfkill", "unblock", "wifi"},
		{"rfkill", "block", "wifi"},
	}, commands)
}

func TestRFKillRadioErrors(t *testing.T) {
	runCommand = func(command ...string) ([]byte, error) {
		return []byte("Can't open RFKILL control device\n"), errors.New("exit status 1")
	}
	readNetworkState = func() (netmanagerclient.NetworkState, error) {
		return "", errors.New("no net manager")
	}
	defer func() {
		runCommand = defaultRunCommand
		readNetworkState = netmanagerclient.ReadState
	}()

	r := NewRFKillRadio("wifi", logging.NewLogger("error"))
	err := r.Enable()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't open RFKILL control device")

	// The network state is only informational.
	runCommand = func(command ...string) ([]byte, error) { return nil, nil }
	assert.NoError(t, r.Enable())
}
