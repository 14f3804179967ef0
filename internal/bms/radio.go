package bms

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/TheCacophonyProject/go-utils/logging"
	"github.com/TheCacophonyProject/rpi-net-manager/netmanagerclient"
)

func defaultRunCommand(command ...string) ([]byte, error) {
	return exec.Command(command[0], command[1:]...).CombinedOutput()
}

// runCommand runs a command and returns its combined output, tests replace it.
var runCommand = defaultRunCommand

var readNetworkState = netmanagerclient.ReadState

// RFKillRadio blocks and unblocks a radio type with rfkill.
type RFKillRadio struct {
	Device string // rfkill type or index, e.g. "wifi".
	log    *logging.Logger
}

func NewRFKillRadio(device string, log *logging.Logger) *RFKillRadio {
	return &RFKillRadio{Device: device, log: log}
}

func (r *RFKillRadio) Enable() error {
	if err := r.rfkill("unblock"); err != nil {
		return err
	}
	state, err := readNetworkState()
	if err != nil {
		r.log.Errorf("Failed to read network state: %v", err)
		return nil
	}
	r.log.Infof("Radio enabled, network state '%s'", state)
	return nil
}

func (r *RFKillRadio) Disable() error {
	if err := r.rfkill("block"); err != nil {
		return err
	}
	r.log.Infof("Radio disabled")
	return nil
}

func (r *RFKillRadio) rfkill(action string) error {
	out, err := runCommand("rfkill", action, r.Device)
	if err != nil {
		return fmt.Errorf("rfkill %s %s failed: %w, output: %s", action, r.Device, err, strings.TrimSpace(string(out)))
	}
	return nil
}
