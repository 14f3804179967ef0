/*
bms-controller - Battery management for the EV conversion
Copyright (C) 2024, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package bms

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goconfig "github.com/TheCacophonyProject/go-config"
	"github.com/TheCacophonyProject/go-utils/logging"
	"github.com/alexflint/go-arg"
)

var (
	version = "<not set>"
	log     = logging.NewLogger("info")
)

type Args struct {
	Service    *subcommand `arg:"subcommand:service"     help:"Run the battery management cycle and the dbus service."`
	ReadCells  *ReadCells  `arg:"subcommand:read-cells"  help:"Wake the front ends, read every cell and power them down again."`
	Balance    *Balance    `arg:"subcommand:balance"     help:"Bleed the given cells of a pack for a while."`
	SendStatus *SendStatus `arg:"subcommand:send-status" help:"Send one status message on the CAN bus."`
	ConfigDir  string      `arg:"-c,--config" help:"configuration folder"`
	logging.LogArgs
}

type subcommand struct {
}

type ReadCells struct {
	Samples int `arg:"--samples" default:"1" help:"Readings to average per cell."`
}

type Balance struct {
	Pack    int   `arg:"required" help:"The pack, 0 or 1."`
	Cells   []int `arg:"required,positional" help:"The cells to bleed."`
	Seconds int   `arg:"--seconds" default:"10" help:"How long to bleed for."`
}

type SendStatus struct {
	OverVoltage     bool `arg:"--over-voltage"`
	UnderVoltage    bool `arg:"--under-voltage"`
	Balancing       bool `arg:"--balancing"`
	OverTemperature bool `arg:"--over-temperature"`
}

var defaultArgs = Args{
	ConfigDir: goconfig.DefaultConfigDir,
}

func procArgs(input []string) (Args, error) {
	args := defaultArgs

	parser, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Println(version)
		os.Exit(0)
	}
	return args, err
}

func Run(inputArgs []string, ver string) error {
	version = ver
	args, err := procArgs(inputArgs)
	if err != nil {
		return fmt.Errorf("failed to parse args: %v", err)
	}
	log = logging.NewLogger(args.LogLevel)

	log.Infof("Running version: %s", version)

	conf, err := ParseConfig(args.ConfigDir)
	if err != nil {
		return err
	}
	log.Debugf("Config: %+v", conf)

	switch {
	case args.ReadCells != nil:
		return readCells(conf, args.ReadCells)
	case args.Balance != nil:
		return balanceCells(conf, args.Balance)
	case args.SendStatus != nil:
		return sendStatus(conf, args.SendStatus)
	default:
		return runService(conf, args.ConfigDir)
	}
}

func runService(conf *Config, configDir string) error {
	hw, err := openHardware(conf)
	if err != nil {
		return err
	}
	defer hw.Close()

	sender, err := openCAN(conf)
	if err != nil {
		return err
	}
	defer sender.Close()

	var radio Radio
	if conf.RadioDevice != "" {
		radio = NewRFKillRadio(conf.RadioDevice, log)
	}

	mailbox := NewMailbox()
	c, err := NewController(Options{
		AFE:             hw.transport,
		Packs:           hw.packs,
		Shunt:           hw.shunt,
		Sender:          sender,
		Ignition:        hw.ignition,
		ChargePort:      hw.chargePort,
		ChargeMailbox:   mailbox,
		DebounceSamples: conf.DebounceSamples,
		Radio:           radio,
		Log:             log,
	})
	if err != nil {
		return err
	}

	conn, err := startService(c)
	if err != nil {
		return err
	}
	c.telemetry = dbusTelemetry{conn: conn}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go WatchEdges(ctx, hw.chargePort, mailbox)
	go func() {
		if err := checkConfigChanges(conf, configDir); err != nil {
			log.Error("Error watching config: ", err)
		}
	}()

	return c.Run(ctx)
}
