package bmsstatus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/TheCacophonyProject/bms-controller/afe"
	"github.com/TheCacophonyProject/bms-controller/bmsclient"
	"github.com/TheCacophonyProject/bms-controller/canstatus"
	"github.com/TheCacophonyProject/go-utils/logging"
	"github.com/alexflint/go-arg"
)

var (
	version = "<not set>"
	log     = logging.NewLogger("info")
)

type Args struct {
	Watch *subcommand `arg:"subcommand:watch" help:"Print the telemetry signals sent while driving."`
	Packs int         `arg:"--packs" default:"2" help:"Number of packs to read."`
	logging.LogArgs
}

type subcommand struct {
}

var defaultArgs = Args{}

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

	if args.Watch != nil {
		return watch(os.Stdout)
	}
	return printStatus(os.Stdout, args.Packs)
}

// client is the part of bmsclient used here.
type client struct {
	mode         func() (string, error)
	statusFlags  func() (byte, error)
	packCurrent  func() (float64, error)
	packVoltage  func(pack int) (float64, error)
	cellVoltages func(pack int) ([]float64, error)
	balanceMask  func(pack int) (uint16, error)
}

var bms = client{
	mode:         bmsclient.GetMode,
	statusFlags:  bmsclient.GetStatusFlags,
	packCurrent:  bmsclient.GetPackCurrent,
	packVoltage:  bmsclient.GetPackVoltage,
	cellVoltages: bmsclient.GetCellVoltages,
	balanceMask:  bmsclient.GetBalanceMask,
}

func printStatus(w io.Writer, packs int) error {
	mode, err := bms.mode()
	if err != nil {
		return fmt.Errorf("failed to read mode: %w", err)
	}
	flags, err := bms.statusFlags()
	if err != nil {
		return fmt.Errorf("failed to read status flags: %w", err)
	}
	current, err := bms.packCurrent()
	if err != nil {
		return fmt.Errorf("failed to read pack current: %w", err)
	}
	fmt.Fprintf(w, "Mode: %s\n", mode)
	fmt.Fprintf(w, "Flags: %s\n", describeFlags(flags))
	fmt.Fprintf(w, "Current: %.2fA\n", current)

	for pack := 0; pack < packs; pack++ {
		total, err := bms.packVoltage(pack)
		if err != nil {
			return fmt.Errorf("failed to read pack %d voltage: %w", pack, err)
		}
		cells, err := bms.cellVoltages(pack)
		if err != nil {
			return fmt.Errorf("failed to read pack %d cells: %w", pack, err)
		}
		mask, err := bms.balanceMask(pack)
		if err != nil {
			return fmt.Errorf("failed to read pack %d balance mask: %w", pack, err)
		}
		balancing := afe.BalanceMask(mask)
		fmt.Fprintf(w, "Pack %d: %.3fV\n", pack, total)
		for cell, v := range cells {
			marker := ""
			if balancing.IsSet(cell) {
				marker = " (balancing)"
			}
			fmt.Fprintf(w, "  Cell %2d: %.3fV%s\n", cell, v, marker)
		}
	}
	return nil
}

func describeFlags(flags byte) string {
	s := canstatus.Status{Flags: flags}
	names := []string{}
	if s.OverVoltage() {
		names = append(names, "over voltage")
	}
	if s.UnderVoltage() {
		names = append(names, "under voltage")
	}
	if s.Balancing() {
		names = append(names, "balancing")
	}
	if len(names) == 0 {
		return fmt.Sprintf("0x%02X", flags)
	}
	return fmt.Sprintf("0x%02X (%s)", flags, strings.Join(names, ", "))
}

func watch(w io.Writer) error {
	telemetry, done, err := bmsclient.WatchTelemetry()
	if err != nil {
		return err
	}
	defer close(done)

	log.Info("Waiting for telemetry")
	for t := range telemetry {
		fmt.Fprintf(w, "%s %s, %.2fA, packs %v\n", t.Mode, describeFlags(t.Flags), t.Current, t.Packs)
	}
	return nil
}
