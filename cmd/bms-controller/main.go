package main

import (
	"fmt"
	"os"

	"github.com/TheCacophonyProject/bms-controller/internal/bms"
	bmsstatus "github.com/TheCacophonyProject/bms-controller/internal/bms-status"
	"github.com/TheCacophonyProject/go-utils/logging"
)

var log *logging.Logger

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

var version = "<not set>"

func runMain() error {
	log = logging.NewLogger("info")
	if len(os.Args) < 2 {
		log.Info("Usage: tool <subcommand> [args]")
		return fmt.Errorf("no subcommand given")
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	var err error
	switch subcommand {
	case "bms":
		err = bms.Run(args, version)
	case "bms-status":
		err = bmsstatus.Run(args, version)
	default:
		err = fmt.Errorf("unknown subcommand: %s", subcommand)
	}

	return err
}
