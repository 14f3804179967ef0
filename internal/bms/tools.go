package bms

import (
	"fmt"
	"strings"
	"time"

	"github.com/TheCacophonyProject/bms-controller/afe"
	"github.com/TheCacophonyProject/bms-controller/canstatus"
)

func readCells(conf *Config, args *ReadCells) error {
	hw, err := openHardware(conf)
	if err != nil {
		return err
	}
	defer hw.Close()

	c, err := NewController(Options{AFE: hw.transport, Packs: hw.packs, Shunt: hw.shunt, Log: log})
	if err != nil {
		return err
	}
	s := c.measure(args.Samples)
	fmt.Print(formatSnapshot(s))
	return nil
}

// measure wakes the front ends, takes the given number of readings and
// powers them down again.
func (c *Controller) measure(samples int) Snapshot {
	c.mu.Lock()
	c.wakePacks()
	for i := 0; i < samples; i++ {
		for _, p := range c.packs {
			c.acquire(p)
		}
	}
	c.mu.Unlock()
	c.measureCurrent()

	s := c.Snapshot()
	c.mu.Lock()
	c.sleepPacks()
	c.mu.Unlock()
	return s
}

func formatSnapshot(s Snapshot) string {
	var b strings.Builder
	for i := range s.Cells {
		fmt.Fprintf(&b, "Pack %d: %.3fV\n", i, s.Packs[i])
		for cell, v := range s.Cells[i] {
			fmt.Fprintf(&b, "  Cell %2d: %.3fV\n", cell, v)
		}
	}
	fmt.Fprintf(&b, "Current: %.2fA\n", s.Current)
	fmt.Fprintf(&b, "Status: %s\n", s.Status)
	return b.String()
}

func balanceCells(conf *Config, args *Balance) error {
	if args.Pack < 0 || args.Pack >= NumPacks {
		return fmt.Errorf("no pack %d", args.Pack)
	}
	var mask afe.BalanceMask
	for _, cell := range args.Cells {
		if cell < 0 || cell >= NumCells {
			return fmt.Errorf("no cell %d", cell)
		}
		mask = mask.Set(cell)
	}

	hw, err := openHardware(conf)
	if err != nil {
		return err
	}
	defer hw.Close()
	p := hw.packs[args.Pack]

	hw.transport.SetEnable(p.EnableLine, true)
	log.Infof("Bleeding pack %d cells %v (mask %s) for %ds", args.Pack, mask.Cells(), mask, args.Seconds)
	afe.Command(hw.transport, p.ChipSelect, mask, afe.ControlBalanceSet)
	time.Sleep(time.Duration(args.Seconds) * time.Second)

	afe.Command(hw.transport, p.ChipSelect, 0, afe.ControlLowPower)
	hw.transport.SetEnable(p.EnableLine, false)
	log.Info("Balancing stopped")
	return nil
}

func sendStatus(conf *Config, args *SendStatus) error {
	sender, err := openCAN(conf)
	if err != nil {
		return err
	}
	defer sender.Close()

	status := canstatus.NewStatus(args.OverVoltage, args.UnderVoltage, args.Balancing, args.OverTemperature)
	log.Infof("Sending %s", status)
	return canstatus.NewEncoder(sender).Transmit(status)
}
