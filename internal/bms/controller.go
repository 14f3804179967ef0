package bms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TheCacophonyProject/bms-controller/afe"
	"github.com/TheCacophonyProject/bms-controller/canstatus"
	"github.com/TheCacophonyProject/event-reporter/v3/eventclient"
	"github.com/TheCacophonyProject/go-utils/logging"
	"periph.io/x/conn/v3/gpio"
)

// Radio switches the wireless link used for telemetry.
type Radio interface {
	Enable() error
	Disable() error
}

// Telemetry receives a snapshot every cycle while driving.
type Telemetry interface {
	Publish(s Snapshot) error
}

// Snapshot is a copy of the readings at one point in time.
type Snapshot struct {
	Mode    Mode
	Cells   [NumPacks][NumCells]float64
	Packs   [NumPacks]float64
	Current float64
	Status  canstatus.Status
}

// Options wires a Controller to its hardware. AFE and Packs are required,
// everything else can be left out. Without a Sender nothing is sent on the
// CAN bus.
type Options struct {
	AFE    afe.Transport
	Packs  []*Pack
	Shunt  afe.ADC
	Sender canstatus.Sender

	Ignition        gpio.PinIn
	ChargePort      gpio.PinIn
	ChargeMailbox   *Mailbox
	DebounceSamples int

	Radio       Radio
	Telemetry   Telemetry
	ReportEvent func(eventclient.Event) error
	Log         *logging.Logger
}

// Controller runs the measure, protect, balance and report cycle.
//
// The cycle goroutine is the only writer. Everything it changes is updated
// under mu so the exported accessors can be called from other goroutines.
type Controller struct {
	mu sync.RWMutex

	afe     afe.Transport
	packs   [NumPacks]*Pack
	shunt   afe.ADC
	current float64
	encoder *canstatus.Encoder
	modes   *ModeMachine

	ignition         gpio.PinIn
	chargePort       gpio.PinIn
	chargeMailbox    *Mailbox
	ignitionDebounce *Debouncer
	chargeDebounce   *Debouncer

	radio       Radio
	telemetry   Telemetry
	reportEvent func(eventclient.Event) error
	lastStatus  canstatus.Status

	log *logging.Logger
}

func NewController(o Options) (*Controller, error) {
	if o.AFE == nil {
		return nil, errors.New("no AFE transport")
	}
	if len(o.Packs) != NumPacks {
		return nil, fmt.Errorf("have %d packs, expected %d", len(o.Packs), NumPacks)
	}
	c := &Controller{
		afe:              o.AFE,
		shunt:            o.Shunt,
		ignition:         o.Ignition,
		chargePort:       o.ChargePort,
		chargeMailbox:    o.ChargeMailbox,
		ignitionDebounce: NewDebouncer(o.DebounceSamples, false),
		chargeDebounce:   NewDebouncer(o.DebounceSamples, false),
		radio:            o.Radio,
		telemetry:        o.Telemetry,
		reportEvent:      o.ReportEvent,
		log:              o.Log,
	}
	for i, p := range o.Packs {
		if p == nil || p.adc == nil {
			return nil, fmt.Errorf("pack %d has no ADC", i)
		}
		c.packs[i] = p
	}
	if o.Sender != nil {
		c.encoder = canstatus.NewEncoder(o.Sender)
	}
	if c.reportEvent == nil {
		c.reportEvent = eventclient.AddEvent
	}
	if c.log == nil {
		c.log = logging.NewLogger("info")
	}
	c.modes = NewModeMachine(powerActions{c})
	return c, nil
}

// Run powers the front ends down, as the controller starts in standby, then
// runs a cycle every CyclePeriod until ctx is done. The front ends are
// powered down again on the way out.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.sleepPacks()
	c.mu.Unlock()

	ticker := time.NewTicker(CyclePeriod)
	defer ticker.Stop()
	for {
		c.RunCycle()
		select {
		case <-ctx.Done():
			c.log.Info("Stopping, powering down front ends")
			c.mu.Lock()
			c.sleepPacks()
			c.mu.Unlock()
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle runs one cycle to completion.
func (c *Controller) RunCycle() {
	if c.chargeMailbox != nil {
		if level, ok := c.chargeMailbox.Take(); ok {
			c.log.Debugf("Charge port edge, level %t", level)
			c.chargeDebounce.Force(level)
			c.transition()
		}
	}

	mode := c.modes.Mode()
	if mode != ModeStandby {
		for _, p := range c.packs {
			c.mu.Lock()
			c.acquire(p)
			c.mu.Unlock()
		}
		c.measureCurrent()
	}

	switch mode {
	case ModeCharging:
		c.mu.Lock()
		c.balance()
		status := c.status()
		c.mu.Unlock()
		c.transmit(status)
	case ModeDriving:
		c.publishTelemetry()
	}

	c.pollInputs()
	c.reportStatusChanges(c.Status())
}

func (c *Controller) transmit(status canstatus.Status) {
	if c.encoder == nil {
		return
	}
	if err := c.encoder.Transmit(status); err != nil {
		c.log.Error(err)
	}
}

func (c *Controller) pollInputs() {
	if c.ignition != nil {
		c.ignitionDebounce.Update(c.ignition.Read() == gpio.High)
	}
	if c.chargePort != nil {
		c.chargeDebounce.Update(c.chargePort.Read() == gpio.High)
	}
	c.transition()
}

func (c *Controller) transition() {
	in := Inputs{
		Ignition:   c.ignitionDebounce.Level(),
		ChargePort: c.chargeDebounce.Level(),
	}
	c.mu.Lock()
	from, to, changed := c.modes.Apply(in)
	c.mu.Unlock()
	if changed {
		c.log.Infof("Mode changed from %s to %s", from, to)
		c.reportModeChange(from, to)
	}
}

func (c *Controller) publishTelemetry() {
	if c.telemetry == nil {
		return
	}
	if err := c.telemetry.Publish(c.Snapshot()); err != nil {
		c.log.Errorf("Failed to publish telemetry: %v", err)
	}
}

// wakePacks powers up every front end in the sample phase with no balancing.
func (c *Controller) wakePacks() {
	for _, p := range c.packs {
		c.afe.SetEnable(p.EnableLine, true)
		p.mask = 0
		p.resetSamples()
		afe.Command(c.afe, p.ChipSelect, p.mask, afe.ControlSample)
	}
}

// sleepPacks stops balancing and powers down every front end.
func (c *Controller) sleepPacks() {
	for _, p := range c.packs {
		p.mask = 0
		afe.Command(c.afe, p.ChipSelect, p.mask, afe.ControlLowPower)
		c.afe.SetEnable(p.EnableLine, false)
	}
}

// powerActions runs with the controller's write lock held by Apply's caller.
type powerActions struct {
	c *Controller
}

func (a powerActions) Wake() {
	a.c.log.Info("Waking front ends")
	a.c.wakePacks()
}

func (a powerActions) Sleep() {
	a.c.log.Info("Powering down front ends")
	a.c.sleepPacks()
}

func (a powerActions) EnableRadio() {
	if a.c.radio == nil {
		return
	}
	if err := a.c.radio.Enable(); err != nil {
		a.c.log.Errorf("Failed to enable radio: %v", err)
	}
}

func (a powerActions) DisableRadio() {
	if a.c.radio == nil {
		return
	}
	if err := a.c.radio.Disable(); err != nil {
		a.c.log.Errorf("Failed to disable radio: %v", err)
	}
}

func (c *Controller) checkCell(pack, cell int) error {
	if err := c.checkPack(pack); err != nil {
		return err
	}
	if cell < 0 || cell >= NumCells {
		return fmt.Errorf("no cell %d, have %d cells", cell, NumCells)
	}
	return nil
}

func (c *Controller) checkPack(pack int) error {
	if pack < 0 || pack >= NumPacks {
		return fmt.Errorf("no pack %d, have %d packs", pack, NumPacks)
	}
	return nil
}

// CellVoltage is the filtered voltage of one cell.
func (c *Controller) CellVoltage(pack, cell int) (float64, error) {
	if err := c.checkCell(pack, cell); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.packs[pack].cellAverage[cell], nil
}

// PackVoltage is the filtered total voltage of one pack.
func (c *Controller) PackVoltage(pack int) (float64, error) {
	if err := c.checkPack(pack); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.packs[pack].totalAverage, nil
}

// BalanceMask is the mask last written to the pack's front end.
func (c *Controller) BalanceMask(pack int) (afe.BalanceMask, error) {
	if err := c.checkPack(pack); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.packs[pack].mask, nil
}

// PackCurrent is the last shunt reading in amps.
func (c *Controller) PackCurrent() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modes.Mode()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Snapshot{
		Mode:    c.modes.Mode(),
		Current: c.current,
		Status:  c.status(),
	}
	for i, p := range c.packs {
		s.Cells[i] = p.cellAverage
		s.Packs[i] = p.totalAverage
	}
	return s
}
