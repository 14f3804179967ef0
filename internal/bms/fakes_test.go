package bms

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/TheCacophonyProject/bms-controller/afe"
	"github.com/TheCacophonyProject/event-reporter/v3/eventclient"
	"github.com/TheCacophonyProject/go-utils/logging"
	"github.com/stretchr/testify/require"
)

var noSleepFn = func(d time.Duration) {}

type transfer struct {
	cs      int
	b0, b1  byte
	control byte
}

type fakeAFE struct {
	mu        sync.Mutex
	transfers []transfer
	enabled   map[int]bool
	response  uint32
}

func newFakeAFE() *fakeAFE {
	return &fakeAFE{enabled: map[int]bool{}}
}

func (f *fakeAFE) Transfer3(cs int, b0, b1, b2 byte) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, transfer{cs: cs, b0: b0, b1: b1, control: b2})
	return f.response
}

func (f *fakeAFE) SetEnable(pack int, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled[pack] = on
}

func (f *fakeAFE) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = nil
}

func (f *fakeAFE) transfersTo(cs int) []transfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []transfer{}
	for _, t := range f.transfers {
		if t.cs == cs {
			out = append(out, t)
		}
	}
	return out
}

// fakeADC returns the code for whichever cell the front end was last told to
// route to AOUT, so readings follow the acquisition order.
type fakeADC struct {
	afe   *fakeAFE
	cs    int
	cells [NumCells]float64
	total float64
	err   error
	reads int
}

func voltsToCode(v float64) int32 {
	return int32(math.Round(v / afe.ADCScale))
}

func (a *fakeADC) ReadCode() (int32, error) {
	a.reads++
	if a.err != nil {
		return 0, a.err
	}
	ts := a.afe.transfersTo(a.cs)
	if len(ts) == 0 {
		return 0, errors.New("nothing selected")
	}
	control := ts[len(ts)-1].control
	if control == afe.ControlPackVoltage {
		return voltsToCode(a.total / PackVoltageDivider), nil
	}
	for cell := 0; cell < NumCells; cell++ {
		if control == afe.ControlSelectCell(cell) {
			return voltsToCode(a.cells[cell]), nil
		}
	}
	return 0, errors.New("no cell selected")
}

func (a *fakeADC) setAll(v float64) {
	for i := range a.cells {
		a.cells[i] = v
	}
	a.total = v * NumCells
}

type fakeRadio struct {
	enables, disables int
}

func (r *fakeRadio) Enable() error {
	r.enables++
	return nil
}

func (r *fakeRadio) Disable() error {
	r.disables++
	return nil
}

type fakeSender struct {
	frames [][]byte
}

func (s *fakeSender) Send(id uint32, data []byte) error {
	s.frames = append(s.frames, append([]byte{}, data...))
	return nil
}

func (s *fakeSender) Close() error { return nil }

type fakeTelemetry struct {
	snapshots []Snapshot
}

func (t *fakeTelemetry) Publish(s Snapshot) error {
	t.snapshots = append(t.snapshots, s)
	return nil
}

type testRig struct {
	c         *Controller
	afe       *fakeAFE
	adcs      []*fakeADC
	shunt     *fakeShunt
	radio     *fakeRadio
	sender    *fakeSender
	telemetry *fakeTelemetry
	events    []eventclient.Event
}

type fakeShunt struct {
	code int32
}

func (s *fakeShunt) ReadCode() (int32, error) {
	return s.code, nil
}

// newTestRig builds a controller on fakes. Options can be adjusted before
// the controller is made.
func newTestRig(t *testing.T, adjust func(o *Options)) *testRig {
	sleepFn = noSleepFn
	r := &testRig{
		afe:       newFakeAFE(),
		shunt:     &fakeShunt{},
		radio:     &fakeRadio{},
		sender:    &fakeSender{},
		telemetry: &fakeTelemetry{},
	}
	packs := []*Pack{}
	for i := 0; i < NumPacks; i++ {
		adc := &fakeADC{afe: r.afe, cs: i}
		adc.setAll(3.8)
		r.adcs = append(r.adcs, adc)
		packs = append(packs, NewPack(i, i, adc))
	}
	o := Options{
		AFE:       r.afe,
		Packs:     packs,
		Shunt:     r.shunt,
		Sender:    r.sender,
		Radio:     r.radio,
		Telemetry: r.telemetry,
		ReportEvent: func(e eventclient.Event) error {
			r.events = append(r.events, e)
			return nil
		},
		DebounceSamples: 2,
		Log:             logging.NewLogger("error"),
	}
	if adjust != nil {
		adjust(&o)
	}
	c, err := NewController(o)
	require.NoError(t, err)
	r.c = c
	return r
}

// setCells loads one reading per cell straight into the filter.
func setCells(p *Pack, volts ...float64) {
	for i, v := range volts {
		p.cells[i].Push(v)
	}
	p.updateCellAverages()
}

func fill(v float64) []float64 {
	volts := make([]float64, NumCells)
	for i := range volts {
		volts[i] = v
	}
	return volts
}

func (r *testRig) eventTypes() []string {
	types := []string{}
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}
