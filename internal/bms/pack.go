package bms

import (
	"time"

	"github.com/TheCacophonyProject/bms-controller/afe"
)

const (
	NumPacks       = 2
	NumCells       = 15
	SampleCapacity = 20

	// UpperThreshold is the cell voltage at which a cell is over voltage and
	// gets balanced.
	UpperThreshold = 4.15
	// LowerThreshold is the cell voltage below which a cell is under voltage.
	LowerThreshold = 3.4

	SampleSettle = 60 * time.Millisecond
	CellSettle   = 50 * time.Microsecond
	CyclePeriod  = 250 * time.Millisecond

	// PackVoltageDivider is the ratio of the AFE pack voltage output.
	PackVoltageDivider = 16
)

// Pack is one battery pack behind its own front end chip.
type Pack struct {
	ChipSelect int
	EnableLine int

	adc          afe.ADC
	cells        [NumCells]RingBuffer
	cellAverage  [NumCells]float64
	total        RingBuffer
	totalAverage float64
	mask         afe.BalanceMask
}

func NewPack(chipSelect, enableLine int, adc afe.ADC) *Pack {
	return &Pack{
		ChipSelect: chipSelect,
		EnableLine: enableLine,
		adc:        adc,
	}
}

func (p *Pack) updateCellAverages() {
	for i := range p.cells {
		p.cellAverage[i] = p.cells[i].Average()
	}
}

func (p *Pack) updateTotalAverage() {
	p.totalAverage = p.total.Average()
}

// sampled reports whether the cell has at least one reading.
func (p *Pack) sampled(cell int) bool {
	return p.cells[cell].Len() > 0
}

// resetSamples drops every reading so a woken pack doesn't report voltages
// from before it was powered down.
func (p *Pack) resetSamples() {
	for i := range p.cells {
		p.cells[i].Reset()
		p.cellAverage[i] = 0
	}
	p.total.Reset()
	p.totalAverage = 0
}
