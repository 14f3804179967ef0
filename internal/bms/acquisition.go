package bms

import (
	"github.com/TheCacophonyProject/bms-controller/afe"
)

// sleepFn waits out the analog settling times, tests replace it.
var sleepFn = afe.Delay

// acquire reads every cell of the pack and the pack total through the front
// end, then updates the averages.
//
// The chip tracks all cells in the sample phase, the hold command freezes them
// and they are then routed to the ADC one at a time, highest cell first.
func (c *Controller) acquire(p *Pack) {
	c.command(p, afe.ControlSample)
	sleepFn(SampleSettle)
	c.command(p, afe.ControlHold)

	for cell := NumCells - 1; cell >= 0; cell-- {
		c.command(p, afe.ControlSelectCell(cell))
		sleepFn(CellSettle)
		code, err := p.adc.ReadCode()
		if err != nil {
			// A failed read counts as 0V so a dead ADC trips under voltage.
			c.log.Errorf("Failed to read cell %d of pack %d: %v", cell, p.ChipSelect, err)
			code = 0
		}
		p.cells[cell].Push(afe.CodeToVolts(code))
	}

	c.command(p, afe.ControlPackVoltage)
	sleepFn(CellSettle)
	code, err := p.adc.ReadCode()
	if err != nil {
		c.log.Errorf("Failed to read total voltage of pack %d: %v", p.ChipSelect, err)
		code = 0
	}
	p.total.Push(afe.CodeToVolts(code) * PackVoltageDivider)

	// Leave the chip in the sample phase for the next cycle.
	c.command(p, afe.ControlSample)

	p.updateCellAverages()
	p.updateTotalAverage()
}

// command sends a control byte with the pack's current mask and logs any
// comparator flags in the response.
func (c *Controller) command(p *Pack, control byte) {
	resp := afe.Command(c.afe, p.ChipSelect, p.mask, control)
	if afe.ThresholdFlagged(resp) {
		c.log.Debugf("Pack %d threshold flags 0x%02X after control 0x%02X", p.ChipSelect, resp&0xFF, control)
	}
}
