package bms

import (
	"github.com/TheCacophonyProject/bms-controller/afe"
)

// balance rebuilds every pack's balance mask from the cell averages and
// writes it to the chip. A cell is bled while its average is at or above
// UpperThreshold.
func (c *Controller) balance() {
	for _, p := range c.packs {
		var mask afe.BalanceMask
		for cell := 0; cell < NumCells; cell++ {
			if p.sampled(cell) && p.cellAverage[cell] >= UpperThreshold {
				mask = mask.Set(cell)
			}
		}
		if mask != p.mask {
			c.log.Infof("Pack %d balancing cells %v", p.ChipSelect, mask.Cells())
		}
		p.mask = mask
		afe.Command(c.afe, p.ChipSelect, p.mask, afe.ControlBalanceSet)
	}
}
