package bms

import (
	"github.com/TheCacophonyProject/bms-controller/canstatus"
)

// The lower case versions expect the caller to hold the lock or to be the
// cycle goroutine. Cells that have never been sampled are ignored.

func (c *Controller) overVoltage() bool {
	for _, p := range c.packs {
		for cell := 0; cell < NumCells; cell++ {
			if p.sampled(cell) && p.cellAverage[cell] >= UpperThreshold {
				return true
			}
		}
	}
	return false
}

func (c *Controller) underVoltage() bool {
	for _, p := range c.packs {
		for cell := 0; cell < NumCells; cell++ {
			if p.sampled(cell) && p.cellAverage[cell] < LowerThreshold {
				return true
			}
		}
	}
	return false
}

func (c *Controller) balancingActive() bool {
	for _, p := range c.packs {
		if p.mask != 0 {
			return true
		}
	}
	return false
}

// overTemperature has no sensor behind it yet.
func (c *Controller) overTemperature() bool {
	return false
}

func (c *Controller) status() canstatus.Status {
	return canstatus.NewStatus(c.overVoltage(), c.underVoltage(), c.balancingActive(), c.overTemperature())
}

// OverVoltage reports whether any cell average is at or above UpperThreshold.
func (c *Controller) OverVoltage() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overVoltage()
}

// UnderVoltage reports whether any cell average is below LowerThreshold.
func (c *Controller) UnderVoltage() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.underVoltage()
}

// BalancingActive reports whether any pack has a balance switch closed.
func (c *Controller) BalancingActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balancingActive()
}

// OverTemperature is always false, there is no temperature sensor yet.
func (c *Controller) OverTemperature() bool {
	return c.overTemperature()
}

// Status is the current safety state as sent on the CAN bus.
func (c *Controller) Status() canstatus.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status()
}

// StatusFlags is byte 0 of Status.
func (c *Controller) StatusFlags() byte {
	return c.Status().Flags
}
