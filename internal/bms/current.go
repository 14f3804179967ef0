package bms

import (
	"github.com/TheCacophonyProject/bms-controller/afe"
)

const (
	// ShuntResistance of the pack current shunt in ohms.
	ShuntResistance = 150e-6
	// ShuntGain of the current sense amplifier between the shunt and the ADC.
	ShuntGain = 80
)

// ShuntAmps converts the amplified shunt voltage to amps.
func ShuntAmps(volts float64) float64 {
	return volts / ShuntGain / ShuntResistance
}

func (c *Controller) measureCurrent() {
	if c.shunt == nil {
		return
	}
	code, err := c.shunt.ReadCode()
	if err != nil {
		c.log.Errorf("Failed to read pack current: %v", err)
		return
	}
	amps := ShuntAmps(afe.CodeToVolts(code))
	c.mu.Lock()
	c.current = amps
	c.mu.Unlock()
}
