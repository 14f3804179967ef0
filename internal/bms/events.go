package bms

import (
	"fmt"
	"time"

	"github.com/TheCacophonyProject/bms-controller/canstatus"
	"github.com/TheCacophonyProject/event-reporter/v3/eventclient"
)

const (
	modeChangeEvent   = "bmsModeChange"
	overVoltageEvent  = "bmsOverVoltage"
	underVoltageEvent = "bmsUnderVoltage"
)

func (c *Controller) addEvent(eventType string, details map[string]interface{}) {
	err := c.reportEvent(eventclient.Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Details:   details,
	})
	if err != nil {
		c.log.Errorf("Error adding event '%s': %v", eventType, err)
	}
}

func (c *Controller) reportModeChange(from, to Mode) {
	c.addEvent(modeChangeEvent, map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	})
}

// reportStatusChanges makes an event when a voltage fault flag goes from
// clear to set. Balancing is routine and isn't reported.
func (c *Controller) reportStatusChanges(status canstatus.Status) {
	last := c.lastStatus
	c.lastStatus = status
	if status.OverVoltage() && !last.OverVoltage() {
		c.log.Warn("Cell over voltage")
		c.addEvent(overVoltageEvent, c.faultDetails())
	}
	if status.UnderVoltage() && !last.UnderVoltage() {
		c.log.Warn("Cell under voltage")
		c.addEvent(underVoltageEvent, c.faultDetails())
	}
}

// faultDetails lists the lowest and highest cell of every pack, leaving out
// cells with no samples yet.
func (c *Controller) faultDetails() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	details := map[string]interface{}{
		"mode": c.modes.Mode().String(),
	}
	for i, p := range c.packs {
		details[fmt.Sprintf("pack %d total", i)] = p.totalAverage
		found := false
		var lowest, highest float64
		for cell := 0; cell < NumCells; cell++ {
			if !p.sampled(cell) {
				continue
			}
			v := p.cellAverage[cell]
			if !found || v < lowest {
				lowest = v
			}
			if !found || v > highest {
				highest = v
			}
			found = true
		}
		if found {
			details[fmt.Sprintf("pack %d lowest cell", i)] = lowest
			details[fmt.Sprintf("pack %d highest cell", i)] = highest
		}
	}
	return details
}
