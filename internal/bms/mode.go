package bms

import "fmt"

type Mode int

const (
	ModeStandby Mode = iota
	ModeDriving
	ModeCharging
)

func (m Mode) String() string {
	switch m {
	case ModeStandby:
		return "standby"
	case ModeDriving:
		return "driving"
	case ModeCharging:
		return "charging"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Inputs are the debounced vehicle signals.
type Inputs struct {
	Ignition   bool
	ChargePort bool
}

// NextMode returns the mode the inputs lead to from m. The charge port wins
// when both inputs are asserted in standby. A running mode only ends when its
// own input drops, the other input is ignored until then.
func NextMode(m Mode, in Inputs) Mode {
	switch m {
	case ModeStandby:
		if in.ChargePort {
			return ModeCharging
		}
		if in.Ignition {
			return ModeDriving
		}
	case ModeDriving:
		if !in.Ignition {
			return ModeStandby
		}
	case ModeCharging:
		if !in.ChargePort {
			return ModeStandby
		}
	}
	return m
}

// PowerActions are the side effects of entering and leaving standby.
type PowerActions interface {
	// Wake powers up the front ends with cleared balance masks.
	Wake()
	// Sleep clears the balance masks and powers down the front ends.
	Sleep()
	EnableRadio()
	DisableRadio()
}

// ModeMachine holds the mode and runs the side effects of each transition.
// Applying the same inputs again does nothing.
type ModeMachine struct {
	mode    Mode
	actions PowerActions
}

func NewModeMachine(actions PowerActions) *ModeMachine {
	return &ModeMachine{mode: ModeStandby, actions: actions}
}

func (mm *ModeMachine) Mode() Mode {
	return mm.mode
}

func (mm *ModeMachine) Apply(in Inputs) (from, to Mode, changed bool) {
	from = mm.mode
	to = NextMode(from, in)
	if to == from {
		return from, to, false
	}
	if from == ModeStandby {
		mm.actions.Wake()
		mm.actions.EnableRadio()
	} else {
		mm.actions.Sleep()
		mm.actions.DisableRadio()
	}
	mm.mode = to
	return from, to, true
}
