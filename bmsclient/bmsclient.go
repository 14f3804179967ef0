// Package bmsclient reads the battery management service over D-Bus.
package bmsclient

import (
	"fmt"

	"github.com/godbus/dbus"
)

const (
	DbusName = "org.cacophony.bms"
	DbusPath = "/org/cacophony/bms"

	// TelemetrySignal is sent every cycle while driving.
	TelemetrySignal = "Telemetry"
)

// Telemetry is the body of a telemetry signal.
type Telemetry struct {
	Mode    string
	Cells   [][]float64
	Packs   []float64
	Current float64
	Flags   byte
}

func call(method string, response interface{}, args ...interface{}) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	obj := conn.Object(DbusName, DbusPath)
	return obj.Call(DbusName+"."+method, 0, args...).Store(response)
}

func GetCellVoltage(pack, cell int) (float64, error) {
	var v float64
	err := call("GetCellVoltage", &v, pack, cell)
	return v, err
}

func GetCellVoltages(pack int) ([]float64, error) {
	var v []float64
	err := call("GetCellVoltages", &v, pack)
	return v, err
}

func GetPackVoltage(pack int) (float64, error) {
	var v float64
	err := call("GetPackVoltage", &v, pack)
	return v, err
}

func GetBalanceMask(pack int) (uint16, error) {
	var m uint16
	err := call("GetBalanceMask", &m, pack)
	return m, err
}

func GetStatusFlags() (byte, error) {
	var f byte
	err := call("GetStatusFlags", &f)
	return f, err
}

func GetPackCurrent() (float64, error) {
	var a float64
	err := call("GetPackCurrent", &a)
	return a, err
}

func GetMode() (string, error) {
	var m string
	err := call("GetMode", &m)
	return m, err
}

// WatchTelemetry sends every telemetry signal to the returned channel until
// done is closed.
func WatchTelemetry() (<-chan Telemetry, chan<- struct{}, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, nil, err
	}
	rule := fmt.Sprintf("type='signal',interface='%s',member='%s',path='%s'", DbusName, TelemetrySignal, DbusPath)
	if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return nil, nil, err
	}

	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)
	out := make(chan Telemetry, 10)
	done := make(chan struct{})
	go func() {
		defer close(out)
		defer conn.RemoveSignal(signals)
		for {
			select {
			case <-done:
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				t, err := ParseTelemetry(sig)
				if err != nil {
					continue
				}
				select {
				case out <- t:
				default:
				}
			}
		}
	}()
	return out, done, nil
}

// ParseTelemetry decodes a telemetry signal.
func ParseTelemetry(sig *dbus.Signal) (Telemetry, error) {
	if sig == nil || sig.Name != DbusName+"."+TelemetrySignal {
		return Telemetry{}, fmt.Errorf("not a telemetry signal")
	}
	if len(sig.Body) != 5 {
		return Telemetry{}, fmt.Errorf("telemetry signal has %d values, expected 5", len(sig.Body))
	}
	var t Telemetry
	var ok [5]bool
	t.Mode, ok[0] = sig.Body[0].(string)
	t.Cells, ok[1] = sig.Body[1].([][]float64)
	t.Packs, ok[2] = sig.Body[2].([]float64)
	t.Current, ok[3] = sig.Body[3].(float64)
	t.Flags, ok[4] = sig.Body[4].(byte)
	for i, good := range ok {
		if !good {
			return Telemetry{}, fmt.Errorf("telemetry value %d has type %T", i, sig.Body[i])
		}
	}
	return t, nil
}
