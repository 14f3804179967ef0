/*
bms-controller - Battery management for the EV conversion
Copyright (C) 2024, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package bms

import (
	"errors"

	"github.com/TheCacophonyProject/bms-controller/bmsclient"
	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"
)

const (
	dbusName = bmsclient.DbusName
	dbusPath = bmsclient.DbusPath
)

type service struct {
	bms *Controller
}

// startService exports the controller's readings on the system bus and
// returns the connection so telemetry signals can be sent on it.
func startService(c *Controller) (*dbus.Conn, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, errors.New("name already taken")
	}

	s := &service{bms: c}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")
	return conn, nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
			Signals: []introspect.Signal{{
				Name: bmsclient.TelemetrySignal,
				Args: []introspect.Arg{
					{Name: "mode", Type: "s"},
					{Name: "cells", Type: "aad"},
					{Name: "packs", Type: "ad"},
					{Name: "current", Type: "d"},
					{Name: "flags", Type: "y"},
				},
			}},
		}},
	}
	return introspect.NewIntrospectable(node)
}

/*
dbus-send --system --print-reply --dest=org.cacophony.bms /org/cacophony/bms org.cacophony.bms.GetCellVoltage \
int32:0 \
int32:9
*/

// GetCellVoltage returns the filtered voltage of a cell.
func (s service) GetCellVoltage(pack, cell int) (float64, *dbus.Error) {
	v, err := s.bms.CellVoltage(pack, cell)
	if err != nil {
		return 0, makeDbusError(".GetCellVoltage", err)
	}
	return v, nil
}

// GetCellVoltages returns the filtered voltage of every cell in a pack.
func (s service) GetCellVoltages(pack int) ([]float64, *dbus.Error) {
	if err := s.bms.checkPack(pack); err != nil {
		return nil, makeDbusError(".GetCellVoltages", err)
	}
	snap := s.bms.Snapshot()
	return snap.Cells[pack][:], nil
}

// GetPackVoltage returns the filtered total voltage of a pack.
func (s service) GetPackVoltage(pack int) (float64, *dbus.Error) {
	v, err := s.bms.PackVoltage(pack)
	if err != nil {
		return 0, makeDbusError(".GetPackVoltage", err)
	}
	return v, nil
}

// GetBalanceMask returns the balance mask of a pack, bit layout as sent to the AFE.
func (s service) GetBalanceMask(pack int) (uint16, *dbus.Error) {
	m, err := s.bms.BalanceMask(pack)
	if err != nil {
		return 0, makeDbusError(".GetBalanceMask", err)
	}
	return uint16(m), nil
}

// GetStatusFlags returns byte 0 of the CAN status message.
func (s service) GetStatusFlags() (byte, *dbus.Error) {
	return s.bms.StatusFlags(), nil
}

// GetPackCurrent returns the shunt current in amps.
func (s service) GetPackCurrent() (float64, *dbus.Error) {
	return s.bms.PackCurrent(), nil
}

func (s service) GetMode() (string, *dbus.Error) {
	return s.bms.Mode().String(), nil
}

func makeDbusError(name string, err error) *dbus.Error {
	return &dbus.Error{
		Name: dbusName + name,
		Body: []interface{}{err.Error()},
	}
}

// signalEmitter is the part of *dbus.Conn used to send signals.
type signalEmitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// dbusTelemetry sends each snapshot as a signal.
type dbusTelemetry struct {
	conn signalEmitter
}

func (t dbusTelemetry) Publish(s Snapshot) error {
	cells := make([][]float64, len(s.Cells))
	for i := range s.Cells {
		cells[i] = append([]float64{}, s.Cells[i][:]...)
	}
	return t.conn.Emit(
		dbusPath,
		dbusName+"."+bmsclient.TelemetrySignal,
		s.Mode.String(),
		cells,
		s.Packs[:],
		s.Current,
		s.Status.Flags,
	)
}
