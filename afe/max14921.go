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

// Package afe talks to the MAX14921 cell monitor front end.
//
// Every command is a 24 bit full duplex SPI frame: the two balance mask bytes
// followed by a control byte. The same 24 bits come back from the chip with
// its comparator status, the low byte is non-zero when a cell crossed the
// chip's own threshold.
package afe

// Control byte bits.
const (
	ctrlECS  = 1 << 0 // Enable cell select.
	ctrlSMPL = 1 << 5 // SMPLB, hold the sampled cell voltages.
	ctrlLOPW = 1 << 7 // Low power mode.
)

const (
	// ControlSample puts the chip in the sample phase, the hold capacitors track the cells.
	ControlSample byte = 0x00
	// ControlHold freezes the hold capacitors so cells can be read out one at a time.
	ControlHold byte = ctrlSMPL
	// ControlPackVoltage routes the divided down total pack voltage to AOUT.
	ControlPackVoltage byte = 3 << 3
	// ControlLowPower powers down the analog section.
	ControlLowPower byte = ctrlLOPW
	// ControlBalanceSet writes a new balance mask without selecting a cell.
	ControlBalanceSet byte = 0x00
)

// MaxCells is the number of cell inputs on the chip.
const MaxCells = 16

// ControlSelectCell returns the control byte that routes the held voltage of
// the given cell to AOUT.
func ControlSelectCell(cell int) byte {
	return ctrlECS | byte(cell&0x0F)<<1 | ctrlSMPL
}

// Transport is the fixed width duplex transfer to the front end chips.
// Implementations never retry and never fail, a missing device returns
// whatever the bus clocked in.
type Transport interface {
	// Transfer3 asserts the chip select, clocks out b0, b1, b2 while clocking in
	// three bytes and returns them packed little endian in the low 24 bits.
	Transfer3(cs int, b0, b1, b2 byte) uint32
	// SetEnable drives the enable line of the given pack.
	SetEnable(pack int, on bool)
}

// Command sends one control byte to a chip along with its balance mask.
func Command(t Transport, cs int, mask BalanceMask, control byte) uint32 {
	b1, b2 := mask.Bytes()
	return t.Transfer3(cs, b1, b2, control)
}

// ThresholdFlagged reports whether a response carries comparator flags.
func ThresholdFlagged(response uint32) bool {
	return response&0xFF != 0
}
