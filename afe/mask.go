package afe

import "fmt"

// BalanceMask holds one discharge enable bit per cell.
//
// The mask is sent as two bytes. Cells 0-7 go in the first byte and cells
// 8-15 in the second, with cell 0 (or 8) in bit 7 of its byte.
type BalanceMask uint16

// MaskBit returns which byte (0 or 1) and which bit within it carries the cell.
func MaskBit(cell int) (byteIndex, bit int) {
	if cell < 8 {
		byteIndex = 0
	} else {
		byteIndex = 1
	}
	return byteIndex, 7 - cell%8
}

func (m BalanceMask) position(cell int) uint {
	byteIndex, bit := MaskBit(cell)
	return uint(byteIndex*8 + bit)
}

// Set returns the mask with the cell's bit set.
func (m BalanceMask) Set(cell int) BalanceMask {
	return m | 1<<m.position(cell)
}

// Clear returns the mask with the cell's bit cleared.
func (m BalanceMask) Clear(cell int) BalanceMask {
	return m &^ (1 << m.position(cell))
}

// IsSet reports whether the cell's bit is set.
func (m BalanceMask) IsSet(cell int) bool {
	return m&(1<<m.position(cell)) != 0
}

// Bytes returns the two bytes in transfer order.
func (m BalanceMask) Bytes() (byte1, byte2 byte) {
	return byte(m), byte(m >> 8)
}

// MaskFromBytes is the inverse of Bytes.
func MaskFromBytes(byte1, byte2 byte) BalanceMask {
	return BalanceMask(byte1) | BalanceMask(byte2)<<8
}

// Cells returns the indexes of the cells with their bit set, lowest first.
func (m BalanceMask) Cells() []int {
	cells := []int{}
	for cell := 0; cell < MaxCells; cell++ {
		if m.IsSet(cell) {
			cells = append(cells, cell)
		}
	}
	return cells
}

func (m BalanceMask) String() string {
	b1, b2 := m.Bytes()
	return fmt.Sprintf("%08b %08b", b1, b2)
}
