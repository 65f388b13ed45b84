package anvil

import "errors"

var ErrOddNibbleLength = errors.New("anvil: nibble array length must be even")

// Unpack expands a nibble array into one byte per cell. The low four bits of
// each packed byte hold the even cell, the high four bits the odd cell. The
// input is the row-major flattening of a grid, so an even last axis never
// splits a pair across rows.
func Unpack(packed []byte) []byte {
	out := make([]byte, len(packed)*2)
	for i, b := range packed {
		out[2*i] = b & 0xf
		out[2*i+1] = b >> 4
	}
	return out
}

// Pack is the inverse of Unpack. Cells are masked to four bits.
func Pack(unpacked []byte) ([]byte, error) {
	if len(unpacked)%2 != 0 {
		return nil, ErrOddNibbleLength
	}
	out := make([]byte, len(unpacked)/2)
	for i := range out {
		lo := unpacked[2*i] & 0xf
		hi := unpacked[2*i+1] & 0xf
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func packCells(cells *[SectionVolume]uint8) []byte {
	out, _ := Pack(cells[:])
	return out
}

func unpackInto(dst *[SectionVolume]uint8, packed []byte) {
	copy(dst[:], Unpack(packed))
}
