package gen2

import (
	"fmt"
	"strings"
)

// Bit strings are kept as '0'/'1' text: frames only need their length and
// the 0/1 mix (reader data-0 and data-1 symbols differ in duration).

const (
	crc5Preset = 0x09
	crc5Poly   = 0x09 // x^5 + x^3 + 1

	crc16Preset = 0xFFFF
	crc16Poly   = 0x1021 // x^16 + x^12 + x^5 + 1

	// CRC16Residue is the register value after running CRC-16 over a
	// message followed by its (inverted) CRC.
	CRC16Residue = 0x1D0F
)

// CRC5 computes the Gen2 CRC-5 over a bit string.
func CRC5(bits string) uint8 {
	reg := uint8(crc5Preset)
	for i := 0; i < len(bits); i++ {
		in := bits[i] - '0'
		msb := (reg >> 4) & 1
		reg = (reg << 1) & 0x1F
		if msb^in == 1 {
			reg ^= crc5Poly
		}
	}
	return reg
}

// CRC16 computes the Gen2 CRC-16 (ones-complemented) over a bit string.
func CRC16(bits string) uint16 {
	return ^crc16Register(bits)
}

func crc16Register(bits string) uint16 {
	reg := uint16(crc16Preset)
	for i := 0; i < len(bits); i++ {
		in := uint16(bits[i] - '0')
		msb := reg >> 15
		reg <<= 1
		if msb^in == 1 {
			reg ^= crc16Poly
		}
	}
	return reg
}

// CRC16Check reports whether a bit string ending in its CRC-16 is intact.
func CRC16Check(bits string) bool {
	return crc16Register(bits) == CRC16Residue
}

// BytesToBits renders bytes MSB first.
func BytesToBits(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data) * 8)
	for _, b := range data {
		fmt.Fprintf(&sb, "%08b", b)
	}
	return sb.String()
}

func uintBits(v uint64, width int) string {
	return fmt.Sprintf("%0*b", width, v)
}

// EncodeEBV encodes v as an extensible bit vector: 8-bit blocks whose
// leading bit flags a following block.
func EncodeEBV(v uint32) string {
	var blocks []string
	for {
		blocks = append([]string{uintBits(uint64(v&0x7F), 7)}, blocks...)
		v >>= 7
		if v == 0 {
			break
		}
	}
	var sb strings.Builder
	for i, blk := range blocks {
		if i == len(blocks)-1 {
			sb.WriteByte('0')
		} else {
			sb.WriteByte('1')
		}
		sb.WriteString(blk)
	}
	return sb.String()
}
