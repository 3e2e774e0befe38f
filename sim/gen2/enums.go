// Package gen2 holds the EPC Class-1 Gen-2 air-interface vocabulary used by
// the RFID model: link parameters, reader commands, tag replies, frames and
// their on-air durations.
package gen2

import (
	"fmt"
	"strings"
)

// DivideRatio is the DR field of a Query; BLF = DR / TRcal.
type DivideRatio int

const (
	DR8   DivideRatio = iota // DR = 8
	DR643                    // DR = 64/3
)

// Ratio returns the numeric divide ratio.
func (dr DivideRatio) Ratio() float64 {
	if dr == DR643 {
		return 64.0 / 3.0
	}
	return 8.0
}

func (dr DivideRatio) code() string {
	if dr == DR643 {
		return "1"
	}
	return "0"
}

func (dr DivideRatio) String() string {
	if dr == DR643 {
		return "64/3"
	}
	return "8"
}

func (dr DivideRatio) MarshalText() ([]byte, error) { return []byte(dr.String()), nil }

func (dr *DivideRatio) UnmarshalText(text []byte) error {
	switch strings.TrimSpace(string(text)) {
	case "8", "DR8", "DR_8":
		*dr = DR8
	case "64/3", "DR643", "DR_643":
		*dr = DR643
	default:
		return fmt.Errorf("unknown divide ratio %q (valid: 8, 64/3)", text)
	}
	return nil
}

// TagEncoding is the M field of a Query: FM0 or Miller subcarrier with
// 2, 4 or 8 cycles per symbol. The numeric value equals M.
type TagEncoding int

const (
	FM0 TagEncoding = 1
	M2  TagEncoding = 2
	M4  TagEncoding = 4
	M8  TagEncoding = 8
)

// ParseTagEncoding accepts both the symbolic and the numeric spelling.
func ParseTagEncoding(s string) (TagEncoding, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "FM0":
		return FM0, nil
	case "2", "M2":
		return M2, nil
	case "4", "M4":
		return M4, nil
	case "8", "M8":
		return M8, nil
	}
	return 0, fmt.Errorf("unknown tag encoding %q (valid: FM0, M2, M4, M8)", s)
}

// SymbolsPerBit returns M, the number of subcarrier cycles per data symbol.
func (e TagEncoding) SymbolsPerBit() int {
	return int(e)
}

// IsMiller reports whether the encoding uses a Miller subcarrier.
func (e TagEncoding) IsMiller() bool {
	return e != FM0
}

func (e TagEncoding) code() string {
	switch e {
	case M2:
		return "01"
	case M4:
		return "10"
	case M8:
		return "11"
	}
	return "00"
}

func (e TagEncoding) String() string {
	if e == FM0 {
		return "FM0"
	}
	return fmt.Sprintf("M%d", int(e))
}

func (e TagEncoding) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *TagEncoding) UnmarshalText(text []byte) error {
	v, err := ParseTagEncoding(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Session selects which of the four inventoried flags a round uses.
type Session int

const (
	S0 Session = iota
	S1
	S2
	S3
)

func (s Session) code() string {
	return fmt.Sprintf("%02b", int(s)&3)
}

func (s Session) String() string {
	return fmt.Sprintf("S%d", int(s))
}

func (s Session) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Session) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "S0", "0":
		*s = S0
	case "S1", "1":
		*s = S1
	case "S2", "2":
		*s = S2
	case "S3", "3":
		*s = S3
	default:
		return fmt.Errorf("unknown session %q (valid: S0..S3)", text)
	}
	return nil
}

// InventoryFlag is the value of a session's inventoried flag, and the
// Target field of a Query.
type InventoryFlag int

const (
	FlagA InventoryFlag = iota
	FlagB
)

// Invert returns the opposite flag.
func (f InventoryFlag) Invert() InventoryFlag {
	if f == FlagA {
		return FlagB
	}
	return FlagA
}

func (f InventoryFlag) code() string {
	if f == FlagB {
		return "1"
	}
	return "0"
}

func (f InventoryFlag) String() string {
	if f == FlagB {
		return "B"
	}
	return "A"
}

func (f InventoryFlag) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *InventoryFlag) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "A":
		*f = FlagA
	case "B":
		*f = FlagB
	default:
		return fmt.Errorf("unknown inventory flag %q (valid: A, B)", text)
	}
	return nil
}

// SelFlag is the Sel field of a Query. The model does not simulate Select,
// so tags ignore it.
type SelFlag int

const (
	SelAll SelFlag = iota
	SelNotSL
	SelSL
)

func (s SelFlag) code() string {
	switch s {
	case SelNotSL:
		return "10"
	case SelSL:
		return "11"
	}
	return "00"
}

func (s SelFlag) String() string {
	switch s {
	case SelNotSL:
		return "~SL"
	case SelSL:
		return "SL"
	}
	return "ALL"
}

func (s SelFlag) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SelFlag) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "ALL":
		*s = SelAll
	case "~SL", "NOT_SL":
		*s = SelNotSL
	case "SL":
		*s = SelSL
	default:
		return fmt.Errorf("unknown sel flag %q (valid: ALL, ~SL, SL)", text)
	}
	return nil
}

// MemoryBank addresses one of the four tag memory banks.
type MemoryBank int

const (
	BankReserved MemoryBank = iota
	BankEPC
	BankTID
	BankUser
)

func (b MemoryBank) code() string {
	return fmt.Sprintf("%02b", int(b)&3)
}

func (b MemoryBank) String() string {
	switch b {
	case BankReserved:
		return "Reserved"
	case BankEPC:
		return "EPC"
	case BankTID:
		return "TID"
	}
	return "User"
}

// UpDn is the Q update carried by QueryAdjust.
type UpDn int

const (
	UpDnDecrement UpDn = -1
	UpDnNone      UpDn = 0
	UpDnIncrement UpDn = 1
)

func (u UpDn) code() string {
	switch u {
	case UpDnIncrement:
		return "110"
	case UpDnDecrement:
		return "011"
	}
	return "000"
}
