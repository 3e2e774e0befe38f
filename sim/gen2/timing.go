package gen2

import "math"

// LinkTiming holds the reader-to-tag and tag-to-reader link parameters that
// fix every on-air duration. All durations are in seconds.
type LinkTiming struct {
	Tari  float64
	RTcal float64
	TRcal float64
	Delim float64
	DR    DivideRatio
	M     TagEncoding
	TRext bool
}

// NewLinkTiming derives RTcal and TRcal from Tari with the given multipliers
// (RTcal = rtcalMul·Tari, TRcal = trcalMul·RTcal).
func NewLinkTiming(tari, rtcalMul, trcalMul, delim float64, dr DivideRatio, m TagEncoding, trext bool) LinkTiming {
	rtcal := tari * rtcalMul
	return LinkTiming{
		Tari:  tari,
		RTcal: rtcal,
		TRcal: rtcal * trcalMul,
		Delim: delim,
		DR:    dr,
		M:     m,
		TRext: trext,
	}
}

// BLF returns the backscatter link frequency, Hz.
func (l LinkTiming) BLF() float64 {
	return l.DR.Ratio() / l.TRcal
}

// Data0 returns the duration of a reader data-0 symbol.
func (l LinkTiming) Data0() float64 {
	return l.Tari
}

// Data1 returns the duration of a reader data-1 symbol.
func (l LinkTiming) Data1() float64 {
	return l.RTcal - l.Tari
}

// ReaderPreamble returns delimiter + data-0 + RTcal + TRcal, sent before Query.
func (l LinkTiming) ReaderPreamble() float64 {
	return l.Delim + l.Data0() + l.RTcal + l.TRcal
}

// FrameSync returns delimiter + data-0 + RTcal, sent before every other command.
func (l LinkTiming) FrameSync() float64 {
	return l.Delim + l.Data0() + l.RTcal
}

// TagSymbolDuration returns the duration of one tag data symbol (M / BLF).
func (l LinkTiming) TagSymbolDuration() float64 {
	return float64(l.M.SymbolsPerBit()) / l.BLF()
}

// TagPreambleSymbols returns the number of symbols in the tag preamble.
func (l LinkTiming) TagPreambleSymbols() int {
	if l.M.IsMiller() {
		if l.TRext {
			return 22
		}
		return 10
	}
	if l.TRext {
		return 18
	}
	return 6
}

// TagPreamble returns the duration of the tag preamble.
func (l LinkTiming) TagPreamble() float64 {
	return float64(l.TagPreambleSymbols()) * l.TagSymbolDuration()
}

// T1 is the time from the end of a reader command to the start of a tag reply.
func (l LinkTiming) T1() float64 {
	return math.Max(l.RTcal, 10/l.BLF())
}

// T2 is the time from the end of a tag reply to the next reader command.
func (l LinkTiming) T2() float64 {
	return 3 / l.BLF()
}

// T3 is the additional time a reader waits after T1 before giving up on a reply.
func (l LinkTiming) T3() float64 {
	return l.TagPreamble()
}

// T4 is the minimum time between two reader commands.
func (l LinkTiming) T4() float64 {
	return 2 * l.RTcal
}

// ReaderBitsDuration returns the on-air time of a reader bit string.
func (l LinkTiming) ReaderBitsDuration(bits string) float64 {
	var d float64
	for i := 0; i < len(bits); i++ {
		if bits[i] == '1' {
			d += l.Data1()
		} else {
			d += l.Data0()
		}
	}
	return d
}

// TagBitsDuration returns the on-air time of n tag data bits followed by
// the end-of-signaling dummy bit, preamble excluded.
func (l LinkTiming) TagBitsDuration(n int) float64 {
	return float64(n+1) * l.TagSymbolDuration()
}
