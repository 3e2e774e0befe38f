package gen2

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2sim/gen2sim/sim/internal/testutil"
)

func TestCRC5_CheckValue(t *testing.T) {
	// CRC-5/EPC-C1G2 check value over ASCII "123456789" is 0x00.
	assert.Equal(t, uint8(0x00), CRC5(BytesToBits([]byte("123456789"))))
}

func TestCRC16_CheckValue(t *testing.T) {
	// CRC-16/EPC (GENIBUS) check value over ASCII "123456789".
	assert.Equal(t, uint16(0xD64E), CRC16(BytesToBits([]byte("123456789"))))
}

func TestQuery_CRC5_ResidueIsZero(t *testing.T) {
	bits := Query{DR: DR8, M: M4, TRext: true, Session: S2, Target: FlagB, Q: 7}.Encode()
	assert.Equal(t, uint8(0), CRC5(bits))
}

func TestReqRN_CRC16_Intact(t *testing.T) {
	bits := ReqRN{RN: 0xBEEF}.Encode()
	assert.True(t, CRC16Check(bits))

	// Flipping any bit breaks the check.
	flipped := []byte(bits)
	flipped[10] ^= 1
	assert.False(t, CRC16Check(string(flipped)))
}

func TestCommands_BitLengths(t *testing.T) {
	tests := []struct {
		cmd  Command
		want int
	}{
		{Query{DR: DR8, M: M2, TRext: true, Q: 4}, 22},
		{QueryRep{Session: S1}, 4},
		{QueryAdjust{Session: S0, UpDn: UpDnIncrement}, 9},
		{Ack{RN: 0x1234}, 18},
		{ReqRN{RN: 0x1234}, 40},
		{Read{Bank: BankTID, WordPtr: 0, WordCount: 4, RN: 0x1234}, 58},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Code().String(), func(t *testing.T) {
			bits := tt.cmd.Encode()
			assert.Len(t, bits, tt.want)
			assert.Empty(t, strings.Trim(bits, "01"), "only 0/1 characters")
		})
	}
}

func TestQuery_FieldLayout(t *testing.T) {
	bits := Query{DR: DR643, M: M8, TRext: false, Sel: SelSL, Session: S3, Target: FlagB, Q: 15}.Encode()
	assert.Equal(t, "1000", bits[0:4], "command code")
	assert.Equal(t, "1", bits[4:5], "DR")
	assert.Equal(t, "11", bits[5:7], "M")
	assert.Equal(t, "0", bits[7:8], "TRext")
	assert.Equal(t, "11", bits[8:10], "Sel")
	assert.Equal(t, "11", bits[10:12], "Session")
	assert.Equal(t, "1", bits[12:13], "Target")
	assert.Equal(t, "1111", bits[13:17], "Q")
}

func TestQueryAdjust_UpDnCodes(t *testing.T) {
	assert.Equal(t, "110", QueryAdjust{UpDn: UpDnIncrement}.Encode()[6:])
	assert.Equal(t, "000", QueryAdjust{UpDn: UpDnNone}.Encode()[6:])
	assert.Equal(t, "011", QueryAdjust{UpDn: UpDnDecrement}.Encode()[6:])
}

func TestEncodeEBV(t *testing.T) {
	assert.Equal(t, "00000000", EncodeEBV(0))
	assert.Equal(t, "01111111", EncodeEBV(127))
	assert.Equal(t, "1000000100000000", EncodeEBV(128))
}

func TestReplies_BitLengths(t *testing.T) {
	assert.Equal(t, 16, RN16Reply{}.BitLen())
	assert.Equal(t, 16+96+16, AckReply{EPC: make([]byte, 12)}.BitLen())
	assert.Equal(t, 32, HandleReply{}.BitLen())
	assert.Equal(t, 1+16*64+32, ReadReply{Memory: make([]byte, 128)}.BitLen())
}

func TestReplies_ExhaustiveSwitch(t *testing.T) {
	kinds := map[string]int{}
	for _, r := range []Reply{RN16Reply{}, AckReply{}, HandleReply{}, ReadReply{}} {
		switch r.(type) {
		case RN16Reply:
			kinds["rn16"]++
		case AckReply:
			kinds["ack"]++
		case HandleReply:
			kinds["handle"]++
		case ReadReply:
			kinds["read"]++
		}
	}
	assert.Len(t, kinds, 4)
}

func TestParseTagEncoding(t *testing.T) {
	tests := []struct {
		in   string
		want TagEncoding
	}{
		{"FM0", FM0}, {"1", FM0}, {"m2", M2}, {"2", M2}, {"M4", M4}, {"4", M4}, {"M8", M8}, {"8", M8},
	}
	for _, tt := range tests {
		got, err := ParseTagEncoding(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseTagEncoding("M3")
	assert.Error(t, err)
}

func TestTextRoundTrip_Enums(t *testing.T) {
	var s Session
	require.NoError(t, s.UnmarshalText([]byte("S2")))
	assert.Equal(t, S2, s)

	var f InventoryFlag
	require.NoError(t, f.UnmarshalText([]byte("b")))
	assert.Equal(t, FlagB, f)
	assert.Equal(t, FlagA, f.Invert())

	var dr DivideRatio
	require.NoError(t, dr.UnmarshalText([]byte("64/3")))
	assert.InDelta(t, 21.333, dr.Ratio(), 1e-3)
	assert.Error(t, dr.UnmarshalText([]byte("7")))
}

func defaultTiming() LinkTiming {
	return NewLinkTiming(12.5e-6, 3.0, 2.5, 12.5e-6, DR8, M2, true)
}

func TestLinkTiming_Derived(t *testing.T) {
	l := defaultTiming()

	testutil.AssertFloat64Equal(t, "RTcal", 37.5e-6, l.RTcal, 1e-12)
	testutil.AssertFloat64Equal(t, "TRcal", 93.75e-6, l.TRcal, 1e-12)
	testutil.AssertFloat64Equal(t, "BLF", 8/93.75e-6, l.BLF(), 1e-12)
	testutil.AssertFloat64Equal(t, "Data1", 25e-6, l.Data1(), 1e-12)
	testutil.AssertFloat64Equal(t, "T1", 10/l.BLF(), l.T1(), 1e-12)
	testutil.AssertFloat64Equal(t, "T2", 3/l.BLF(), l.T2(), 1e-12)
	testutil.AssertFloat64Equal(t, "T4", 75e-6, l.T4(), 1e-12)
	testutil.AssertFloat64Equal(t, "preamble", 12.5e-6+12.5e-6+37.5e-6+93.75e-6, l.ReaderPreamble(), 1e-12)
	testutil.AssertFloat64Equal(t, "frame-sync", 12.5e-6+12.5e-6+37.5e-6, l.FrameSync(), 1e-12)
}

func TestLinkTiming_TagPreambleSymbols(t *testing.T) {
	tests := []struct {
		m     TagEncoding
		trext bool
		want  int
	}{
		{FM0, false, 6}, {FM0, true, 18}, {M2, false, 10}, {M4, true, 22},
	}
	for _, tt := range tests {
		l := NewLinkTiming(12.5e-6, 3, 2.5, 12.5e-6, DR8, tt.m, tt.trext)
		assert.Equal(t, tt.want, l.TagPreambleSymbols(), "%s trext=%t", tt.m, tt.trext)
	}
}

func TestLinkTiming_T1_UsesRTcalWhenLarger(t *testing.T) {
	// A very fast link (DR 64/3, short TRcal) makes 10/BLF smaller than RTcal.
	l := NewLinkTiming(6.25e-6, 3.0, 1.2, 6.25e-6, DR643, FM0, false)
	assert.Equal(t, l.RTcal, l.T1())
}

func TestReaderFrame_QueryUsesPreamble(t *testing.T) {
	l := defaultTiming()
	q := NewReaderFrame(Query{DR: DR8, M: M2, TRext: true, Q: 4}, l)
	rep := NewReaderFrame(QueryRep{}, l)

	assert.Equal(t, l.ReaderPreamble(), q.Preamble())
	assert.Equal(t, l.FrameSync(), rep.Preamble())
	// QueryRep on S0 is "0000": four data-0 symbols.
	testutil.AssertFloat64Equal(t, "QueryRep", l.FrameSync()+4*l.Data0(), rep.Duration(), 1e-12)
	assert.Greater(t, q.Duration(), rep.Duration())
}

func TestTagFrame_Duration(t *testing.T) {
	l := defaultTiming()
	f := NewTagFrame(RN16Reply{RN: 1}, l)
	want := 22*l.TagSymbolDuration() + 17*l.TagSymbolDuration()
	testutil.AssertFloat64Equal(t, "RN16 duration", want, f.Duration(), 1e-12)
	assert.Equal(t, 16, f.BitLen())
}
