package channel

import "math"

// Link is the power budget of one reader antenna / tag pair. Gains and
// losses are in dB, TxPower in dBm.
type Link struct {
	Reader Endpoint
	Tag    Endpoint

	TxPower        float64
	ReaderGain     float64
	CableLoss      float64
	TagGain        float64
	ModulationLoss float64
}

// TagRxPower returns the power received by the tag, dBm:
// Ptx + Gr + Lcable + PL + Gt + Lpol.
func (m Medium) TagRxPower(l Link, t float64) float64 {
	pl := m.PathlossDB(t, l.Reader, l.Tag)
	return l.TxPower + l.ReaderGain + l.CableLoss + pl + l.TagGain + m.PolarizationLoss
}

// ReaderRxPower returns the power of the tag backscatter at the reader, dBm:
// Ptx + 2(Gr + Lcable + Gt + Lpol) + PL(reader→tag) + PL(tag→reader) + Lmod.
func (m Medium) ReaderRxPower(l Link, t float64) float64 {
	fwd := m.PathlossDB(t, l.Reader, l.Tag)
	back := m.PathlossDB(t, l.Tag, l.Reader)
	if math.IsInf(fwd, -1) || math.IsInf(back, -1) {
		return math.Inf(-1)
	}
	gains := l.ReaderGain + l.CableLoss + l.TagGain + m.PolarizationLoss
	return l.TxPower + 2*gains + fwd + back + l.ModulationLoss
}

// FrameReception summarizes the channel quality seen by one received frame.
type FrameReception struct {
	SNR     float64 // linear, before synchronization correction
	BER     float64
	Success float64 // probability that the whole frame decodes
}

// Receive evaluates a frame of bits backscattered at power (dBm) against a
// noise floor (dBm). miller, symbol and preamble describe the tag encoding.
func (m Medium) Receive(power, noise float64, bits, miller int, symbol, preamble float64) FrameReception {
	snr := SNR(power, noise)
	eff := EffectiveSNR(snr, miller, symbol, preamble, m.Bandwidth)
	ber := BitErrorProbability(eff, m.BERDistribution)
	return FrameReception{
		SNR:     snr,
		BER:     ber,
		Success: FrameSuccessProbability(ber, bits),
	}
}
