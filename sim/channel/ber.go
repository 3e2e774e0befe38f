package channel

import "math"

const snrTol = 1e-8

// SNR returns the linear signal-to-noise ratio of a power over a noise floor,
// both in dBm.
func SNR(power, noise float64) float64 {
	return FromLog(power-noise, false)
}

// EffectiveSNR corrects snr for the receiver's synchronization error over
// the preamble and for the Miller processing gain. Below a numerical
// tolerance the receiver cannot synchronize and 0.5 is returned.
func EffectiveSNR(snr float64, miller int, symbol, preamble, bandwidth float64) float64 {
	if snr < snrTol {
		return 0.5
	}
	sync := math.Pow(snr*preamble*bandwidth, -0.5)
	c := math.Cos(sync)
	return float64(miller) * snr * symbol * bandwidth * c * c
}

// qFunc is the Gaussian tail probability.
func qFunc(x float64) float64 {
	return 0.5 - 0.5*math.Erf(x/math.Sqrt2)
}

// BitErrorProbability returns the bit-error probability for snr under the
// given fading model. Vanishing SNR yields 0.5.
func BitErrorProbability(snr float64, distr BERModel) float64 {
	if snr < snrTol {
		return 0.5
	}
	if distr == AWGN {
		q := qFunc(math.Sqrt(snr))
		return 2 * q * (1 - q)
	}
	t := math.Sqrt(1 + 2/snr)
	return 0.5 - 1/t + 2/math.Pi*math.Atan(t)/t
}

// FrameSuccessProbability returns the probability that none of bits suffers
// an error, assuming independent bit errors.
func FrameSuccessProbability(ber float64, bits int) float64 {
	if bits <= 0 {
		return 1
	}
	return math.Pow(1-ber, float64(bits))
}
