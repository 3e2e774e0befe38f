// Package channel models the reader-tag radio channel: two-ray propagation
// over a reflecting wall, antenna radiation patterns, link power budgets,
// and the SNR and bit-error probability of backscattered frames.
//
// All functions are pure; a Medium holds configuration only.
package channel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SpeedOfLight in vacuum, m/s.
const SpeedOfLight = 299_792_458.0

// ReflectionModel selects how the wall-reflected ray is attenuated.
type ReflectionModel string

const (
	// ReflectionFresnel mixes the parallel and perpendicular Fresnel
	// coefficients of the wall by the polarization fraction.
	ReflectionFresnel ReflectionModel = "reflection"
	// ReflectionConstant reflects with coefficient -1.
	ReflectionConstant ReflectionModel = "const"
	// ReflectionNone drops the wall ray: line of sight only.
	ReflectionNone ReflectionModel = "none"
)

// BERModel selects the bit-error formula.
type BERModel string

const (
	Rayleigh BERModel = "rayleigh"
	AWGN     BERModel = "awgn"
)

// Polarization fractions of the parallel component.
const (
	PolarizationVertical   = 0.0
	PolarizationHorizontal = 1.0
	PolarizationCircular   = 0.5
)

// Medium bundles the physical parameters of the propagation environment.
type Medium struct {
	Frequency        float64 // carrier, Hz
	Permittivity     float64 // relative permittivity of the wall
	Conductivity     float64 // wall conductivity, S/m
	Reflection       ReflectionModel
	BERDistribution  BERModel
	UseDoppler       bool
	PolarizationLoss float64 // dB
	Bandwidth        float64 // receiver bandwidth used by EffectiveSNR, Hz
}

// Validate checks the medium's enumerations and ranges.
func (m Medium) Validate() error {
	if m.Frequency <= 0 {
		return fmt.Errorf("frequency must be positive, got %v", m.Frequency)
	}
	switch m.Reflection {
	case ReflectionFresnel, ReflectionConstant, ReflectionNone:
	default:
		return fmt.Errorf("unknown reflection model %q (valid: reflection, const, none)", m.Reflection)
	}
	switch m.BERDistribution {
	case Rayleigh, AWGN:
	default:
		return fmt.Errorf("unknown BER distribution %q (valid: rayleigh, awgn)", m.BERDistribution)
	}
	if m.Bandwidth <= 0 {
		return fmt.Errorf("bandwidth must be positive, got %v", m.Bandwidth)
	}
	return nil
}

// Wavelength returns the carrier wavelength, m.
func (m Medium) Wavelength() float64 {
	return SpeedOfLight / m.Frequency
}

// Endpoint is one side of a link: an antenna at a position, pointing along
// Direction (unit boresight) and moving with Velocity.
type Endpoint struct {
	Pos          r3.Vec
	Direction    r3.Vec
	Velocity     r3.Vec
	Pattern      RadiationPattern
	Polarization float64 // parallel fraction, used when this endpoint transmits
}

// RadiationPattern returns the field gain of an antenna given the cosine of
// the angle between its boresight and a ray.
type RadiationPattern func(cosAzimuth float64) float64

const patternTol = 1e-9

// Dipole is the dipole pattern |cos(π/2·sinθ) / cosθ|, zero behind the antenna.
func Dipole(cosAzimuth float64) float64 {
	if cosAzimuth <= patternTol {
		return 0
	}
	return math.Abs(math.Cos(math.Pi/2*toSin(cosAzimuth)) / cosAzimuth)
}

// Isotropic has unit gain in every direction.
func Isotropic(float64) float64 {
	return 1
}

// AntennaPattern names a RadiationPattern in configuration.
type AntennaPattern string

const (
	PatternDipole    AntennaPattern = "dipole"
	PatternIsotropic AntennaPattern = "isotropic"
)

// Func returns the named pattern; ok is false for an unknown name.
func (a AntennaPattern) Func() (p RadiationPattern, ok bool) {
	switch a {
	case PatternDipole:
		return Dipole, true
	case PatternIsotropic:
		return Isotropic, true
	}
	return nil, false
}

func toSin(cos float64) float64 {
	return math.Sqrt(math.Max(0, 1-cos*cos))
}

// ToLog converts a linear power ratio to dB (dBm when dbm is set). Values
// below 1e-15 map to -Inf.
func ToLog(value float64, dbm bool) float64 {
	if value < 1e-15 {
		return math.Inf(-1)
	}
	v := 10 * math.Log10(value)
	if dbm {
		v += 30
	}
	return v
}

// FromLog converts dB (dBm when dbm is set) to a linear ratio (watts).
func FromLog(value float64, dbm bool) float64 {
	if dbm {
		return math.Pow(10, value/10-3)
	}
	return math.Pow(10, value/10)
}

// KmphToMps converts km/h to m/s.
func KmphToMps(speed float64) float64 {
	return speed * 5 / 18
}
