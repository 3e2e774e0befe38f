package channel

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/spatial/r3"
)

// wallNormal is the normal of the reflecting wall, which lies in the YOZ plane.
var wallNormal = r3.Vec{X: 1}

// mirror reflects p through the wall plane.
func mirror(p r3.Vec) r3.Vec {
	return r3.Vec{X: -p.X, Y: p.Y, Z: p.Z}
}

// ReflectionCoefficient returns the complex wall reflection coefficient for a
// ray with the given grazing-angle cosine. polarization is the parallel
// fraction: the parallel and perpendicular terms are mixed by it.
func (m Medium) ReflectionCoefficient(cosine, polarization float64) complex128 {
	if m.Reflection == ReflectionConstant {
		return complex(-1, 0)
	}
	sine := complex(toSin(cosine), 0)
	eta := complex(m.Permittivity, -60*m.Wavelength()*m.Conductivity)
	root := cmplx.Sqrt(eta - complex(cosine*cosine, 0))

	var parallel, perpendicular complex128
	if polarization != 0 {
		parallel = (sine - root) / (sine + root)
	}
	if polarization != 1 {
		c := root / eta
		perpendicular = (sine - c) / (sine + c)
	}
	return complex(polarization, 0)*parallel + complex(1-polarization, 0)*perpendicular
}

// Pathloss returns the linear power attenuation of the two-ray channel from
// tx to rx, t seconds after the positions were sampled. The reflected ray is
// computed as a direct ray to the receiver mirrored through the wall; the two
// complex field contributions are summed before squaring, so they interfere.
//
// The reflection uses the transmitter's polarization. A zero-length direct ray
// yields +Inf. With ReflectionNone only the direct ray is kept.
func (m Medium) Pathloss(t float64, tx, rx Endpoint) float64 {
	if m.Reflection == ReflectionNone {
		return m.FreeSpacePathloss(t, tx, rx)
	}
	if !m.UseDoppler {
		t = 0
	}
	wavelen := m.Wavelength()
	k := 2 * math.Pi / wavelen

	d0Vec := r3.Sub(rx.Pos, tx.Pos)
	d1Vec := r3.Sub(mirror(rx.Pos), tx.Pos)
	d0 := r3.Norm(d0Vec)
	d1 := r3.Norm(d1Vec)
	if d0 == 0 {
		return math.Inf(1)
	}

	d0TxN := r3.Scale(1/d0, d0Vec)
	d0RxN := r3.Scale(-1, d0TxN)
	d1TxN := r3.Scale(1/d1, d1Vec)
	d1RxN := mirror(d1TxN)

	txAz0 := r3.Dot(d0TxN, tx.Direction)
	rxAz0 := r3.Dot(d0RxN, rx.Direction)
	txAz1 := r3.Dot(d1TxN, tx.Direction)
	rxAz1 := -r3.Dot(d1RxN, rx.Direction)

	grazing := -r3.Dot(d1RxN, wallNormal)

	relVelocity := r3.Sub(rx.Velocity, tx.Velocity)
	v0 := r3.Dot(d0TxN, relVelocity)
	v1 := r3.Dot(d1TxN, relVelocity)

	g0 := pattern(tx.Pattern)(txAz0) * pattern(rx.Pattern)(rxAz0)
	g1 := pattern(tx.Pattern)(txAz1) * pattern(rx.Pattern)(rxAz1)

	r1 := m.ReflectionCoefficient(grazing, tx.Polarization)

	los := complex(g0/d0, 0) * cmplx.Exp(complex(0, -k*(d0-t*v0)))
	nlos := r1 * complex(g1/d1, 0) * cmplx.Exp(complex(0, -k*(d1-t*v1)))

	amp := cmplx.Abs(los + nlos)
	return (0.5 / k) * (0.5 / k) * amp * amp
}

// PathlossDB is Pathloss in dB; a vanishing attenuation maps to -Inf.
func (m Medium) PathlossDB(t float64, tx, rx Endpoint) float64 {
	return ToLog(m.Pathloss(t, tx, rx), false)
}

// FreeSpacePathloss returns the line-of-sight-only attenuation, linear.
func (m Medium) FreeSpacePathloss(t float64, tx, rx Endpoint) float64 {
	if !m.UseDoppler {
		t = 0
	}
	k := 2 * math.Pi / m.Wavelength()
	dVec := r3.Sub(rx.Pos, tx.Pos)
	d := r3.Norm(dVec)
	if d == 0 {
		return math.Inf(1)
	}
	dTxN := r3.Scale(1/d, dVec)
	g := pattern(tx.Pattern)(r3.Dot(dTxN, tx.Direction)) * pattern(rx.Pattern)(-r3.Dot(dTxN, rx.Direction))
	v := r3.Dot(dTxN, r3.Sub(rx.Velocity, tx.Velocity))
	amp := cmplx.Abs(complex(g/d, 0) * cmplx.Exp(complex(0, -k*(d-t*v))))
	return (0.5 / k) * (0.5 / k) * amp * amp
}

func pattern(p RadiationPattern) RadiationPattern {
	if p == nil {
		return Dipole
	}
	return p
}
