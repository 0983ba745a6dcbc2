package color

import "math"

// D65 reference white.
const (
	xRef = 95.047
	yRef = 100.0
	zRef = 108.883
)

// CIE constants, see http://www.brucelindbloom.com/LContinuity.html
const (
	kappa   = 24389.0 / 27.0
	epsilon = 216.0 / 24389.0
)

var (
	uPrimeRef = 4 * xRef / (xRef + 15*yRef + 3*zRef)
	vPrimeRef = 9 * yRef / (xRef + 15*yRef + 3*zRef)
)

// xyz is a CIE 1931 tristimulus value with Y in 0..100. It never leaves
// this package; every chained conversion goes through it.
type xyz struct {
	X, Y, Z float64
}

func (c xyz) rgb() RGB {
	x, y, z := c.X/yRef, c.Y/yRef, c.Z/yRef

	m := xyzToRGB
	r := x*m[0][0] + y*m[0][1] + z*m[0][2]
	g := x*m[1][0] + y*m[1][1] + z*m[1][2]
	b := x*m[2][0] + y*m[2][1] + z*m[2][2]

	return RGB{
		R: clampChannel(linearToSRGB(r) * MaxChannel),
		G: clampChannel(linearToSRGB(g) * MaxChannel),
		B: clampChannel(linearToSRGB(b) * MaxChannel),
	}
}

// http://www.brucelindbloom.com/index.html?Eqn_XYZ_to_Luv.html
func (c xyz) luv() LUV {
	if c.X == 0 && c.Y == 0 && c.Z == 0 {
		return LUV{}
	}

	d := c.X + 15*c.Y + 3*c.Z
	uPrime := 4 * c.X / d
	vPrime := 9 * c.Y / d

	yr := c.Y / yRef
	var l float64
	if yr > epsilon {
		l = 116*math.Cbrt(yr) - 16
	} else {
		l = kappa * yr
	}

	return LUV{
		L: l,
		U: 13 * l * (uPrime - uPrimeRef),
		V: 13 * l * (vPrime - vPrimeRef),
	}
}

// LUV is a CIELUV color. L is lightness in 0..100.
type LUV struct {
	L, U, V float64
}

func (c LUV) xyz() xyz {
	if c.L == 0 {
		return xyz{}
	}

	uPrime := c.U/(13*c.L) + uPrimeRef
	vPrime := c.V/(13*c.L) + vPrimeRef

	var y float64
	if c.L > kappa*epsilon {
		y = yRef * math.Pow((c.L+16)/116, 3)
	} else {
		y = yRef * c.L / kappa
	}

	return xyz{
		X: y * 9 * uPrime / (4 * vPrime),
		Y: y,
		Z: y * (12 - 3*uPrime - 20*vPrime) / (4 * vPrime),
	}
}

// RGB converts c to sRGB through XYZ. Out of gamut channels are clamped.
func (c LUV) RGB() RGB {
	return c.xyz().rgb()
}

// Interpolate blends from c to end by t. t is not clamped.
func (c LUV) Interpolate(end LUV, t float64) LUV {
	return Interpolate(c, end, t)
}

// Interpolate returns start at t=0 and end at t=1, and a component-wise
// linear blend in between. Callers keep t within [0,1].
func Interpolate(start, end LUV, t float64) LUV {
	return LUV{
		L: lerp(start.L, end.L, t),
		U: lerp(start.U, end.U, t),
		V: lerp(start.V, end.V, t),
	}
}

// lerp is exact at both ends.
func lerp(a, b, t float64) float64 {
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	return a + t*(b-a)
}

// Lerp linearly maps t in [0,1] onto [a,b].
func Lerp(a, b, t float64) float64 {
	return lerp(a, b, t)
}
