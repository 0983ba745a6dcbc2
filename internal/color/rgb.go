// Package color converts between sRGB, CIE XYZ, CIELUV and HCL.
//
// All gradients in the effect engine are interpolated in CIELUV, where a
// straight line tracks perceived color change much better than in RGB.
// Every conversion is a total function; degenerate inputs map to black.
package color

import "math"

const MaxChannel = 255.0

// RGB holds sRGB channels in the range 0..255.
type RGB struct {
	R, G, B float64
}

// Black is the zero RGB value.
var Black = RGB{}

// Based on the sRGB working space matrix (D65),
// http://www.brucelindbloom.com/Eqn_RGB_XYZ_Matrix.html
var (
	rgbToXYZ = [3][3]float64{
		{0.4124564, 0.3575761, 0.1804375},
		{0.2126729, 0.7151522, 0.0721750},
		{0.0193339, 0.1191920, 0.9503041},
	}
	xyzToRGB = [3][3]float64{
		{3.2404542, -1.5371385, -0.4985314},
		{-0.9692660, 1.8760108, 0.0415560},
		{0.0556434, -0.2040259, 1.0572252},
	}
)

func (c RGB) xyz() xyz {
	r := srgbToLinear(c.R / MaxChannel)
	g := srgbToLinear(c.G / MaxChannel)
	b := srgbToLinear(c.B / MaxChannel)

	m := rgbToXYZ
	return xyz{
		X: (r*m[0][0] + g*m[0][1] + b*m[0][2]) * yRef,
		Y: (r*m[1][0] + g*m[1][1] + b*m[1][2]) * yRef,
		Z: (r*m[2][0] + g*m[2][1] + b*m[2][2]) * yRef,
	}
}

// LUV converts c to CIELUV through XYZ.
func (c RGB) LUV() LUV {
	return c.xyz().luv()
}

// RGB8 rounds every channel to the nearest byte.
func (c RGB) RGB8() (r, g, b uint8) {
	return toByte(c.R), toByte(c.G), toByte(c.B)
}

func toByte(v float64) uint8 {
	return uint8(math.Round(clampChannel(v)))
}

// clampChannel maps v into [0,255]. NaN becomes 0.
func clampChannel(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > MaxChannel {
		return MaxChannel
	}
	return v
}

// inverse sRGB companding,
// http://www.brucelindbloom.com/index.html?Eqn_RGB_to_XYZ.html
func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// http://www.brucelindbloom.com/index.html?Eqn_XYZ_to_RGB.html
func linearToSRGB(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}
