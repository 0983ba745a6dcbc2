package color

import "math"

// HCL is the cylindrical form of CIELUV: hue in degrees, chroma and
// luminance on the CIELUV scale. See https://cscheid.github.io/lux/demos/hcl/hcl.html
type HCL struct {
	H, C, L float64
}

// LUV maps the cylinder onto the u/v plane. L is passed through.
func (c HCL) LUV() LUV {
	s, co := math.Sincos(c.H * math.Pi / 180)
	return LUV{
		L: c.L,
		U: c.C * co,
		V: c.C * s,
	}
}

// RGB converts c to sRGB through CIELUV and XYZ.
func (c HCL) RGB() RGB {
	return c.LUV().RGB()
}
