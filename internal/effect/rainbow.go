package effect

import "github.com/coreman2200/ledstrip/internal/color"

const (
	// rainbowMaxVelocity is the hue rotation at speed=1, in degrees per frame.
	rainbowMaxVelocity = 0.6

	// chroma and luminance are normalized in Params and scaled onto the
	// 0..100 CIELUV range here. Unscaled 0..1 values would render almost
	// black, so this departs from taking Params.Chroma as raw LUV chroma.
	rainbowChromaScale    = 100.0
	rainbowLuminanceScale = 100.0
)

// rainbowState circles through the HCL hue wheel.
type rainbowState struct {
	chroma    float64
	luminance float64
	degrees   float64
	velocity  float64
	// hue separation between neighbouring pixels; at size=0 the whole
	// spectrum spans the strip
	separation float64
}

func (r *rainbowState) configure(p Params, n int) {
	r.chroma = p.Chroma * rainbowChromaScale
	r.luminance = p.Luminance * rainbowLuminanceScale
	r.velocity = color.Lerp(0, rainbowMaxVelocity, p.Speed)
	r.separation = color.Lerp(0, 360/float64(max(1, n)), 1-p.Size)
	r.degrees = 0
}

func (r *rainbowState) next(n int) Strip {
	s := make(Strip, n)
	for i := range s {
		s[i] = color.HCL{
			H: r.degrees + r.separation*float64(i),
			C: r.chroma,
			L: r.luminance,
		}.RGB()
	}
	r.degrees += r.velocity
	return s
}
