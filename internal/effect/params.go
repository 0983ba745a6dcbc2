package effect

import "github.com/coreman2200/ledstrip/internal/color"

// Params is the effect-independent set of knobs shared by every effect.
// Everything except the two colors is normalized to 0..1. Effects use as
// many of these as they need.
type Params struct {
	Color1    color.RGB
	Color2    color.RGB
	Chroma    float64
	Luminance float64
	Size      float64
	Speed     float64
}

// DefaultParams returns the parameters used before any configuration arrives.
func DefaultParams() Params {
	return Params{
		Chroma:    0.6,
		Luminance: 0.6,
		Size:      0.5,
		Speed:     0.5,
	}
}

// Strip is one frame: one color per pixel, in wire order.
type Strip []color.RGB

func fill(n int, c color.RGB) Strip {
	s := make(Strip, n)
	for i := range s {
		s[i] = c
	}
	return s
}

// amplitudeToFactor maps a sine in -1..1 onto an interpolation factor in 0..1.
func amplitudeToFactor(amplitude float64) float64 {
	return (1 + amplitude) / 2
}
