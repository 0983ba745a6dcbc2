package effect

import (
	"math"

	"github.com/coreman2200/ledstrip/internal/color"
)

// gradientMaxVelocity is the wave travel at speed=1, in degrees per frame.
const gradientMaxVelocity = 0.33

// gradientState draws a travelling sine wave blended between two colors.
type gradientState struct {
	start    color.LUV
	end      color.LUV
	angle    float64
	velocity float64
	// phase difference between neighbouring pixels, in degrees
	spread float64
}

func (g *gradientState) configure(p Params, n int) {
	g.start = p.Color1.LUV()
	g.end = p.Color2.LUV()
	g.velocity = color.Lerp(0, gradientMaxVelocity, p.Speed)
	g.spread = color.Lerp(0, 360/float64(max(1, n)), 1-p.Size)
	g.angle = 0
}

func (g *gradientState) next(n int) Strip {
	s := make(Strip, n)
	for i := range s {
		angle := g.angle + g.spread*float64(i)
		t := amplitudeToFactor(math.Sin(angle * math.Pi / 180))
		s[i] = g.start.Interpolate(g.end, t).RGB()
	}
	g.angle += g.velocity
	return s
}
