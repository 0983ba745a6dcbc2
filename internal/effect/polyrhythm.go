package effect

import (
	"math"

	"github.com/coreman2200/ledstrip/internal/color"
)

// oneDegree is one degree expressed in radians.
const oneDegree = 2 * math.Pi / 360

// polyrhythmState fades every pixel between two colors at its own rate.
// Pixel i spins at a multiple (i+1) of the base velocity, so neighbours
// drift in and out of phase with each other.
type polyrhythmState struct {
	spinners []spinner
	start    color.LUV
	end      color.LUV
}

type spinner struct {
	velocity float64 // radians per frame
	angle    float64
}

func (s *spinner) increment() { s.angle += s.velocity }

func (s *spinner) amplitude() float64 { return math.Sin(s.angle) }

// polyrhythmVelocity is the velocity of pixel i at the given speed.
func polyrhythmVelocity(i int, speed float64) float64 {
	maxVelocity := (oneDegree / 8) * float64(i+1)
	return color.Lerp(0, maxVelocity, speed)
}

func (p *polyrhythmState) configure(params Params, n int) {
	p.start = params.Color1.LUV()
	p.end = params.Color2.LUV()
	if len(p.spinners) != n {
		p.spinners = make([]spinner, n)
	}
	for i := range p.spinners {
		p.spinners[i] = spinner{velocity: polyrhythmVelocity(i, params.Speed)}
	}
}

func (p *polyrhythmState) next(n int) Strip {
	s := make(Strip, n)
	for i := range s {
		t := amplitudeToFactor(p.spinners[i].amplitude())
		s[i] = p.start.Interpolate(p.end, t).RGB()
		p.spinners[i].increment()
	}
	return s
}
