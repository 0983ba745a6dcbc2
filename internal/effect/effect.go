// Package effect implements the frame generators driven by the render loop.
//
// An Effect is a closed sum over four kinds. Each kind keeps its private
// animation state inline, so replacing the running effect is a plain value
// assignment. Configure re-derives all state from Params; Next returns the
// following frame and advances the animation.
package effect

import (
	"fmt"

	"github.com/coreman2200/ledstrip/internal/color"
)

// Kind selects one of the built-in effects.
type Kind int

const (
	Solid Kind = iota
	Rainbow
	Gradient
	Polyrhythm
)

var kindNames = map[Kind]string{
	Solid:      "solid",
	Rainbow:    "rainbow",
	Gradient:   "gradient",
	Polyrhythm: "polyrhythm",
}

// Kinds lists every effect in declaration order.
func Kinds() []Kind {
	return []Kind{Solid, Rainbow, Gradient, Polyrhythm}
}

// String returns the lowercase wire name of k.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind matches a wire name exactly.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown effect %q", s)
}

// Effect is one live frame generator for a strip of fixed length.
type Effect struct {
	kind Kind
	n    int

	solid      solidState
	rainbow    rainbowState
	gradient   gradientState
	polyrhythm polyrhythmState
}

// New constructs kind for a strip of n pixels with default internal state.
// It produces nothing useful until Configure is called.
func New(kind Kind, n int) Effect {
	e := Effect{kind: kind, n: n}
	if kind == Polyrhythm {
		e.polyrhythm.spinners = make([]spinner, n)
	}
	return e
}

// NewSolid returns a Solid effect already holding c.
func NewSolid(n int, c color.RGB) Effect {
	e := New(Solid, n)
	e.solid.color = c
	return e
}

func (e *Effect) Kind() Kind { return e.kind }

// Len is the number of pixels in every produced strip.
func (e *Effect) Len() int { return e.n }

// Configure applies p, resetting any in-flight animation phase.
func (e *Effect) Configure(p Params) {
	switch e.kind {
	case Solid:
		e.solid.configure(p)
	case Rainbow:
		e.rainbow.configure(p, e.n)
	case Gradient:
		e.gradient.configure(p, e.n)
	case Polyrhythm:
		e.polyrhythm.configure(p, e.n)
	}
}

// Next returns the following frame. ok is false once the effect is
// exhausted; only Solid ever exhausts, after its single frame.
func (e *Effect) Next() (s Strip, ok bool) {
	switch e.kind {
	case Solid:
		return e.solid.next(e.n)
	case Rainbow:
		return e.rainbow.next(e.n), true
	case Gradient:
		return e.gradient.next(e.n), true
	case Polyrhythm:
		return e.polyrhythm.next(e.n), true
	}
	return nil, false
}
