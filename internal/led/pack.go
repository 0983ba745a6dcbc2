package led

import (
	"fmt"
	"strings"

	"github.com/coreman2200/ledstrip/internal/color"
	"github.com/coreman2200/ledstrip/internal/effect"
)

// Order is the byte order of one pixel on the wire, e.g. "GRB".
type Order string

const DefaultOrder Order = "RGB"

// index maps wire position to source channel (0=R, 1=G, 2=B).
func (o Order) index() ([3]int, error) {
	var idx [3]int
	s := strings.ToUpper(string(o))
	if s == "" {
		s = string(DefaultOrder)
	}
	if len(s) != 3 {
		return idx, fmt.Errorf("color order %q: want three letters", o)
	}
	seen := map[byte]bool{}
	for i := 0; i < 3; i++ {
		switch s[i] {
		case 'R':
			idx[i] = 0
		case 'G':
			idx[i] = 1
		case 'B':
			idx[i] = 2
		default:
			return idx, fmt.Errorf("color order %q: unknown channel %q", o, s[i])
		}
		if seen[s[i]] {
			return idx, fmt.Errorf("color order %q: repeated channel %q", o, s[i])
		}
		seen[s[i]] = true
	}
	return idx, nil
}

// Validate reports whether o is a permutation of R, G and B.
func (o Order) Validate() error {
	_, err := o.index()
	return err
}

// Packer converts a strip into transport bytes. Brightness and the power
// limiter only ever touch the transport copy.
type Packer struct {
	// Brightness scales every channel, 0..1. Zero means full brightness.
	Brightness float64
	// WhiteCap bounds R+G+B of a single LED in normalized units (3 = off).
	WhiteCap float64
	// BudgetMA is the current budget for the whole strip; 0 disables it.
	BudgetMA float64
	// ChannelMA is the draw of one channel at full scale.
	ChannelMA float64
	// Knee is the fraction of BudgetMA where soft limiting begins.
	Knee  float64
	Order Order

	idx   [3]int
	ready bool
}

// NewPacker validates p and fills in defaults.
func NewPacker(p Packer) (Packer, error) {
	idx, err := p.Order.index()
	if err != nil {
		return Packer{}, err
	}
	p.idx = idx
	p.ready = true
	if p.Brightness <= 0 || p.Brightness > 1 {
		p.Brightness = 1
	}
	if p.WhiteCap <= 0 {
		p.WhiteCap = 3
	}
	if p.ChannelMA <= 0 {
		p.ChannelMA = 20
	}
	if p.Knee <= 0 || p.Knee >= 1 {
		p.Knee = 0.9
	}
	return p, nil
}

// Pack appends three bytes per pixel of s to dst in wire order.
// A zero Packer packs RGB at full brightness without limiting.
func (p Packer) Pack(dst []byte, s effect.Strip) []byte {
	if !p.ready {
		q, err := NewPacker(p)
		if err != nil {
			q, _ = NewPacker(Packer{})
		}
		p = q
	}
	px := make([][3]float64, len(s))
	for i, c := range s {
		px[i] = p.normalize(c)
	}
	p.limit(px)

	for _, c := range px {
		for _, ch := range p.idx {
			dst = append(dst, toByte(c[ch]))
		}
	}
	return dst
}

func (p Packer) normalize(c color.RGB) [3]float64 {
	b := p.Brightness
	return [3]float64{
		clamp01(c.R / color.MaxChannel * b),
		clamp01(c.G / color.MaxChannel * b),
		clamp01(c.B / color.MaxChannel * b),
	}
}

// limit applies the per-LED white cap, then scales the frame to stay within
// the current budget, softly between Knee and the budget.
func (p Packer) limit(px [][3]float64) {
	for i := range px {
		sum := px[i][0] + px[i][1] + px[i][2]
		if sum > p.WhiteCap && sum > 0 {
			scale(&px[i], p.WhiteCap/sum)
		}
	}

	if p.BudgetMA <= 0 {
		return
	}
	var total float64
	for _, c := range px {
		total += (c[0] + c[1] + c[2]) * p.ChannelMA
	}
	if total <= 0 {
		return
	}
	ratio := total / p.BudgetMA
	if ratio <= p.Knee {
		return
	}
	minS := p.BudgetMA / total
	s := minS
	if ratio <= 1 {
		t := (ratio - p.Knee) / (1 - p.Knee)
		s = 1 - t*(1-minS)
	}
	if s >= 1 {
		return
	}
	for i := range px {
		scale(&px[i], s)
	}
}

func scale(c *[3]float64, s float64) {
	c[0] *= s
	c[1] *= s
	c[2] *= s
}

func clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toByte(v float64) byte {
	return byte(v*255 + 0.5)
}
