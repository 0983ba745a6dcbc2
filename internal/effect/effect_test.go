package effect

import (
	"testing"

	"github.com/coreman2200/ledstrip/internal/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLen = 30

var (
	red  = color.RGB{R: 255}
	blue = color.RGB{B: 255}
)

func TestKindNames(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	for _, bad := range []string{"", "Solid", "RAINBOW", " gradient", "poly"} {
		_, err := ParseKind(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestSolidYieldsExactlyOneFrame(t *testing.T) {
	e := NewSolid(testLen, red)

	s, ok := e.Next()
	require.True(t, ok)
	require.Len(t, s, testLen)
	for _, px := range s {
		assert.Equal(t, red, px)
	}

	for i := 0; i < 10; i++ {
		s, ok = e.Next()
		assert.False(t, ok)
		assert.Nil(t, s)
	}
}

func TestSolidReconfigureRearms(t *testing.T) {
	e := New(Solid, testLen)
	_, _ = e.Next()
	_, ok := e.Next()
	require.False(t, ok)

	p := DefaultParams()
	p.Color1 = blue
	e.Configure(p)

	s, ok := e.Next()
	require.True(t, ok)
	assert.Equal(t, blue, s[testLen-1])
	_, ok = e.Next()
	assert.False(t, ok)
}

func TestRainbowStillSingleHue(t *testing.T) {
	e := New(Rainbow, testLen)
	p := DefaultParams()
	p.Size = 1
	p.Speed = 0
	e.Configure(p)

	first, ok := e.Next()
	require.True(t, ok)
	for frame := 0; frame < 50; frame++ {
		s, ok := e.Next()
		require.True(t, ok)
		for i, px := range s {
			assert.Equal(t, first[0], px, "frame %d pixel %d", frame, i)
		}
	}
}

func TestRainbowSpreadsSpectrumAtSizeZero(t *testing.T) {
	e := New(Rainbow, 4)
	p := DefaultParams()
	p.Size = 0
	p.Speed = 0
	e.Configure(p)

	assert.InDelta(t, 90.0, e.rainbow.separation, 1e-9)
	s, _ := e.Next()
	assert.NotEqual(t, s[0], s[2])
}

func TestRainbowScalesOntoLUV(t *testing.T) {
	e := New(Rainbow, testLen)
	p := DefaultParams()
	p.Chroma = 0.6
	p.Luminance = 0.6
	e.Configure(p)

	assert.InDelta(t, 60.0, e.rainbow.chroma, 1e-9)
	assert.InDelta(t, 60.0, e.rainbow.luminance, 1e-9)

	s, ok := e.Next()
	require.True(t, ok)
	px := s[0]
	assert.Greater(t, max(px.R, px.G, px.B), 64.0, "L*=60 must not render near black: %v", px)
}

func TestRainbowAdvancesPhase(t *testing.T) {
	e := New(Rainbow, testLen)
	p := DefaultParams()
	p.Speed = 1
	e.Configure(p)
	_, _ = e.Next()
	_, _ = e.Next()
	assert.InDelta(t, 2*rainbowMaxVelocity, e.rainbow.degrees, 1e-12)

	// configure resets the phase
	e.Configure(p)
	assert.Zero(t, e.rainbow.degrees)
}

func TestGradientBlendsBetweenEndpoints(t *testing.T) {
	e := New(Gradient, 8)
	p := DefaultParams()
	p.Color1 = red
	p.Color2 = blue
	p.Speed = 0
	p.Size = 1
	e.Configure(p)

	// phase 0 everywhere: sin(0)=0, halfway between the endpoints
	want := color.Interpolate(red.LUV(), blue.LUV(), 0.5).RGB()
	s, ok := e.Next()
	require.True(t, ok)
	for _, px := range s {
		assert.Equal(t, want, px)
	}
}

func TestGradientPeakIsColor2(t *testing.T) {
	e := New(Gradient, 1)
	p := DefaultParams()
	p.Color1 = red
	p.Color2 = blue
	e.Configure(p)
	e.gradient.angle = 90

	s, _ := e.Next()
	assert.InDelta(t, blue.B, s[0].B, 1e-2)
	assert.InDelta(t, 0, s[0].R, 1e-2)
}

func TestGradientNeverExhausts(t *testing.T) {
	e := New(Gradient, testLen)
	e.Configure(DefaultParams())
	for i := 0; i < 100; i++ {
		_, ok := e.Next()
		require.True(t, ok)
	}
}

func TestPolyrhythmVelocityStrictlyIncreasing(t *testing.T) {
	for _, speed := range []float64{0.01, 0.5, 1} {
		e := New(Polyrhythm, testLen)
		p := DefaultParams()
		p.Speed = speed
		e.Configure(p)
		for i := 1; i < testLen; i++ {
			assert.Greater(t, e.polyrhythm.spinners[i].velocity, e.polyrhythm.spinners[i-1].velocity)
		}
	}
}

func TestPolyrhythmSpeedZeroHolds(t *testing.T) {
	e := New(Polyrhythm, testLen)
	p := DefaultParams()
	p.Color1 = red
	p.Color2 = blue
	p.Speed = 0
	e.Configure(p)

	first, _ := e.Next()
	second, _ := e.Next()
	assert.Equal(t, first, second)
}

func TestPolyrhythmPixelsAdvanceIndependently(t *testing.T) {
	e := New(Polyrhythm, 3)
	p := DefaultParams()
	p.Speed = 1
	e.Configure(p)
	for i := 0; i < 4; i++ {
		_, _ = e.Next()
	}
	for i, sp := range e.polyrhythm.spinners {
		assert.InDelta(t, 4*polyrhythmVelocity(i, 1), sp.angle, 1e-12)
	}

	e.Configure(p)
	for _, sp := range e.polyrhythm.spinners {
		assert.Zero(t, sp.angle)
	}
}

func TestEveryKindProducesFullStrip(t *testing.T) {
	for _, k := range Kinds() {
		e := New(k, testLen)
		e.Configure(DefaultParams())
		assert.Equal(t, k, e.Kind())
		assert.Equal(t, testLen, e.Len())
		s, ok := e.Next()
		require.True(t, ok, k.String())
		assert.Len(t, s, testLen, k.String())
	}
}
