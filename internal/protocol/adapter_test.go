package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ledstrip/internal/color"
	"github.com/coreman2200/ledstrip/internal/command"
	"github.com/coreman2200/ledstrip/internal/effect"
)

type published struct {
	Topic   string
	Payload string
}

type fakePublisher struct {
	sent []published
	err  error
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic, string(payload)})
	return nil
}

func newTestAdapter(t *testing.T) (*Adapter, *command.Queue, *fakePublisher, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	q := command.NewQueue(16)
	pub := &fakePublisher{}
	return NewAdapter("", q, pub, &l), q, pub, &buf
}

func drain(q *command.Queue) []command.Command {
	var out []command.Command
	for {
		c, ok := q.TryDequeue()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func TestColorThenEffect(t *testing.T) {
	a, q, pub, _ := newTestAdapter(t)

	require.NoError(t, a.Handle("led/pallet/color1/set", []byte("255,0,0")))
	require.NoError(t, a.Handle("led/pallet/effect/set", []byte("solid")))

	cmds := drain(q)
	require.Len(t, cmds, 3)
	assert.Equal(t, command.ConfigureParams, cmds[0].Kind)
	assert.Equal(t, command.NewChangeEffect(effect.Solid), cmds[1])
	assert.Equal(t, command.ConfigureParams, cmds[2].Kind)
	assert.Equal(t, color.RGB{R: 255}, cmds[2].Params.Color1)

	changes := 0
	for _, c := range cmds {
		if c.Kind == command.ChangeEffect {
			changes++
		}
	}
	assert.Equal(t, 1, changes)

	assert.Contains(t, pub.sent, published{"led/pallet/color1", "255,0,0"})
	assert.Contains(t, pub.sent, published{"led/pallet/effect", "solid"})
	// every accepted update echoes all seven fields
	assert.Len(t, pub.sent, 2*len(Fields()))

	st := a.State()
	assert.Equal(t, effect.Solid, st.Effect)
	assert.Equal(t, color.RGB{R: 255}, st.Params.Color1)
}

func TestNumericFields(t *testing.T) {
	a, q, pub, _ := newTestAdapter(t)

	require.NoError(t, a.Handle("led/pallet/chroma/set", []byte("0.25")))
	require.NoError(t, a.Handle("led/pallet/luminance/set", []byte("1")))
	require.NoError(t, a.Handle("led/pallet/size/set", []byte("0")))
	require.NoError(t, a.Handle("led/pallet/speed/set", []byte("0.125")))

	p := a.State().Params
	assert.Equal(t, 0.25, p.Chroma)
	assert.Equal(t, 1.0, p.Luminance)
	assert.Equal(t, 0.0, p.Size)
	assert.Equal(t, 0.125, p.Speed)

	cmds := drain(q)
	require.Len(t, cmds, 4)
	assert.Equal(t, p, cmds[3].Params)

	assert.Contains(t, pub.sent, published{"led/pallet/speed", "0.125"})
	assert.Contains(t, pub.sent, published{"led/pallet/size", "0"})
}

func TestParseFailureLeavesStateUntouched(t *testing.T) {
	a, q, pub, buf := newTestAdapter(t)
	before := a.State()

	bad := map[string]string{
		"led/pallet/color1/set": "255,0",
		"led/pallet/color2/set": "1,2,3,4",
		"led/pallet/chroma/set": "abc",
		"led/pallet/speed/set":  "NaN",
		"led/pallet/size/set":   "+Inf",
		"led/pallet/effect/set": "strobe",
	}
	for topic, payload := range bad {
		err := a.Handle(topic, []byte(payload))
		assert.ErrorIs(t, err, ErrParse, topic)
	}
	assert.ErrorIs(t, a.Handle("led/pallet/color1/set", []byte(" 1,2,3")), ErrParse)
	assert.ErrorIs(t, a.Handle("led/pallet/chroma/set", nil), ErrParse)

	assert.Equal(t, before, a.State())
	assert.Empty(t, drain(q))
	assert.Empty(t, pub.sent)
	assert.Contains(t, buf.String(), "rejected update")
}

func TestOversizedPayloadRejected(t *testing.T) {
	a, q, _, _ := newTestAdapter(t)
	long := bytes.Repeat([]byte("1"), MaxPayloadLen+1)
	assert.ErrorIs(t, a.Handle("led/pallet/speed/set", long), ErrParse)
	assert.Empty(t, drain(q))
}

func TestUnknownTopic(t *testing.T) {
	a, q, pub, _ := newTestAdapter(t)
	for _, topic := range []string{
		"led/pallet/brightness/set",
		"led/pallet/color1",
		"other/pallet/color1/set",
		"led/pallet/color1/set/x",
	} {
		assert.ErrorIs(t, a.Handle(topic, []byte("1,1,1")), ErrUnknownTopic, topic)
	}
	assert.Empty(t, drain(q))
	assert.Empty(t, pub.sent)
}

func TestPublishFailureIsTyped(t *testing.T) {
	a, q, pub, _ := newTestAdapter(t)
	pub.err = errors.New("broken pipe")

	err := a.Handle("led/pallet/speed/set", []byte("0.9"))
	var pe *PublishError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "led/pallet/color1", pe.Topic)
	assert.ErrorIs(t, err, pub.err)

	// the update itself was accepted before the echo failed
	assert.Equal(t, 0.9, a.State().Params.Speed)
	assert.Len(t, drain(q), 1)
}

func TestPublishStateUsesDefaults(t *testing.T) {
	a, q, pub, _ := newTestAdapter(t)
	require.NoError(t, a.PublishState())
	assert.Equal(t, []published{
		{"led/pallet/color1", "0,0,0"},
		{"led/pallet/color2", "0,0,0"},
		{"led/pallet/effect", "rainbow"},
		{"led/pallet/chroma", "0.6"},
		{"led/pallet/luminance", "0.6"},
		{"led/pallet/size", "0.5"},
		{"led/pallet/speed", "0.5"},
	}, pub.sent)
	assert.Empty(t, drain(q))
}

func TestCustomPrefix(t *testing.T) {
	q := command.NewQueue(4)
	a := NewAdapter("home/strip/", q, nil, nil)
	assert.Equal(t, "home/strip/+/set", a.SubscribeFilter())
	assert.Equal(t, "home/strip/size/set", a.SetTopic(FieldSize))
	require.NoError(t, a.Handle("home/strip/size/set", []byte("0.3")))
	assert.ErrorIs(t, a.Handle("led/pallet/size/set", []byte("0.3")), ErrUnknownTopic)
}

func TestEncodeRoundTrips(t *testing.T) {
	s := DefaultState()
	s.Params.Color1 = color.RGB{R: 12.5, G: 0.1, B: 255}
	s.Params.Color2 = color.RGB{R: 1e-9, G: 1e30, B: -0}
	s.Params.Chroma = 1.0 / 3

	for _, field := range []string{FieldColor1, FieldColor2} {
		b, err := Encode(s, field)
		require.NoError(t, err, field)
		assert.LessOrEqual(t, len(b), MaxPayloadLen, field)
	}

	b, err := Encode(s, FieldColor1)
	require.NoError(t, err)
	c, err := ParseRGB(b)
	require.NoError(t, err)
	assert.Equal(t, s.Params.Color1, c)

	b, err = Encode(s, FieldColor2)
	require.NoError(t, err)
	c, err = ParseRGB(b)
	require.NoError(t, err)
	assert.Equal(t, s.Params.Color2, c)

	b, err = Encode(s, FieldChroma)
	require.NoError(t, err)
	v, err := ParseFloat(b)
	require.NoError(t, err)
	assert.Equal(t, s.Params.Chroma, v)

	b, err = Encode(s, FieldEffect)
	require.NoError(t, err)
	k, err := ParseEffect(b)
	require.NoError(t, err)
	assert.Equal(t, s.Effect, k)

	_, err = Encode(s, "brightness")
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

func TestTinyColorEchoesParse(t *testing.T) {
	a, _, pub, _ := newTestAdapter(t)
	for _, payload := range []string{"1e-9,1e-9,1e-9", "1e30,0,0"} {
		pub.sent = nil
		require.NoError(t, a.Handle("led/pallet/color1/set", []byte(payload)))
		require.Len(t, pub.sent, len(Fields()))
		assert.Equal(t, "led/pallet/color1", pub.sent[0].Topic)

		c, err := ParseRGB([]byte(pub.sent[0].Payload))
		require.NoError(t, err, pub.sent[0].Payload)
		assert.Equal(t, a.State().Params.Color1, c)
	}
}

func TestOversizedEchoIsSkipped(t *testing.T) {
	a, q, pub, buf := newTestAdapter(t)
	// accepted at 32 bytes, but each channel echoes as 0.000123456
	payload := "1.23456e-4,1.23456e-4,1.23456e-4"
	require.Len(t, payload, MaxPayloadLen)

	require.NoError(t, a.Handle("led/pallet/color1/set", []byte(payload)))
	assert.Equal(t, 1.23456e-4, a.State().Params.Color1.R)
	assert.Len(t, drain(q), 1)

	_, err := Encode(a.State(), FieldColor1)
	assert.ErrorIs(t, err, ErrSerialize)

	require.Len(t, pub.sent, len(Fields())-1)
	for _, p := range pub.sent {
		assert.NotEqual(t, "led/pallet/color1", p.Topic)
	}
	assert.Contains(t, buf.String(), "skipping echo")
}

func TestNonDecimalNumbersRejected(t *testing.T) {
	for _, in := range []string{"0x1p-2", "-0X10", "+0x1", "1_000", "0.5_0"} {
		_, err := ParseFloat([]byte(in))
		assert.ErrorIs(t, err, ErrParse, in)
	}
	_, err := ParseRGB([]byte("0x10,0,0"))
	assert.ErrorIs(t, err, ErrParse)

	for in, want := range map[string]float64{"-0.5": -0.5, "+2": 2, "1e-3": 0.001, ".25": 0.25} {
		v, err := ParseFloat([]byte(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, v, in)
	}
}
