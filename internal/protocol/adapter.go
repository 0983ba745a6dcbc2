// Package protocol maps control-channel messages onto render commands and
// echoes the accepted state back to the channel.
package protocol

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ledstrip/internal/command"
	"github.com/coreman2200/ledstrip/internal/effect"
)

// DefaultPrefix is the topic namespace used when none is configured.
const DefaultPrefix = "led/pallet"

const setSuffix = "/set"

// Field names, one topic per field.
const (
	FieldColor1    = "color1"
	FieldColor2    = "color2"
	FieldEffect    = "effect"
	FieldChroma    = "chroma"
	FieldLuminance = "luminance"
	FieldSize      = "size"
	FieldSpeed     = "speed"
)

// Fields lists every field in publish order.
func Fields() []string {
	return []string{FieldColor1, FieldColor2, FieldEffect, FieldChroma, FieldLuminance, FieldSize, FieldSpeed}
}

// ServerState is the adapter's authoritative copy of what has been accepted.
type ServerState struct {
	Effect effect.Kind
	Params effect.Params
}

// DefaultState is the state before any message is accepted.
func DefaultState() ServerState {
	return ServerState{Effect: effect.Rainbow, Params: effect.DefaultParams()}
}

// Publisher sends one echo message.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// PublishError reports a failed echo. The session treats it as fatal for
// the current connection.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Adapter owns ServerState and is the single producer on the command queue.
type Adapter struct {
	mu     sync.Mutex
	prefix string
	state  ServerState
	queue  *command.Queue
	pub    Publisher
	log    zerolog.Logger
}

// NewAdapter returns an adapter in DefaultState. An empty prefix selects
// DefaultPrefix.
func NewAdapter(prefix string, q *command.Queue, pub Publisher, logger *zerolog.Logger) *Adapter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Adapter{
		prefix: strings.TrimSuffix(prefix, "/"),
		state:  DefaultState(),
		queue:  q,
		pub:    pub,
		log:    l.With().Str("component", "protocol").Logger(),
	}
}

// Prefix is the topic namespace without a trailing slash.
func (a *Adapter) Prefix() string { return a.prefix }

// SubscribeFilter matches every inbound update topic.
func (a *Adapter) SubscribeFilter() string { return a.prefix + "/+" + setSuffix }

// Topic is the echo topic for field.
func (a *Adapter) Topic(field string) string { return a.prefix + "/" + field }

// SetTopic is the inbound topic for field.
func (a *Adapter) SetTopic(field string) string { return a.Topic(field) + setSuffix }

// State returns a copy of the accepted state.
func (a *Adapter) State() ServerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Handle applies one inbound message. A parse failure or unknown topic
// leaves the state untouched and returns ErrParse or ErrUnknownTopic. After
// an accepted update the full state is echoed; a failed echo is returned as
// a *PublishError.
func (a *Adapter) Handle(topic string, payload []byte) error {
	field, ok := a.field(topic)
	if !ok {
		a.log.Debug().Str("topic", topic).Msg("ignoring message on unrecognized topic")
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	a.mu.Lock()
	next := a.state
	err := apply(&next, field, payload)
	if err != nil {
		a.mu.Unlock()
		a.log.Error().Err(err).Str("topic", topic).Msg("rejected update")
		return err
	}
	a.state = next
	if field == FieldEffect {
		a.queue.Enqueue(command.NewChangeEffect(next.Effect))
	}
	a.queue.Enqueue(command.NewConfigureParams(next.Params))
	a.mu.Unlock()

	a.log.Debug().Str("topic", topic).Bytes("payload", payload).Msg("applied update")
	return a.publish(next)
}

// PublishState echoes the current state without an update.
func (a *Adapter) PublishState() error {
	return a.publish(a.State())
}

func (a *Adapter) field(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, a.prefix+"/")
	if !ok {
		return "", false
	}
	field, ok := strings.CutSuffix(rest, setSuffix)
	if !ok {
		return "", false
	}
	for _, f := range Fields() {
		if f == field {
			return field, true
		}
	}
	return "", false
}

func apply(s *ServerState, field string, payload []byte) error {
	var err error
	switch field {
	case FieldColor1:
		s.Params.Color1, err = ParseRGB(payload)
	case FieldColor2:
		s.Params.Color2, err = ParseRGB(payload)
	case FieldEffect:
		s.Effect, err = ParseEffect(payload)
	case FieldChroma:
		s.Params.Chroma, err = ParseFloat(payload)
	case FieldLuminance:
		s.Params.Luminance, err = ParseFloat(payload)
	case FieldSize:
		s.Params.Size, err = ParseFloat(payload)
	case FieldSpeed:
		s.Params.Speed, err = ParseFloat(payload)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownTopic, field)
	}
	return err
}

// Encode renders field of s in its inbound wire format. A value whose text
// would not fit in MaxPayloadLen yields ErrSerialize.
func Encode(s ServerState, field string) ([]byte, error) {
	var b []byte
	switch field {
	case FieldColor1:
		b = FormatRGB(s.Params.Color1)
	case FieldColor2:
		b = FormatRGB(s.Params.Color2)
	case FieldEffect:
		b = FormatEffect(s.Effect)
	case FieldChroma:
		b = FormatFloat(s.Params.Chroma)
	case FieldLuminance:
		b = FormatFloat(s.Params.Luminance)
	case FieldSize:
		b = FormatFloat(s.Params.Size)
	case FieldSpeed:
		b = FormatFloat(s.Params.Speed)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, field)
	}
	if len(b) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %s needs %d bytes, limit %d", ErrSerialize, field, len(b), MaxPayloadLen)
	}
	return b, nil
}

// publish echoes every field of s. A field that cannot be serialized is
// logged and skipped; the rest are still sent.
func (a *Adapter) publish(s ServerState) error {
	if a.pub == nil {
		return nil
	}
	for _, f := range Fields() {
		topic := a.Topic(f)
		payload, err := Encode(s, f)
		if err != nil {
			a.log.Error().Err(err).Str("topic", topic).Msg("skipping echo")
			continue
		}
		if err := a.pub.Publish(topic, payload); err != nil {
			return &PublishError{Topic: topic, Err: err}
		}
	}
	return nil
}
