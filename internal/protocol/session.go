package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned by Publish while no broker connection is up.
var ErrNotConnected = errors.New("mqtt not connected")

// SessionConfig describes the broker connection.
type SessionConfig struct {
	Broker   string // e.g. tcp://10.0.0.2:1883
	Username string
	Password string
	ClientID string // empty selects ledstrip-<uuid>
	QoS      byte   // subscription QoS; echoes are always QoS 0

	Backoff        time.Duration // wait between connection attempts
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

func (c *SessionConfig) defaults() {
	if c.ClientID == "" {
		c.ClientID = "ledstrip-" + uuid.NewString()
	}
	if c.Backoff <= 0 {
		c.Backoff = 5 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
}

// Session keeps one broker connection alive and feeds every inbound
// update to an Adapter from a single goroutine. It is also the Adapter's
// Publisher.
type Session struct {
	cfg SessionConfig
	log zerolog.Logger

	// NewClient builds the paho client; tests replace it.
	NewClient func(*mqtt.ClientOptions) mqtt.Client

	mu     sync.Mutex
	client mqtt.Client
}

func NewSession(cfg SessionConfig, logger *zerolog.Logger) *Session {
	cfg.defaults()
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Session{
		cfg:       cfg,
		log:       l.With().Str("component", "mqtt").Str("broker", cfg.Broker).Logger(),
		NewClient: mqtt.NewClient,
	}
}

func (s *Session) ClientID() string { return s.cfg.ClientID }

// Connected reports whether a broker connection is currently in use.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// Publish sends payload at QoS 0 without retain.
func (s *Session) Publish(topic string, payload []byte) error {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	tok := c.Publish(topic, 0, false, payload)
	if !tok.WaitTimeout(s.cfg.PublishTimeout) {
		return errors.New("publish timeout")
	}
	return tok.Error()
}

// Run connects, serves a until ctx is done, and reconnects after
// Backoff whenever the connection fails. It returns nil once ctx is done.
func (s *Session) Run(ctx context.Context, a *Adapter) error {
	for {
		err := s.serve(ctx, a)
		if ctx.Err() != nil {
			return nil
		}
		s.log.Warn().Err(err).Dur("backoff", s.cfg.Backoff).Msg("mqtt session ended, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.Backoff):
		}
	}
}

func (s *Session) options(lost chan<- error) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetUsername(s.cfg.Username)
	opts.SetPassword(s.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	// Reconnects are driven by Run so state is re-published on every connect.
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(s.cfg.ConnectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	})
	return opts
}

// serve runs a single connection until it fails or ctx is done.
func (s *Session) serve(ctx context.Context, a *Adapter) error {
	lost := make(chan error, 1)
	c := s.NewClient(s.options(lost))

	s.log.Info().Str("client_id", s.cfg.ClientID).Msg("connecting to mqtt broker")
	tok := c.Connect()
	if !tok.WaitTimeout(s.cfg.ConnectTimeout) {
		// stop the attempt still in flight before the next client is built
		c.Disconnect(0)
		return errors.New("mqtt connection timeout")
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	defer c.Disconnect(250)

	done := make(chan struct{})
	defer close(done)
	msgs := make(chan mqtt.Message, 16)
	onMessage := func(_ mqtt.Client, m mqtt.Message) {
		select {
		case msgs <- m:
		case <-done:
		}
	}

	filter := a.SubscribeFilter()
	sub := c.Subscribe(filter, s.cfg.QoS, onMessage)
	if !sub.WaitTimeout(s.cfg.ConnectTimeout) {
		return errors.New("mqtt subscription timeout")
	}
	if err := sub.Error(); err != nil {
		return fmt.Errorf("mqtt subscription failed: %w", err)
	}

	s.mu.Lock()
	s.client = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.client = nil
		s.mu.Unlock()
	}()

	s.log.Info().Str("topic", filter).Uint8("qos", s.cfg.QoS).Msg("mqtt connection established")
	if err := a.PublishState(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("mqtt disconnecting")
			return ctx.Err()
		case err := <-lost:
			return fmt.Errorf("mqtt connection lost: %w", err)
		case m := <-msgs:
			err := a.Handle(m.Topic(), m.Payload())
			var pe *PublishError
			if errors.As(err, &pe) {
				return err
			}
		}
	}
}
