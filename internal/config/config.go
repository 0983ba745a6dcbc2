package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/ledstrip/internal/led"
)

type PowerCfg struct {
	LimitAmps float64 `yaml:"limit_amps"` // 0 disables the current budget
	WhiteCap  float64 `yaml:"white_cap"`  // fraction of full white per LED, 0 = no cap
}

type SPI struct {
	Port    string `yaml:"port"`     // periph port name, empty = first available
	FreqKHz int    `yaml:"freq_khz"` // e.g. 2500
}

type MQTT struct {
	Server      string `yaml:"server"` // empty disables the control channel
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	ReconnectS  int    `yaml:"reconnect_s"`
	QoS         int    `yaml:"qos"`
}

type HTTP struct {
	Addr string `yaml:"addr"` // empty disables the preview server
}

type Config struct {
	Driver     string  `yaml:"driver"` // "spi" | "console" | "sim"
	ColorOrder string  `yaml:"color_order"`
	Brightness float64 `yaml:"brightness"`
	FPS        int     `yaml:"fps"`
	LEDCount   int     `yaml:"led_count"`
	QueueSize  int     `yaml:"queue_size"`
	LogLevel   string  `yaml:"log_level"`

	Power PowerCfg `yaml:"power"`
	SPI   SPI      `yaml:"spi,omitempty"`
	MQTT  MQTT     `yaml:"mqtt"`
	HTTP  HTTP     `yaml:"http"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Driver:     "spi",
		ColorOrder: "RGB",
		Brightness: 1,
		FPS:        24,
		LEDCount:   60,
		QueueSize:  16,
		LogLevel:   "info",
		SPI:        SPI{FreqKHz: 2500},
		MQTT: MQTT{
			Port:        1883,
			TopicPrefix: "led/pallet",
			ReconnectS:  5,
			QoS:         1,
		},
		HTTP: HTTP{Addr: ":8080"},
	}
}

// Load reads path over Default, so omitted keys keep their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Environment variables read by ApplyEnv.
const (
	EnvMQTTServer   = "NULED_MQTT_SERVER"
	EnvMQTTPort     = "NULED_MQTT_PORT"
	EnvMQTTUsername = "NULED_MQTT_USERNAME"
	EnvMQTTPassword = "NULED_MQTT_PASSWORD"
	EnvLEDCount     = "NULED_LED_COUNT"
)

// ApplyEnv overrides broker settings and the LED count from the process
// environment.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvMQTTServer); ok {
		c.MQTT.Server = v
	}
	if v, ok := lookup(EnvMQTTUsername); ok {
		c.MQTT.Username = v
	}
	if v, ok := lookup(EnvMQTTPassword); ok {
		c.MQTT.Password = v
	}
	if v, ok := lookup(EnvMQTTPort); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMQTTPort, err)
		}
		c.MQTT.Port = p
	}
	if v, ok := lookup(EnvLEDCount); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLEDCount, err)
		}
		c.LEDCount = n
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.LEDCount <= 0 {
		errs = append(errs, fmt.Errorf("led_count must be positive, got %d", c.LEDCount))
	}
	if c.FPS <= 0 || c.FPS > 1000 {
		errs = append(errs, fmt.Errorf("fps must be in 1..1000, got %d", c.FPS))
	}
	if c.Brightness < 0 || c.Brightness > 1 {
		errs = append(errs, fmt.Errorf("brightness must be in 0..1, got %v", c.Brightness))
	}
	switch led.Kind(c.Driver) {
	case led.KindSPI, led.KindConsole, led.KindSim:
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q", c.Driver))
	}
	if err := led.Order(c.ColorOrder).Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue_size must not be negative, got %d", c.QueueSize))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.MQTT.Server != "" && (c.MQTT.Port <= 0 || c.MQTT.Port > 65535) {
		errs = append(errs, fmt.Errorf("mqtt port out of range: %d", c.MQTT.Port))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	if c.Power.WhiteCap < 0 || c.Power.WhiteCap > 1 {
		errs = append(errs, fmt.Errorf("power.white_cap must be in 0..1, got %v", c.Power.WhiteCap))
	}
	return errors.Join(errs...)
}

// FrameBudget is the frame period implied by FPS.
func (c *Config) FrameBudget() time.Duration {
	if c.FPS <= 0 {
		return time.Second / 24
	}
	return time.Second / time.Duration(c.FPS)
}

// Broker is the paho broker URL, empty when MQTT is disabled.
func (c *Config) Broker() string {
	if c.MQTT.Server == "" {
		return ""
	}
	return "tcp://" + net.JoinHostPort(c.MQTT.Server, strconv.Itoa(c.MQTT.Port))
}

func (c *Config) Reconnect() time.Duration {
	return time.Duration(c.MQTT.ReconnectS) * time.Second
}

// Packer translates the power and color settings for the transport.
func (c *Config) Packer() led.Packer {
	p := led.Packer{
		Brightness: c.Brightness,
		BudgetMA:   c.Power.LimitAmps * 1000,
		Order:      led.Order(c.ColorOrder),
	}
	if c.Power.WhiteCap > 0 {
		p.WhiteCap = 3 * c.Power.WhiteCap
	}
	return p
}
