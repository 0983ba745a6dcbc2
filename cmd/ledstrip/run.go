package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/ledstrip/internal/command"
	"github.com/coreman2200/ledstrip/internal/config"
	"github.com/coreman2200/ledstrip/internal/effect"
	"github.com/coreman2200/ledstrip/internal/led"
	"github.com/coreman2200/ledstrip/internal/protocol"
	"github.com/coreman2200/ledstrip/internal/render"
	"github.com/coreman2200/ledstrip/internal/ws"
)

type runFlags struct {
	configPath string
	driver     string
	ledCount   int
	fps        int
	logLevel   string
	addr       string
	broker     string
}

var flags runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the strip until interrupted",
	Long: `Loads the configuration, opens the LED transport, connects to the MQTT
broker and renders frames until SIGINT or SIGTERM.

Flags override values from the config file, which override defaults.
NULED_* environment variables override the file but not flags.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	bindRunFlags(runCmd, &flags)
	rootCmd.AddCommand(runCmd)
}

func bindRunFlags(cmd *cobra.Command, fl *runFlags) {
	f := cmd.Flags()
	f.StringVarP(&fl.configPath, "config", "c", "config.yaml", "path to config.yaml")
	f.StringVar(&fl.driver, "driver", "", "driver: spi | console | sim")
	f.IntVar(&fl.ledCount, "led-count", 0, "number of LEDs on the strip")
	f.IntVar(&fl.fps, "fps", 0, "target frames per second")
	f.StringVar(&fl.logLevel, "log-level", "", "log level (debug, info, warn, ...)")
	f.StringVar(&fl.addr, "addr", "", "preview HTTP listen address, empty disables it")
	f.StringVar(&fl.broker, "mqtt-server", "", "MQTT broker host")
}

// loadConfig layers defaults, the config file, the environment and the
// flags that were set on cmd.
func loadConfig(cmd *cobra.Command, fl runFlags) (*config.Config, error) {
	cfg, err := config.Load(fl.configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		log.Warn().Err(err).Str("path", fl.configPath).Msg("config load failed; proceeding with defaults")
		cfg = config.Default()
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("driver") {
		cfg.Driver = fl.driver
	}
	if changed("led-count") {
		cfg.LEDCount = fl.ledCount
	}
	if changed("fps") {
		cfg.FPS = fl.fps
	}
	if changed("log-level") {
		cfg.LogLevel = fl.logLevel
	}
	if changed("addr") {
		cfg.HTTP.Addr = fl.addr
	}
	if changed("mqtt-server") {
		cfg.MQTT.Server = fl.broker
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

// serve wires the queue, the transport, the render loop, the MQTT session
// and the preview server, and blocks until ctx is done or rendering fails.
func serve(ctx context.Context, cfg *config.Config) error {
	queue := command.NewQueue(cfg.QueueSize)
	queue.Enqueue(command.NewChangeEffect(effect.Rainbow))

	drv, err := led.Open(led.Options{
		Kind:   led.Kind(cfg.Driver),
		Count:  cfg.LEDCount,
		Port:   cfg.SPI.Port,
		Freq:   physic.Frequency(cfg.SPI.FreqKHz) * physic.KiloHertz,
		Packer: cfg.Packer(),
	}, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := drv.Close(); err != nil {
			log.Warn().Err(err).Msg("closing driver")
		}
	}()

	var session *protocol.Session
	var publisher protocol.Publisher
	if broker := cfg.Broker(); broker != "" {
		session = protocol.NewSession(protocol.SessionConfig{
			Broker:   broker,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			ClientID: cfg.MQTT.ClientID,
			QoS:      byte(cfg.MQTT.QoS),
			Backoff:  cfg.Reconnect(),
		}, nil)
		publisher = session
	} else {
		log.Warn().Msg("no mqtt server configured; running without a control channel")
	}
	adapter := protocol.NewAdapter(cfg.MQTT.TopicPrefix, queue, publisher, nil)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	var out render.Driver = drv
	var preview *ws.Server
	var loop *render.Loop
	if cfg.HTTP.Addr != "" {
		preview = ws.New(drv, cfg.LEDCount, led.Name(drv), ws.WithSources(ws.Sources{
			Render:  func() render.Stats { return loop.Stats() },
			State:   adapter.State,
			Dropped: queue.Dropped,
			MQTTConnected: func() bool {
				return session != nil && session.Connected()
			},
		}))
		out = preview
	}
	loop = render.New(queue, out, cfg.LEDCount, render.WithBudget(cfg.FrameBudget()))

	if preview != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := preview.ListenAndServe(ctx, cfg.HTTP.Addr); err != nil {
				log.Error().Err(err).Msg("preview server failed")
			}
		}()
	}
	if session != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = session.Run(ctx, adapter)
		}()
	}

	err = loop.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("render loop failed")
	} else {
		log.Info().Msg("shutting down")
	}
	cancel()
	wg.Wait()
	return err
}
