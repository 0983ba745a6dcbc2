// Package render drives the live effect: it applies queued commands,
// writes frames to the transport and paces them against a frame budget.
package render

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ledstrip/internal/command"
	"github.com/coreman2200/ledstrip/internal/effect"
)

// DefaultBudget is the frame period at 24 frames per second.
const DefaultBudget = time.Second / 24

// DefaultIdlePoll is how long the loop sleeps when there is nothing to draw.
const DefaultIdlePoll = time.Millisecond

// minSleep is the pause taken after an overrun.
const minSleep = time.Millisecond

// Driver receives complete frames. Write must not return before the frame
// is fully handed to the hardware.
type Driver interface {
	Write(effect.Strip) error
}

// Clock abstracts time so pacing can be tested.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Option func(*Loop)

func WithBudget(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.budget = d
		}
	}
}

func WithIdlePoll(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.idle = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loop) { l.log = logger }
}

func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Frames    uint64        `json:"frames"`
	Overruns  uint64        `json:"overruns"`
	Commands  uint64        `json:"commands"`
	LastFrame time.Duration `json:"last_frame_ns"`
	Effect    string        `json:"effect"`
}

// Loop is the single consumer of the command queue.
type Loop struct {
	queue  *command.Queue
	driver Driver
	n      int
	budget time.Duration
	idle   time.Duration
	clock  Clock
	log    zerolog.Logger

	params  effect.Params
	current effect.Effect

	frames    atomic.Uint64
	overruns  atomic.Uint64
	commands  atomic.Uint64
	lastFrame atomic.Int64
	kind      atomic.Int64
}

// New returns a loop for a strip of n pixels, starting with Polyrhythm on
// default parameters.
func New(q *command.Queue, d Driver, n int, opts ...Option) *Loop {
	l := &Loop{
		queue:  q,
		driver: d,
		n:      n,
		budget: DefaultBudget,
		idle:   DefaultIdlePoll,
		clock:  wallClock{},
		log:    log.Logger,
		params: effect.DefaultParams(),
	}
	for _, o := range opts {
		o(l)
	}
	l.log = l.log.With().Str("component", "render").Logger()
	l.setEffect(effect.Polyrhythm)
	return l
}

// Budget is the target frame period.
func (l *Loop) Budget() time.Duration { return l.budget }

// Stats may be called from any goroutine.
func (l *Loop) Stats() Stats {
	return Stats{
		Frames:    l.frames.Load(),
		Overruns:  l.overruns.Load(),
		Commands:  l.commands.Load(),
		LastFrame: time.Duration(l.lastFrame.Load()),
		Effect:    effect.Kind(l.kind.Load()).String(),
	}
}

// Pace returns how long to sleep after a frame that took elapsed. overrun
// is set when the frame exceeded budget, in which case the sleep is
// clamped to a minimal pause. The result never exceeds budget.
func Pace(elapsed, budget time.Duration) (sleep time.Duration, overrun bool) {
	d := budget - elapsed
	if d < 0 {
		return minSleep, true
	}
	return min(d, budget), false
}

// Run draws frames until ctx is done or the driver fails. A driver error
// is returned wrapped; cancellation returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().Int("pixels", l.n).Dur("budget", l.budget).Msg("render loop started")
	defer l.log.Info().Msg("render loop stopped")

	// nothing is drawn until the first command arrives
	exhausted := true
	for {
		if ctx.Err() != nil {
			return nil
		}
		if c, ok := l.queue.TryDequeue(); ok {
			l.apply(c)
			exhausted = false
		} else if exhausted {
			if l.clock.Sleep(ctx, l.idle) != nil {
				return nil
			}
			continue
		}

		var err error
		exhausted, err = l.play(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (l *Loop) apply(c command.Command) {
	l.commands.Add(1)
	l.log.Debug().Stringer("command", c).Msg("applying command")
	switch c.Kind {
	case command.ChangeEffect:
		l.setEffect(c.Effect)
	case command.ConfigureParams:
		l.params = c.Params
		l.current.Configure(l.params)
	}
}

func (l *Loop) setEffect(k effect.Kind) {
	l.current = effect.New(k, l.n)
	l.current.Configure(l.params)
	l.kind.Store(int64(k))
}

// play renders frames of the current effect until a command is pending or
// the effect is exhausted.
func (l *Loop) play(ctx context.Context) (exhausted bool, err error) {
	for {
		start := l.clock.Now()
		s, ok := l.current.Next()
		if !ok {
			return true, nil
		}
		if err := l.driver.Write(s); err != nil {
			return false, fmt.Errorf("render: write frame: %w", err)
		}
		elapsed := l.clock.Now().Sub(start)
		l.frames.Add(1)
		l.lastFrame.Store(int64(elapsed))

		sleep, overrun := Pace(elapsed, l.budget)
		if overrun {
			l.overruns.Add(1)
			l.log.Warn().Dur("elapsed", elapsed).Dur("budget", l.budget).Msg("frame overran budget")
		} else {
			l.log.Debug().Dur("elapsed", elapsed).Dur("sleep", sleep).Msg("frame")
		}
		if err := l.clock.Sleep(ctx, sleep); err != nil {
			return false, err
		}
		if l.queue.Pending() {
			return false, nil
		}
	}
}
