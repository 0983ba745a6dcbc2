// Package command carries control requests from the protocol adapter to
// the render loop over a bounded single-producer/single-consumer queue.
package command

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ledstrip/internal/effect"
)

// Kind tags a Command.
type Kind int

const (
	// ChangeEffect replaces the live effect with a fresh instance of Effect.
	ChangeEffect Kind = iota
	// ConfigureParams stores Params and reconfigures the live effect.
	ConfigureParams
)

func (k Kind) String() string {
	switch k {
	case ChangeEffect:
		return "ChangeEffect"
	case ConfigureParams:
		return "ConfigureParams"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Command is consumed exactly once by the render loop. Only the field
// matching Kind is meaningful.
type Command struct {
	Kind   Kind
	Effect effect.Kind
	Params effect.Params
}

func NewChangeEffect(k effect.Kind) Command {
	return Command{Kind: ChangeEffect, Effect: k}
}

func NewConfigureParams(p effect.Params) Command {
	return Command{Kind: ConfigureParams, Params: p}
}

func (c Command) String() string {
	if c.Kind == ChangeEffect {
		return fmt.Sprintf("%s(%s)", c.Kind, c.Effect)
	}
	return fmt.Sprintf("%s(%+v)", c.Kind, c.Params)
}

// DefaultCapacity is the queue size used when none is configured.
const DefaultCapacity = 16

// Queue is a bounded FIFO. Every operation is non-blocking: a full queue
// drops the newest command instead of stalling the producer.
type Queue struct {
	ch      chan Command
	dropped atomic.Uint64
	log     zerolog.Logger
}

// NewQueue returns a queue holding at most capacity commands.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		ch:  make(chan Command, capacity),
		log: log.Logger,
	}
}

// SetLogger replaces the logger used to report dropped commands.
func (q *Queue) SetLogger(l zerolog.Logger) { q.log = l }

// Enqueue adds c and reports whether it was accepted.
func (q *Queue) Enqueue(c Command) bool {
	select {
	case q.ch <- c:
		return true
	default:
		n := q.dropped.Add(1)
		q.log.Warn().Stringer("command", c).Uint64("dropped", n).Msg("command queue full, dropping command")
		return false
	}
}

// TryDequeue removes the oldest command, if any.
func (q *Queue) TryDequeue() (Command, bool) {
	select {
	case c := <-q.ch:
		return c, true
	default:
		return Command{}, false
	}
}

// Pending reports whether a command is waiting, without removing it.
// With a single consumer a true result stays true until it dequeues.
func (q *Queue) Pending() bool {
	return len(q.ch) > 0
}

func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) Cap() int { return cap(q.ch) }

// Dropped is the number of commands rejected because the queue was full.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
